package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"os"
	"os/signal"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/buoyantio/ringstore/hdrreport"
	"github.com/buoyantio/ringstore/ring"
	"github.com/buoyantio/ringstore/window"
)

// DayInMs 1 day in milliseconds
const DayInMs int64 = 24 * 60 * 60 * 1000000

// p99History keeps this many recent interval p99s for the change indicator.
const p99HistorySize = 5

func newClient(noreuse bool, maxConn int) *http.Client {
	tr := http.Transport{
		DisableKeepAlives:   noreuse,
		MaxIdleConnsPerHost: maxConn,
		Proxy:               http.ProxyFromEnvironment,
	}
	return &http.Client{Transport: &tr}
}

// measureRequest sends one request and returns the time-to-first-byte in
// milliseconds along with the response code.
func measureRequest(
	client *http.Client,
	method string,
	url *url.URL,
	host string,
	reqID uint64,
	bodyBuffer []byte,
) (int64, int, error) {
	req, err := http.NewRequest(method, url.String(), nil)
	if err != nil {
		return 0, 0, err
	}
	if host != "" {
		req.Host = host
	}
	req.Header.Add("Rs-Req-Id", strconv.FormatUint(reqID, 10))

	var elapsed time.Duration
	start := time.Now()

	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			elapsed = time.Since(start)
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	response, err := client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer response.Body.Close()

	// Drain the body so the connection can be reused.
	if _, err := io.CopyBuffer(io.Discard, response.Body, bodyBuffer); err != nil {
		return 0, 0, err
	}

	return elapsed.Nanoseconds() / 1000000, response.StatusCode, nil
}

func exUsage(msg string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, fmt.Sprintf(msg, args...))
	fmt.Fprintln(os.Stderr, "Try --help for help.")
	os.Exit(64)
}

// CalcTimeToWait calculates how many Nanoseconds to wait between requests.
func CalcTimeToWait(qps *int) time.Duration {
	return time.Duration(int(time.Second) / *qps)
}

var reqID = uint64(0)

var shouldFinish = false
var shouldFinishLock sync.RWMutex

// finishSendingTraffic signals the workers to stop sending traffic.
func finishSendingTraffic() {
	shouldFinishLock.Lock()
	shouldFinish = true
	shouldFinishLock.Unlock()
}

var (
	promRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "requests",
		Help: "Number of requests",
	})

	promSuccesses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "successes",
		Help: "Number of successful requests",
	})

	promOverwritten = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "samples_overwritten",
		Help: "Number of latency samples overwritten before the reporter drained them",
	})

	promLatencyHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "latency_ms",
		Help: "RPC latency distributions in milliseconds.",
		// 50 exponential buckets ranging from 0.5 ms to 3 minutes
		Buckets: prometheus.ExponentialBuckets(0.5, 1.3, 50),
	})
)

func registerMetrics() {
	prometheus.MustRegister(promRequests)
	prometheus.MustRegister(promSuccesses)
	prometheus.MustRegister(promOverwritten)
	prometheus.MustRegister(promLatencyHistogram)
}

// recentChange computes the change indicator of latest against the
// retained p99 history, then records latest as the newest entry. The
// history ring only supports draining reads, so we drain it into
// scratch, inspect, and push the values back.
func recentChange(history *ring.Buffer[int], scratch *[]int, latest int) string {
	*scratch = (*scratch)[:0]
	history.Fill(scratch)
	indicator := window.CalculateChangeIndicator(*scratch, latest)
	for _, v := range *scratch {
		history.Push(v)
	}
	history.Push(latest)
	return indicator
}

// recordSamples drains the sample window into the interval and global
// histograms. The window bounds how long its lock is held, so this can
// run as often as we like without stalling the workers.
func recordSamples(w *window.LatencyWindow, hist, global *hdrhistogram.Histogram, min, max *int64) {
	for _, ms := range w.TakeSamples() {
		l := int64(ms)
		if l < *min {
			*min = l
		}
		if l > *max {
			*max = l
		}
		hist.RecordValue(l)
		global.RecordValue(l)
		promLatencyHistogram.Observe(float64(l))
	}
}

func main() {
	qps := flag.Int("qps", 1, "QPS to send to the target per request thread")
	concurrency := flag.Int("concurrency", 1, "Number of request threads")
	host := flag.String("host", "", "value of Host header to set")
	method := flag.String("method", "GET", "HTTP method to use")
	interval := flag.Duration("interval", 10*time.Second, "reporting interval")
	windowSize := flag.Int("window", 1000, "number of recent latency samples to retain between drains")
	noreuse := flag.Bool("noreuse", false, "don't reuse connections")
	noLatencySummary := flag.Bool("noLatencySummary", false, "suppress the final latency summary")
	reportLatenciesCSV := flag.String("reportLatenciesCSV", "",
		"filename to output hdrhistogram latencies in CSV")
	help := flag.Bool("help", false, "show help message")
	totalRequests := flag.Uint64("totalRequests", 0, "total number of requests to send before exiting")
	metricAddr := flag.String("metric-addr", "", "address to serve metrics on")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s <url> [flags]\n", path.Base(os.Args[0]))
		flag.PrintDefaults()
	}

	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(64)
	}

	if flag.NArg() != 1 {
		exUsage("Expecting one argument: the target url to probe, e.g. http://localhost:4140/")
	}

	urldest := flag.Arg(0)
	dstURL, err := url.Parse(urldest)
	if err != nil {
		exUsage("invalid URL: '%s': %s\n", urldest, err.Error())
	}

	if *qps < 1 {
		exUsage("qps must be at least 1")
	}

	if *concurrency < 1 {
		exUsage("concurrency must be at least 1")
	}

	samples, err := window.NewLatencyWindow(*windowSize)
	if err != nil {
		exUsage("window must be at least 1")
	}

	// Per-interval counters, updated by the workers, swapped out by the
	// reporter.
	good := uint64(0)
	bad := uint64(0)
	failed := uint64(0)
	overwritten := uint64(0)

	min := int64(math.MaxInt64)
	max := int64(0)

	hist := hdrhistogram.New(0, DayInMs, 3)
	globalHist := hdrhistogram.New(0, DayInMs, 3)
	p99History, _ := ring.New[int](p99HistorySize)
	historyScratch := make([]int, 0, p99HistorySize)

	timeToWait := CalcTimeToWait(qps)
	totalTrafficTarget := *qps * *concurrency * int(interval.Seconds())

	client := newClient(*noreuse, *concurrency)
	var sendTraffic sync.WaitGroup
	// The time portion of the header can change due to timezone.
	timeLen := len(time.Now().Format(time.RFC3339))
	timePadding := strings.Repeat(" ", timeLen)
	intLen := len(fmt.Sprintf("%s", *interval))
	intPadding := strings.Repeat(" ", intLen-2)

	fmt.Printf("# probing %s at %d req/s with concurrency=%d, keeping the last %d samples ...\n", dstURL, (*qps * *concurrency), *concurrency, *windowSize)
	fmt.Printf("# %s good/b/f t   goal%% %s min [p50 p95 p99  p999]  max ovrwrt change\n", timePadding, intPadding)
	for i := 0; i < *concurrency; i++ {
		ticker := time.NewTicker(timeToWait)
		go func() {
			// For each goroutine we want to reuse a buffer for performance reasons.
			bodyBuffer := make([]byte, 50000)
			sendTraffic.Add(1)
			for range ticker.C {
				shouldFinishLock.RLock()
				if shouldFinish {
					shouldFinishLock.RUnlock()
					sendTraffic.Done()
					return
				}
				shouldFinishLock.RUnlock()

				latency, code, err := measureRequest(client, *method, dstURL, *host, atomic.AddUint64(&reqID, 1), bodyBuffer)
				promRequests.Inc()
				if err != nil {
					fmt.Fprintln(os.Stderr, err)
					atomic.AddUint64(&failed, 1)
					continue
				}
				if code >= 200 && code < 500 {
					atomic.AddUint64(&good, 1)
					promSuccesses.Inc()
				} else {
					atomic.AddUint64(&bad, 1)
				}
				// Recording never blocks: if the reporter lags, the
				// window evicts its oldest sample and we count the loss.
				if samples.Record(int(latency)) {
					atomic.AddUint64(&overwritten, 1)
					promOverwritten.Inc()
				}
			}
		}()
	}

	cleanup := make(chan bool, 2)
	interrupted := make(chan os.Signal, 2)
	signal.Notify(interrupted, syscall.SIGINT)

	if *metricAddr != "" {
		registerMetrics()
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			http.ListenAndServe(*metricAddr, nil)
		}()
	}

	// Drain the sample window well within the reporting interval so the
	// workers rarely overwrite unread samples.
	drainEvery := *interval / 10
	if drainEvery < 100*time.Millisecond {
		drainEvery = 100 * time.Millisecond
	}
	drainTick := time.NewTicker(drainEvery)
	timeout := time.After(*interval)

	for {
		select {
		// If we get a SIGINT, then start the shutdown process.
		case <-interrupted:
			cleanup <- true
		case <-cleanup:
			finishSendingTraffic()
			recordSamples(samples, hist, globalHist, &min, &max)
			if !*noLatencySummary {
				hdrreport.PrintLatencySummary(os.Stdout, globalHist)
			}
			if *reportLatenciesCSV != "" {
				err := hdrreport.WriteReportCSV(*reportLatenciesCSV, globalHist)
				if err != nil {
					log.Panicf("Unable to write Latency CSV file: %v\n", err)
				}
			}
			go func() {
				// Don't Wait() in the event loop or else we'll block the workers
				// from draining.
				sendTraffic.Wait()
				os.Exit(0)
			}()
		case <-drainTick.C:
			recordSamples(samples, hist, globalHist, &min, &max)
		case t := <-timeout:
			// Pick up whatever arrived since the last drain tick.
			recordSamples(samples, hist, globalHist, &min, &max)

			// When all requests are failures, ensure we don't accidentally
			// print out a monstrously huge number.
			if min == math.MaxInt64 {
				min = 0
			}

			g := atomic.SwapUint64(&good, 0)
			b := atomic.SwapUint64(&bad, 0)
			f := atomic.SwapUint64(&failed, 0)
			o := atomic.SwapUint64(&overwritten, 0)

			// Periodically print stats about the request load.
			percentAchieved := int(math.Min((((float64(g) + float64(b)) /
				float64(totalTrafficTarget)) * 100), 100))

			lastP99 := int(hist.ValueAtQuantile(99))
			// We want the change indicator to be based on how far away
			// the current value is from what we've seen historically.
			changeIndicator := recentChange(p99History, &historyScratch, lastP99)

			fmt.Printf("%s %6d/%1d/%1d %d %3d%% %s %3d [%3d %3d %3d %4d ] %4d %6d %s\n",
				t.Format(time.RFC3339),
				g,
				b,
				f,
				totalTrafficTarget,
				percentAchieved,
				interval,
				min,
				hist.ValueAtQuantile(50),
				hist.ValueAtQuantile(95),
				hist.ValueAtQuantile(99),
				hist.ValueAtQuantile(999),
				max,
				o,
				changeIndicator)

			min = math.MaxInt64
			max = 0
			hist.Reset()
			timeout = time.After(*interval)

			if *totalRequests != 0 && atomic.LoadUint64(&reqID) > *totalRequests {
				cleanup <- true
			}
		}
	}
}
