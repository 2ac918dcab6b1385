package hdrreport

import (
	"fmt"
	"io"
	"os"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"

	"github.com/buoyantio/ringstore/ioutils"
)

// WriteReportCSV dumps the histogram's distribution bars to filename,
// one bar per line, syncing the file before close.
func WriteReportCSV(filename string, hist *hdrhistogram.Histogram) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}

	w := ioutils.NewWriteCloserWrapper(f, func() error {
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})

	for _, bar := range hist.Distribution() {
		if _, err := w.Write([]byte(bar.String())); err != nil {
			w.Close()
			return err
		}
	}

	return w.Close()
}

// PrintLatencySummary writes a coarse bucketed view of the latency
// distribution, in milliseconds, to w.
func PrintLatencySummary(w io.Writer, hist *hdrhistogram.Histogram) {
	bars := hist.Distribution()
	fmt.Fprintf(w, "FROM    TO #REQUESTS\n")
	fmt.Fprintf(w, "   0     2 %d\n", SumBars(0, 2, bars))
	fmt.Fprintf(w, "   2     8 %d\n", SumBars(2, 8, bars))
	fmt.Fprintf(w, "   8    32 %d\n", SumBars(8, 32, bars))
	fmt.Fprintf(w, "  32    64 %d\n", SumBars(32, 64, bars))
	fmt.Fprintf(w, "  64   128 %d\n", SumBars(64, 128, bars))
	fmt.Fprintf(w, " 128   256 %d\n", SumBars(128, 256, bars))
	fmt.Fprintf(w, " 256   512 %d\n", SumBars(256, 512, bars))
	fmt.Fprintf(w, " 512  1024 %d\n", SumBars(512, 1024, bars))
	fmt.Fprintf(w, "1024  4096 %d\n", SumBars(1024, 4096, bars))
	fmt.Fprintf(w, "4096 16384 %d\n", SumBars(4096, 16384, bars))
}

// Given a sorted `[]hdrhistogram.Bar`, return the sum of every `Bar` in the
// Range of (from, to]. Inclusive of from, exclusive of to.
func SumBars(from int64, to int64, bars []hdrhistogram.Bar) int64 {
	count := int64(0)
	for _, bar := range bars {
		if bar.To >= to {
			// short circuit if we've passed the item
			// we're interested in.
			break
		}
		if bar.From >= from && bar.To < to {
			count = count + bar.Count
		}
	}
	return count
}
