package window

import (
	"sync"

	"github.com/buoyantio/ringstore/ring"
)

// Returns the mean of a slice of int.
func Mean(data []int) int {
	sum := 0

	for _, n := range data {
		sum += n
	}

	count := len(data)
	if count > 0 {
		return sum / count
	} else {
		return 0
	}
}

// Given a window of recent latencies, determine if a Change
// Indicator should be generated.
//
// For each 10x over the mean the latest item is, we add a single plus
// sign up to 3.
//
// For each 10x under the mean the latest item is, we add a single
// minus sign up to 3.
//
// Otherwise we return no change indicator.
func CalculateChangeIndicator(data []int, latest int) string {
	mad := Mean(data)

	if len(data) > 0 {
		if latest >= (mad * 1000) {
			return "+++"
		}

		if latest >= (mad * 100) {
			return "++"
		}

		if latest >= (mad * 10) {
			return "+"
		}

		if latest <= (mad / 1000) {
			return "---"
		}

		if latest <= (mad / 100) {
			return "--"
		}

		if latest <= (mad / 10) {
			return "-"
		}
	}

	return ""
}

// LatencyWindow retains the most recent latency samples in a fixed-size
// ring shared between recording goroutines and a consumer. Recording
// never blocks: when the consumer falls behind, the oldest samples are
// overwritten. TakeSamples drains into a scratch slice preallocated to
// the window's capacity, so the lock is held only for a bounded copy.
type LatencyWindow struct {
	mu      sync.Mutex
	samples *ring.Buffer[int]
	scratch []int
}

// NewLatencyWindow returns a window retaining the last size samples.
func NewLatencyWindow(size int) (*LatencyWindow, error) {
	samples, err := ring.New[int](size)
	if err != nil {
		return nil, err
	}
	return &LatencyWindow{
		samples: samples,
		scratch: make([]int, 0, size),
	}, nil
}

// Record stores one sample, evicting the oldest if the window is full.
// It reports whether an unread sample was overwritten.
func (w *LatencyWindow) Record(latencyMs int) bool {
	w.mu.Lock()
	dropped := w.samples.IsFull()
	w.samples.Push(latencyMs)
	w.mu.Unlock()
	return dropped
}

// TakeSamples removes every retained sample and returns them oldest
// first. The returned slice is the window's own scratch buffer: it is
// valid until the next TakeSamples call and must not be retained.
func (w *LatencyWindow) TakeSamples() []int {
	w.mu.Lock()
	w.scratch = w.scratch[:0]
	w.samples.Fill(&w.scratch)
	w.mu.Unlock()
	return w.scratch
}

// Len returns the number of samples currently retained.
func (w *LatencyWindow) Len() int {
	w.mu.Lock()
	n := w.samples.Len()
	w.mu.Unlock()
	return n
}
