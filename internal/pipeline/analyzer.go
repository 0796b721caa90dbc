package pipeline

import (
	"sync"
	"time"
)

// DefaultHistoryCapacity bounds the analyzer's sample history.
const DefaultHistoryCapacity = 100

// trendWindow is the number of most recent samples used for the
// congestion forecast.
const trendWindow = 10

// TrafficSample is one vehicle-count observation.
type TrafficSample struct {
	Timestamp time.Time `json:"timestamp"`
	Count     int       `json:"count"`
}

// TrafficAnalyzer keeps a bounded time-series of per-frame vehicle counts
// and derives density and a naive trend-based congestion forecast from it.
// The history is owned by the analyzer and mutated only through Update.
type TrafficAnalyzer struct {
	samples  []TrafficSample
	capacity int
	now      func() time.Time
	mu       sync.Mutex
}

// NewTrafficAnalyzer creates an analyzer with the default capacity.
func NewTrafficAnalyzer() *TrafficAnalyzer {
	return NewTrafficAnalyzerWithCapacity(DefaultHistoryCapacity)
}

// NewTrafficAnalyzerWithCapacity creates an analyzer with a custom capacity.
func NewTrafficAnalyzerWithCapacity(capacity int) *TrafficAnalyzer {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &TrafficAnalyzer{
		samples:  make([]TrafficSample, 0, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Update appends a sample with the current time.
func (a *TrafficAnalyzer) Update(count int) {
	a.UpdateAt(count, a.now())
}

// UpdateAt appends a sample with an explicit timestamp. Oldest samples are
// evicted FIFO once the history exceeds capacity.
func (a *TrafficAnalyzer) UpdateAt(count int, timestamp time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.samples = append(a.samples, TrafficSample{Timestamp: timestamp, Count: count})
	if excess := len(a.samples) - a.capacity; excess > 0 {
		a.samples = a.samples[excess:]
	}
}

// Density returns the average vehicle count over samples within the window
// ending now. Returns 0.0 when no samples fall inside the window.
func (a *TrafficAnalyzer) Density(window time.Duration) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) == 0 {
		return 0.0
	}

	now := a.now()
	sum, n := 0, 0
	for _, s := range a.samples {
		if now.Sub(s.Timestamp) <= window {
			sum += s.Count
			n++
		}
	}
	if n == 0 {
		return 0.0
	}
	return float64(sum) / float64(n)
}

// PredictCongestion extrapolates the recent vehicle-count trend lookahead
// minutes past the newest sample. It fits a degree-1 least-squares line of
// count against minutes-since-first-sample over the last samples, clamped
// to a non-negative result. With fewer than two samples it returns the
// single sample's count, or 0.0 with none; with zero timestamp spread it
// returns the last sample's count.
func (a *TrafficAnalyzer) PredictCongestion(lookahead time.Duration) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.samples) == 0 {
		return 0.0
	}

	recent := a.samples
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	if len(recent) < 2 {
		return float64(recent[0].Count)
	}

	first := recent[0].Timestamp
	xs := make([]float64, len(recent))
	ys := make([]float64, len(recent))
	for i, s := range recent {
		xs[i] = s.Timestamp.Sub(first).Minutes()
		ys[i] = float64(s.Count)
	}

	// All samples at the same instant: no trend to fit
	if xs[len(xs)-1]-xs[0] == 0 {
		return ys[len(ys)-1]
	}

	slope, intercept := leastSquares(xs, ys)
	predicted := slope*(xs[len(xs)-1]+lookahead.Minutes()) + intercept
	if predicted < 0 {
		return 0.0
	}
	return predicted
}

// SampleCount returns the current history length.
func (a *TrafficAnalyzer) SampleCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.samples)
}

// Samples returns a copy of the current history, oldest first.
func (a *TrafficAnalyzer) Samples() []TrafficSample {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]TrafficSample, len(a.samples))
	copy(out, a.samples)
	return out
}

// leastSquares fits y = slope*x + intercept over the points.
func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY, sumXY, sumXX float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumXX += xs[i] * xs[i]
	}

	slope = (n*sumXY - sumX*sumY) / (n*sumXX - sumX*sumX)
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}
