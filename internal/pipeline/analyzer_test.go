package pipeline

import (
	"math"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestAnalyzerCapacityEviction(t *testing.T) {
	a := NewTrafficAnalyzer()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 150; i++ {
		a.UpdateAt(i, base.Add(time.Duration(i)*time.Second))
	}

	if got := a.SampleCount(); got != DefaultHistoryCapacity {
		t.Fatalf("SampleCount() = %d, want %d", got, DefaultHistoryCapacity)
	}

	samples := a.Samples()
	if samples[0].Count != 50 {
		t.Errorf("oldest retained sample count = %d, want 50 (oldest evicted first)", samples[0].Count)
	}
	if samples[len(samples)-1].Count != 149 {
		t.Errorf("newest sample count = %d, want 149", samples[len(samples)-1].Count)
	}
}

func TestDensityAveragesWindow(t *testing.T) {
	a := NewTrafficAnalyzer()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a.now = fixedClock(now)

	a.UpdateAt(4, now.Add(-3*time.Minute))
	a.UpdateAt(6, now.Add(-2*time.Minute))
	a.UpdateAt(8, now.Add(-1*time.Minute))

	if got := a.Density(5 * time.Minute); !almostEqual(got, 6.0) {
		t.Errorf("Density(5m) = %v, want 6.0", got)
	}
}

func TestDensityEmptyAndStaleHistory(t *testing.T) {
	a := NewTrafficAnalyzer()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	a.now = fixedClock(now)

	if got := a.Density(5 * time.Minute); got != 0.0 {
		t.Errorf("Density on empty history = %v, want 0.0", got)
	}

	// Samples outside the window contribute nothing.
	a.UpdateAt(9, now.Add(-30*time.Minute))
	if got := a.Density(5 * time.Minute); got != 0.0 {
		t.Errorf("Density with only stale samples = %v, want 0.0", got)
	}
}

func TestPredictCongestionDegenerateCases(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	a := NewTrafficAnalyzer()
	if got := a.PredictCongestion(5 * time.Minute); got != 0.0 {
		t.Errorf("prediction on empty history = %v, want 0.0", got)
	}

	a.UpdateAt(7, now)
	if got := a.PredictCongestion(5 * time.Minute); !almostEqual(got, 7.0) {
		t.Errorf("prediction with one sample = %v, want 7.0", got)
	}

	// All samples at the same instant: no trend, last count wins.
	b := NewTrafficAnalyzer()
	b.UpdateAt(3, now)
	b.UpdateAt(5, now)
	b.UpdateAt(9, now)
	if got := b.PredictCongestion(5 * time.Minute); !almostEqual(got, 9.0) {
		t.Errorf("prediction with zero time spread = %v, want 9.0", got)
	}
}

func TestPredictCongestionLinearTrend(t *testing.T) {
	a := NewTrafficAnalyzer()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Count rises by 2 per minute: 10, 12, 14, 16.
	for i := 0; i < 4; i++ {
		a.UpdateAt(10+2*i, base.Add(time.Duration(i)*time.Minute))
	}

	// 5 minutes past the newest sample the line reaches 16 + 2*5 = 26.
	if got := a.PredictCongestion(5 * time.Minute); !almostEqual(got, 26.0) {
		t.Errorf("PredictCongestion(5m) = %v, want 26.0", got)
	}
}

func TestPredictCongestionClampsNegative(t *testing.T) {
	a := NewTrafficAnalyzer()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Steep downward trend that extrapolates below zero.
	counts := []int{20, 15, 10, 5}
	for i, c := range counts {
		a.UpdateAt(c, base.Add(time.Duration(i)*time.Minute))
	}

	if got := a.PredictCongestion(10 * time.Minute); got != 0.0 {
		t.Errorf("PredictCongestion on falling trend = %v, want clamp to 0.0", got)
	}
}

func TestPredictCongestionUsesRecentWindowOnly(t *testing.T) {
	a := NewTrafficAnalyzer()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// Old noise followed by a clean flat tail. Only the last samples
	// should shape the forecast.
	for i := 0; i < 20; i++ {
		a.UpdateAt(100, base.Add(time.Duration(i)*time.Minute))
	}
	for i := 20; i < 32; i++ {
		a.UpdateAt(4, base.Add(time.Duration(i)*time.Minute))
	}

	if got := a.PredictCongestion(5 * time.Minute); !almostEqual(got, 4.0) {
		t.Errorf("PredictCongestion = %v, want 4.0 from the flat recent window", got)
	}
}
