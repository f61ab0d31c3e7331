package lib

import (
	"testing"
	"time"
)

func TestRttSampleSmoothing(t *testing.T) {
	r := newRttEstimator(DefaultConnectionConfig())
	if r.estimatedRTT != 100 {
		t.Fatalf("initial estimate = %d, want 100", r.estimatedRTT)
	}

	// round(0.875*100 + 0.125*200) = 113
	r.onSample(200 * time.Millisecond)
	if r.estimatedRTT != 113 {
		t.Errorf("estimate after 200ms sample = %d, want 113", r.estimatedRTT)
	}

	// A fast sample pulls the estimate back down: round(0.875*113 + 0.125*10) = 100
	r.onSample(10 * time.Millisecond)
	if r.estimatedRTT != 100 {
		t.Errorf("estimate after 10ms sample = %d, want 100", r.estimatedRTT)
	}
}

func TestRttSampleCeiling(t *testing.T) {
	r := newRttEstimator(DefaultConnectionConfig())
	r.onSample(10 * time.Second)
	if r.estimatedRTT != 500 {
		t.Errorf("estimate after huge sample = %d, want ceiling 500", r.estimatedRTT)
	}
}

func TestRttTimeoutBackoff(t *testing.T) {
	r := newRttEstimator(DefaultConnectionConfig())

	// round(1.2^N * 100) compounded per step: 120, 144, 173
	want := []uint32{120, 144, 173}
	for i, w := range want {
		r.onTimeout()
		if r.estimatedRTT != w {
			t.Errorf("estimate after %d timeouts = %d, want %d", i+1, r.estimatedRTT, w)
		}
	}
}

func TestRttBackoffUncapped(t *testing.T) {
	config := DefaultConnectionConfig()
	config.InitialRTT = 500
	r := newRttEstimator(config)

	r.onTimeout()
	if r.estimatedRTT != 600 {
		t.Errorf("estimate = %d, want 600 (backoff is not clipped)", r.estimatedRTT)
	}
	if got := r.timeout(); got != 500*time.Millisecond {
		t.Errorf("timeout = %v, want capped 500ms", got)
	}
}

func TestRttTimeoutDerivation(t *testing.T) {
	testCases := []struct {
		estimate uint32
		want     time.Duration
	}{
		{estimate: 100, want: 150 * time.Millisecond},
		{estimate: 200, want: 300 * time.Millisecond},
		{estimate: 333, want: 500 * time.Millisecond}, // 499.5 rounds to 500
		{estimate: 400, want: 500 * time.Millisecond}, // capped
	}

	for _, tc := range testCases {
		config := DefaultConnectionConfig()
		config.InitialRTT = tc.estimate
		r := newRttEstimator(config)
		if got := r.timeout(); got != tc.want {
			t.Errorf("timeout for estimate %d = %v, want %v", tc.estimate, got, tc.want)
		}
	}
}
