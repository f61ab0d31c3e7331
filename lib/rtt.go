package lib

import (
	"math"
	"time"
)

// rttEstimator keeps a smoothed round-trip-time estimate in milliseconds and
// derives retransmission timeouts from it. It is a simplified Jacobson-style
// EWMA: one successful exchange pulls the estimate toward the measured
// sample, one timeout inflates it multiplicatively. devRTT is carried for a
// future variance term but does not feed the current formulas.
type rttEstimator struct {
	estimatedRTT uint32
	devRTT       uint32
	config       *ConnectionConfig
}

func newRttEstimator(config *ConnectionConfig) *rttEstimator {
	return &rttEstimator{
		estimatedRTT: config.InitialRTT,
		devRTT:       config.InitialDevRTT,
		config:       config,
	}
}

// onSample folds one measured round trip into the estimate. The result is
// clipped at the configured ceiling so a single slow exchange cannot park the
// estimate out of reach.
func (r *rttEstimator) onSample(sample time.Duration) {
	sampleMs := float64(sample) / float64(time.Millisecond)
	gain := r.config.RTTGain
	smoothed := math.Round((1-gain)*float64(r.estimatedRTT) + gain*sampleMs)
	if smoothed > float64(r.config.RTTCeiling) {
		smoothed = float64(r.config.RTTCeiling)
	}
	r.estimatedRTT = uint32(smoothed)
}

// onTimeout backs the estimate off multiplicatively. The estimate itself is
// not clipped here; only the derived timeout value is capped.
func (r *rttEstimator) onTimeout() {
	r.estimatedRTT = uint32(math.Round(r.config.BackoffFactor * float64(r.estimatedRTT)))
}

// timeout derives the wait window for the next blocking receive.
func (r *rttEstimator) timeout() time.Duration {
	ms := math.Round(float64(r.estimatedRTT) * r.config.TimeoutFactor)
	if ms > float64(r.config.MaxTimeout) {
		ms = float64(r.config.MaxTimeout)
	}
	return time.Duration(ms) * time.Millisecond
}
