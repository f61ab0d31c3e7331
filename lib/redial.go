package lib

import (
	"log"
	"math"
	"time"
)

// RedialConfig holds the policy for restarting a whole session after a fatal
// engine error. The engine itself never retries beyond its attempt budgets;
// restarting the session is the caller's decision, and this helper packages
// the usual exponential-backoff loop for it.
type RedialConfig struct {
	MaxRetries        int           // maximum session restart attempts (-1 for infinite)
	InitialBackoff    time.Duration // delay before the first restart
	MaxBackoff        time.Duration // backoff cap
	BackoffMultiplier float64       // exponential backoff multiplier
	OnRedial          func()        // called on each successful restart
	OnFinalFailure    func(error)   // called when all retries are exhausted
}

// DefaultRedialConfig returns a conservative restart policy.
func DefaultRedialConfig() *RedialConfig {
	return &RedialConfig{
		MaxRetries:        5,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RedialHelper re-establishes an initiator session through the core when a
// handshake or transmission gives up. The previous connection's endpoint must
// already be released (handshake failures release it themselves; after
// ErrTransmissionFailed the caller closes the connection first).
type RedialHelper struct {
	core       *RdtCore
	remoteHost string
	remotePort int
	connConfig *ConnectionConfig
	redialCfg  *RedialConfig
}

func NewRedialHelper(core *RdtCore, remoteHost string, remotePort int, connConfig *ConnectionConfig, redialCfg *RedialConfig) *RedialHelper {
	return &RedialHelper{
		core:       core,
		remoteHost: remoteHost,
		remotePort: remotePort,
		connConfig: connConfig,
		redialCfg:  redialCfg,
	}
}

// Redial dials a fresh session, backing off between attempts. It returns the
// new connection, or nil after the retry budget is exhausted.
func (h *RedialHelper) Redial(cause error) *Connection {
	log.Printf("Session failed: %v. Attempting to redial...\n", cause)

	for retry := 0; h.redialCfg.MaxRetries == -1 || retry < h.redialCfg.MaxRetries; retry++ {
		backoff := backoffDuration(retry, h.redialCfg.InitialBackoff, h.redialCfg.MaxBackoff, h.redialCfg.BackoffMultiplier)
		log.Printf("Redial attempt %d: waiting %v before retry\n", retry+1, backoff)
		time.Sleep(backoff)

		conn, err := h.core.DialRdt(h.remoteHost, h.remotePort, h.connConfig)
		if err == nil {
			log.Printf("Redial successful on attempt %d\n", retry+1)
			if h.redialCfg.OnRedial != nil {
				h.redialCfg.OnRedial()
			}
			return conn
		}
		log.Printf("Redial attempt %d failed: %v\n", retry+1, err)
	}

	log.Printf("Redial gave up after %d attempts\n", h.redialCfg.MaxRetries)
	if h.redialCfg.OnFinalFailure != nil {
		h.redialCfg.OnFinalFailure(cause)
	}
	return nil
}

// backoffDuration computes the delay for a given retry count.
func backoffDuration(retry int, initial, max time.Duration, multiplier float64) time.Duration {
	backoff := time.Duration(float64(initial) * math.Pow(multiplier, float64(retry)))
	if backoff > max {
		backoff = max
	}
	return backoff
}
