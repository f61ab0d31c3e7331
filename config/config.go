package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AppConfig is the configuration loaded by the driver programs.
var AppConfig *Config

// Config is the yaml-backed tuning surface of the transport. Fields absent
// from the file keep their default values.
type Config struct {
	// Retry budgets
	MaxAttempts      int `yaml:"maxAttempts"`      // handshake and data retransmission budget
	CloseMaxAttempts int `yaml:"closeMaxAttempts"` // teardown retransmission budget

	// RTT estimation, all durations in milliseconds
	InitialRTT    uint32  `yaml:"initialRTT"`
	InitialDevRTT uint32  `yaml:"initialDevRTT"`
	RTTCeiling    uint32  `yaml:"rttCeiling"`
	MaxTimeout    uint32  `yaml:"maxTimeout"`
	RTTGain       float64 `yaml:"rttGain"`
	BackoffFactor float64 `yaml:"backoffFactor"`
	TimeoutFactor float64 `yaml:"timeoutFactor"`

	// Core settings
	MaxSegmentSize       int  `yaml:"maxSegmentSize"`
	PayloadPoolSize      int  `yaml:"payloadPoolSize"`
	PoolDebug            bool `yaml:"poolDebug"`
	ProcessTimeThreshold int  `yaml:"processTimeThreshold"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxAttempts:          10,
		CloseMaxAttempts:     5,
		InitialRTT:           100,
		InitialDevRTT:        10,
		RTTCeiling:           500,
		MaxTimeout:           500,
		RTTGain:              0.125,
		BackoffFactor:        1.2,
		TimeoutFactor:        1.5,
		MaxSegmentSize:       1400,
		PayloadPoolSize:      64,
		PoolDebug:            false,
		ProcessTimeThreshold: 10,
	}
}

// ReadConfig loads the yaml file at path over the defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}
