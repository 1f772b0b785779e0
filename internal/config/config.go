// Package config defines the process configuration and its loader.
//
// With no file and no environment overrides, a run behaves exactly like
// the fixed defaults below.
package config

import "runtime"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// AnchorCap bounds how many profiles, in input order, act as the outer
	// side of the pairwise enumeration. Zero or negative disables the cap.
	AnchorCap int `koanf:"anchor_cap"`

	// WorkerCount sets the number of row workers; 1 runs inline.
	WorkerCount int `koanf:"worker_count"`

	// QueueSize bounds the row job queue feeding the workers.
	QueueSize int `koanf:"queue_size"`

	// LogTopN is how many best matches are logged after a run.
	LogTopN int `koanf:"log_top_n"`

	// MetricsFile, when set, receives the run metrics in textfile format.
	MetricsFile string `koanf:"metrics_file"`

	// Weights overrides feature weights by feature name.
	Weights map[string]int `koanf:"weights"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:    "info",
		LogFormat:   "text",
		AnchorCap:   1000,
		WorkerCount: 1,
		QueueSize:   runtime.NumCPU() * 16,
		LogTopN:     10,
	}
}
