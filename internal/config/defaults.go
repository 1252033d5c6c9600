package config

import (
	"time"
)

// DefaultConfig returns the built-in configuration: the two lyric datasets
// under data/, abort-on-failure scheduling and the stock analysis thresholds.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "data",
		Datasets: map[string]string{
			"taylor":   "taylor-lyrics",
			"coldplay": "coldplay-lyrics",
		},
		Scheduler: SchedulerConfig{
			Concurrency: 0,
			Policy:      "abort",
			MaxRounds:   100,
		},
		Retry: RetryConfig{
			InitialInterval: Duration(100 * time.Millisecond),
			MaxInterval:     Duration(2 * time.Second),
			MaxElapsedTime:  Duration(30 * time.Second),
			Multiplier:      2.0,
		},
		Analysis: AnalysisConfig{
			MinCount:  100,
			MinLength: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
