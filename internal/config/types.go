package config

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level lyricflow configuration.
type Config struct {
	DataDir   string            `json:"data_dir" yaml:"data_dir"`                     // Root for relative dataset paths
	Datasets  map[string]string `json:"datasets" yaml:"datasets"`                     // Dataset name -> directory
	Database  string            `json:"database,omitempty" yaml:"database,omitempty"` // SQLite result file; empty keeps results in memory
	Scheduler SchedulerConfig   `json:"scheduler" yaml:"scheduler"`
	Retry     RetryConfig       `json:"retry" yaml:"retry"`
	Analysis  AnalysisConfig    `json:"analysis" yaml:"analysis"`
	Logging   LoggingConfig     `json:"logging" yaml:"logging"`
}

// SchedulerConfig controls the round loop.
type SchedulerConfig struct {
	Concurrency int    `json:"concurrency" yaml:"concurrency"` // Max tasks per round running at once (0: unlimited)
	Policy      string `json:"policy" yaml:"policy"`           // "abort" or "isolate"
	MaxRounds   int    `json:"max_rounds" yaml:"max_rounds"`   // 0: unlimited
}

// RetryConfig controls dataset load retries.
type RetryConfig struct {
	InitialInterval Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     Duration `json:"max_interval" yaml:"max_interval"`
	MaxElapsedTime  Duration `json:"max_elapsed_time" yaml:"max_elapsed_time"`
	Multiplier      float64  `json:"multiplier" yaml:"multiplier"`
}

// AnalysisConfig holds the common-word thresholds.
type AnalysisConfig struct {
	MinCount  int `json:"min_count" yaml:"min_count"`   // Combined occurrences must exceed this
	MinLength int `json:"min_length" yaml:"min_length"` // Word length must exceed this
}

// LoggingConfig selects the log level and handler.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`   // debug, info, warn, error
	Format string `json:"format" yaml:"format"` // text or json
}

// Duration is a time.Duration written as a string such as "250ms".
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"1s\": %w", err)
	}
	return d.parse(s)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

func (d *Duration) parse(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
