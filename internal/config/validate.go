package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate rejects configurations the scheduler cannot run with. Target
// throughput is deliberately unchecked: it is informational only.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir is required")
	}
	if c.Memory.LimitBytes <= 0 {
		problems = append(problems, fmt.Sprintf("memory.limit_bytes must be positive, got %d", c.Memory.LimitBytes))
	}
	if c.Memory.SampleInterval <= 0 {
		problems = append(problems, fmt.Sprintf("memory.sample_interval must be positive, got %d", c.Memory.SampleInterval))
	}
	if c.Queue.InitialBatchSize < 1 {
		problems = append(problems, fmt.Sprintf("queue.initial_batch_size must be at least 1, got %d", c.Queue.InitialBatchSize))
	}
	if c.Queue.PollInterval <= 0 {
		problems = append(problems, fmt.Sprintf("queue.poll_interval must be positive, got %d", c.Queue.PollInterval))
	}
	if format := strings.ToLower(strings.TrimSpace(c.Logging.Format)); format != "" {
		if _, ok := validLogFormats[format]; !ok {
			problems = append(problems, fmt.Sprintf("logging.format must be console or json, got %q", c.Logging.Format))
		}
	}
	if level := strings.ToLower(strings.TrimSpace(c.Logging.Level)); level != "" {
		if _, ok := validLogLevels[level]; !ok {
			problems = append(problems, fmt.Sprintf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level))
		}
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
