package testsupport

import (
	"path/filepath"
	"testing"

	"gristmill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Memory.LimitBytes = 1 << 30
	cfg.Memory.SampleInterval = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithMemoryLimit overrides the memory budget on the test config.
func WithMemoryLimit(limitBytes int64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Memory.LimitBytes = limitBytes
	}
}

// WithInitialBatchSize overrides the advisory batch size seed.
func WithInitialBatchSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Queue.InitialBatchSize = size
	}
}
