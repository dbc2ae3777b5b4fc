package config

const (
	defaultDataDir          = "~/.local/share/gristmill"
	defaultLogDir           = "~/.local/share/gristmill/logs"
	defaultInitialBatchSize = 8
	defaultTargetThroughput = 12.0
	defaultPollInterval     = 5
	defaultMemoryLimitBytes = 8 << 30
	defaultSampleInterval   = 5
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Queue: Queue{
			InitialBatchSize: defaultInitialBatchSize,
			TargetThroughput: defaultTargetThroughput,
			PollInterval:     defaultPollInterval,
		},
		Memory: Memory{
			LimitBytes:     defaultMemoryLimitBytes,
			SampleInterval: defaultSampleInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
