package config

const (
	defaultTempDir               = "~/.local/share/neuroskip/tmp"
	defaultDataDir               = "~/.local/share/neuroskip/data"
	defaultLogDir                = "~/.local/share/neuroskip/logs"
	defaultAPIBind               = "127.0.0.1:7910"
	defaultRedisAddr             = "127.0.0.1:6379"
	defaultWhisperBinary         = "whisper-cli"
	defaultWhisperModel          = "base"
	defaultWhisperThreads        = 4
	defaultVADBinary             = "silero-vad"
	defaultVADSampleRate         = 16000
	defaultClassifierURL         = "http://127.0.0.1:11434/api/generate"
	defaultClassifierTimeout     = 15
	defaultLockTTLSeconds        = 3600
	defaultReaperIntervalSeconds = 300
	defaultReaperMaxAgeSeconds   = 300
	defaultQueuePollInterval     = 5
	defaultErrorRetryInterval    = 10
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir: defaultTempDir,
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Redis: Redis{
			Addr: defaultRedisAddr,
		},
		Whisper: Whisper{
			Binary:     defaultWhisperBinary,
			Model:      defaultWhisperModel,
			CPUThreads: defaultWhisperThreads,
		},
		VAD: VAD{
			Binary:     defaultVADBinary,
			SampleRate: defaultVADSampleRate,
		},
		Classifier: Classifier{
			URL:            defaultClassifierURL,
			TimeoutSeconds: defaultClassifierTimeout,
		},
		Workflow: Workflow{
			LockTTLSeconds:     defaultLockTTLSeconds,
			ReaperInterval:     defaultReaperIntervalSeconds,
			ReaperMaxAge:       defaultReaperMaxAgeSeconds,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
