package config

const (
	defaultDataDir            = "~/.local/share/minimill"
	defaultLogDir             = "~/.local/share/minimill/logs"
	defaultAPIBind            = "127.0.0.1:7490"
	defaultStoreDriver        = "sqlite"
	defaultMaxFileMiB         = 500
	defaultMode               = "6mm"
	defaultMinutesPerFile     = 2
	defaultDurationSeconds    = 30
	defaultProgressIntervalMS = 100
	defaultStatusPollMS       = 2000
	defaultClockIntervalMS    = 1000
	defaultStartLatencyMS     = 1500
	defaultPollLatencyMS      = 500
	defaultResultsLatencyMS   = 1000
	defaultCompletionDelayMS  = 2000
	defaultCancelDelayMS      = 1500
	defaultRedirectDelayMS    = 2000
	defaultBackendBaseURL     = "http://localhost:3000/api"
	defaultBackendTimeout     = 30
	defaultNotifyTimeout      = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultLogRetentionDays   = 30
	envAPIToken               = "MINIMILL_API_TOKEN"
	envStoreDSN               = "MINIMILL_STORE_DSN"
	envNtfyTopic              = "MINIMILL_NTFY_TOPIC"
)

// DefaultAllowedTypes lists the MIME types the upload stage accepts.
var DefaultAllowedTypes = []string{
	"video/mp4",
	"video/avi",
	"video/mov",
	"video/wmv",
	"video/mkv",
	"video/webm",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	allowed := make([]string, len(DefaultAllowedTypes))
	copy(allowed, DefaultAllowedTypes)
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Upload: Upload{
			MaxFileMiB:   defaultMaxFileMiB,
			AllowedTypes: allowed,
		},
		Processing: Processing{
			DefaultMode:              defaultMode,
			DefaultHighQuality:       true,
			DefaultEmailNotification: false,
			MinutesPerFile:           defaultMinutesPerFile,
		},
		Simulation: Simulation{
			DurationSeconds:    defaultDurationSeconds,
			ProgressIntervalMS: defaultProgressIntervalMS,
			StatusPollMS:       defaultStatusPollMS,
			ClockIntervalMS:    defaultClockIntervalMS,
			StartLatencyMS:     defaultStartLatencyMS,
			PollLatencyMS:      defaultPollLatencyMS,
			ResultsLatencyMS:   defaultResultsLatencyMS,
			CompletionDelayMS:  defaultCompletionDelayMS,
			CancelDelayMS:      defaultCancelDelayMS,
			RedirectDelayMS:    defaultRedirectDelayMS,
		},
		Backend: Backend{
			BaseURL:        defaultBackendBaseURL,
			RequestTimeout: defaultBackendTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
