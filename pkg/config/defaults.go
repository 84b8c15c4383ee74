package config

const (
	defaultConfigPath     = "~/.config/readly/config.toml"
	defaultHistoryPath    = "~/.local/share/readly/history.duckdb"
	defaultAPIURL         = "https://api.readly.com"
	defaultCDNURL         = "https://d3og6tlt23zks5.cloudfront.net"
	defaultUserAgent      = "okhttp/3.12.1"
	defaultRetries        = 3
	defaultBackoffSeconds = 1
	defaultTimeoutSeconds = 30
	defaultImageFormat    = "jpeg"
	defaultQuality        = 70
	defaultContainer      = "pdf"
	defaultResolution     = 2400
	defaultMaxDL          = 1
	defaultOutput         = "DOWNLOADS"
	defaultPattern        = "title - issue (date)"
	defaultLogLevel       = "info"
	defaultLogFormat      = "console"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			UserAgent:      defaultUserAgent,
			APIURL:         defaultAPIURL,
			CDNURL:         defaultCDNURL,
			Retries:        defaultRetries,
			BackoffSeconds: defaultBackoffSeconds,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Download: DefaultDownload(),
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
	}
}

// DefaultDownload returns the download settings used when nothing is configured.
func DefaultDownload() Download {
	return Download{
		ImageFormat: defaultImageFormat,
		Quality:     defaultQuality,
		Container:   defaultContainer,
		Resolution:  defaultResolution,
		MaxDL:       defaultMaxDL,
		Output:      defaultOutput,
		Pattern:     defaultPattern,
	}
}
