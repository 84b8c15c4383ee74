package config

import (
	"strings"
)

func (c *Config) normalize() error {
	c.Service.normalize()
	c.Download = c.Download.Normalize()
	c.normalizeLogging()

	if c.History.Path != "" {
		expanded, err := expandPath(c.History.Path)
		if err != nil {
			return err
		}
		c.History.Path = expanded
	}
	return nil
}

func (s *Service) normalize() {
	s.Token = strings.TrimSpace(s.Token)
	s.APIURL = strings.TrimRight(strings.TrimSpace(s.APIURL), "/")
	s.CDNURL = strings.TrimRight(strings.TrimSpace(s.CDNURL), "/")
	if s.APIURL == "" {
		s.APIURL = defaultAPIURL
	}
	if s.CDNURL == "" {
		s.CDNURL = defaultCDNURL
	}
	if s.UserAgent == "" {
		s.UserAgent = defaultUserAgent
	}
	if s.Retries <= 0 {
		s.Retries = defaultRetries
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultTimeoutSeconds
	}
}

// Normalize returns a copy with empty fields set to their defaults and
// formats lower-cased. Articles-only runs never clean their working sets.
func (d Download) Normalize() Download {
	d.ImageFormat = strings.ToLower(strings.TrimSpace(d.ImageFormat))
	if d.ImageFormat == "jpg" {
		d.ImageFormat = "jpeg"
	}
	if d.ImageFormat == "" {
		d.ImageFormat = defaultImageFormat
	}
	d.Container = strings.ToLower(strings.TrimSpace(d.Container))
	if d.Container == "" {
		d.Container = defaultContainer
	}
	if d.Quality == 0 {
		d.Quality = defaultQuality
	}
	if d.Resolution == 0 {
		d.Resolution = defaultResolution
	}
	if d.MaxDL == 0 {
		d.MaxDL = defaultMaxDL
	}
	if strings.TrimSpace(d.Output) == "" {
		d.Output = defaultOutput
	}
	if d.Pattern == "" {
		d.Pattern = defaultPattern
	}
	if d.ArticlesOnly {
		d.GetArticles = true
		d.NoClean = true
	}
	return d
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}
