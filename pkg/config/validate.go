package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.Download.Validate(); err != nil {
		return err
	}
	if c.Service.MaxRPS < 0 {
		return errors.New("service.max_rps must be >= 0")
	}
	if c.Service.BackoffSeconds < 0 {
		return errors.New("service.backoff_seconds must be >= 0")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// Validate rejects out-of-range download settings. Call it on a
// normalized value.
func (d Download) Validate() error {
	switch d.ImageFormat {
	case "jpeg", "webp":
	default:
		return fmt.Errorf("download.image_format must be jpeg or webp, got %q", d.ImageFormat)
	}
	switch d.Container {
	case "pdf", "cbz", "epub":
	default:
		return fmt.Errorf("download.container_format must be pdf, cbz or epub, got %q", d.Container)
	}
	if d.Quality < 1 || d.Quality > 100 {
		return fmt.Errorf("download.quality must be between 1 and 100, got %d", d.Quality)
	}
	if d.DPI < 0 {
		return errors.New("download.dpi must be >= 0")
	}
	if d.MaxWidth < 0 {
		return errors.New("download.max_width must be >= 0")
	}
	if d.Resolution < 1 {
		return errors.New("download.resolution must be positive")
	}
	if d.Pause < 0 {
		return errors.New("download.pause must be >= 0")
	}
	if d.MaxDL < 1 {
		return errors.New("download.max_dl must be >= 1")
	}
	return nil
}
