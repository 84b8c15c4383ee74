package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "READLY_"

// Service holds credentials and endpoints for the content service.
type Service struct {
	Token          string  `toml:"token" env:"TOKEN"`
	UserAgent      string  `toml:"user_agent" env:"USER_AGENT"`
	APIURL         string  `toml:"api_url" env:"API_URL"`
	CDNURL         string  `toml:"cdn_url" env:"CDN_URL"`
	Retries        int     `toml:"retries" env:"RETRIES"`
	BackoffSeconds float64 `toml:"backoff_seconds" env:"BACKOFF_SECONDS"`
	TimeoutSeconds int     `toml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	MaxRPS         float64 `toml:"max_rps" env:"MAX_RPS"`
}

// Download is the per-run download configuration. It is passed by value and
// never mutated once a run has started.
type Download struct {
	ImageFormat  string  `toml:"image_format" env:"IMAGE_FORMAT"`
	Quality      int     `toml:"quality" env:"QUALITY"`
	Container    string  `toml:"container_format" env:"CONTAINER_FORMAT"`
	DPI          int     `toml:"dpi" env:"DPI"`
	MaxWidth     int     `toml:"max_width" env:"MAX_WIDTH"`
	Resolution   int     `toml:"resolution" env:"RESOLUTION"`
	Pause        float64 `toml:"pause" env:"PAUSE"`
	MaxDL        int     `toml:"max_dl" env:"MAX_DL"`
	NoClean      bool    `toml:"no_clean" env:"NO_CLEAN"`
	GetArticles  bool    `toml:"get_articles" env:"GET_ARTICLES"`
	ArticlesOnly bool    `toml:"get_articles_only" env:"GET_ARTICLES_ONLY"`
	Output       string  `toml:"output" env:"OUTPUT"`
	Pattern      string  `toml:"pattern" env:"PATTERN"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level" env:"LOG_LEVEL"`
	Format string `toml:"format" env:"LOG_FORMAT"`
}

// History configures the download ledger.
type History struct {
	Enabled bool   `toml:"enabled" env:"HISTORY"`
	Path    string `toml:"path" env:"HISTORY_PATH"`
}

// Config encapsulates all configuration values for readly.
type Config struct {
	Service  Service  `toml:"service"`
	Download Download `toml:"download"`
	Logging  Logging  `toml:"logging"`
	History  History  `toml:"history"`
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the optional TOML file at path (or the default location),
// overlays READLY_* environment variables and validates the result. It
// also reports the resolved path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, "", false, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return expanded, !info.IsDir(), nil
}

// PauseDuration is the delay between two page downloads.
func (d Download) PauseDuration() time.Duration {
	return time.Duration(d.Pause * float64(time.Second))
}

// Backoff is the base retry delay.
func (s Service) Backoff() time.Duration {
	return time.Duration(s.BackoffSeconds * float64(time.Second))
}

// LoadToken returns value itself, or the first line of the file it names.
func LoadToken(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("no token provided")
	}

	path, err := expandPath(value)
	if err != nil {
		return value, nil
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return value, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open token file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		if token := strings.TrimSpace(scanner.Text()); token != "" {
			return token, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return "", fmt.Errorf("token file %s is empty", path)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath applies the same ~ and relative path rules as the config loader.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
