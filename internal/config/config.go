package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/galois26/event-ingester/internal/model"
)

// Environment variables that win over the YAML file.
const (
	EnvAPIKey    = "GEMINI_API_KEY"
	EnvSourceURL = "EVENT_SOURCE_URL"
)

type SourceConfig struct {
	URL        string        `yaml:"url"`
	Timeout    time.Duration `yaml:"timeout"`
	UserAgent  string        `yaml:"user_agent"`
	MaxRetries int           `yaml:"max_retries"` // attempts per cycle, 1 = no retry
	Backoff    time.Duration `yaml:"backoff"`
}

type WindowConfig struct {
	Start string `yaml:"start"` // YYYY-MM-DD, inclusive
	End   string `yaml:"end"`   // YYYY-MM-DD, inclusive
}

type RefreshConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type EnrichConfig struct {
	BaseURL         string        `yaml:"base_url"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key"` // prefer GEMINI_API_KEY
	Timeout         time.Duration `yaml:"timeout"`
	ChunkSize       int           `yaml:"chunk_size"` // 0 = whole batch in one call
	MaxRetries      int           `yaml:"max_retries"` // attempts per chunk, 1 = no retry
	Backoff         time.Duration `yaml:"backoff"`
	MinInterval     time.Duration `yaml:"min_interval"` // pause between chunk calls
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
}

type OutputConfig struct {
	Path string `yaml:"path"`
}

type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address"` // empty disables serving
	StaticDir     string        `yaml:"static_dir"`
	FallbackPath  string        `yaml:"fallback_path"` // served until the first cycle lands
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

type LogConfig struct {
	File       string `yaml:"file"` // empty = stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Window  WindowConfig  `yaml:"window"`
	Refresh RefreshConfig `yaml:"refresh"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	Output  OutputConfig  `yaml:"output"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

// Load reads the YAML file at path, loads an optional .env from the working
// directory, applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse(b)
}

// Parse is Load without the file system, for tests and embedded configs.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.Enrich.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSourceURL)); v != "" {
		c.Source.URL = v
	}
	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Source.Timeout == 0 {
		c.Source.Timeout = 15 * time.Second
	}
	if c.Source.MaxRetries <= 0 {
		c.Source.MaxRetries = 1
	}
	if c.Source.Backoff == 0 {
		c.Source.Backoff = 500 * time.Millisecond
	}
	if c.Refresh.Interval <= 0 {
		c.Refresh.Interval = 5 * time.Minute
	}
	if c.Enrich.BaseURL == "" {
		c.Enrich.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Enrich.Model == "" {
		c.Enrich.Model = "gemini-2.0-flash"
	}
	if c.Enrich.Timeout == 0 {
		c.Enrich.Timeout = 60 * time.Second
	}
	if c.Enrich.MaxRetries <= 0 {
		c.Enrich.MaxRetries = 1
	}
	if c.Enrich.Backoff == 0 {
		c.Enrich.Backoff = 500 * time.Millisecond
	}
	if c.Enrich.Temperature == 0 {
		c.Enrich.Temperature = 0.2
	}
	if c.Enrich.MaxOutputTokens == 0 {
		c.Enrich.MaxOutputTokens = 8192
	}
	if c.Output.Path == "" {
		c.Output.Path = "data/events.json"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 20
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 5
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 14
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Source.URL) == "" {
		return errors.New("source.url is required")
	}
	w, err := c.ListingWindow()
	if err != nil {
		return err
	}
	if w.End.Before(w.Start) {
		return fmt.Errorf("window.end %s is before window.start %s", c.Window.End, c.Window.Start)
	}
	if c.Enrich.ChunkSize < 0 {
		return errors.New("enrich.chunk_size must not be negative")
	}
	return nil
}

// ListingWindow parses the configured window dates.
func (c *Config) ListingWindow() (model.Window, error) {
	start, err := time.Parse(time.DateOnly, strings.TrimSpace(c.Window.Start))
	if err != nil {
		return model.Window{}, fmt.Errorf("window.start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, strings.TrimSpace(c.Window.End))
	if err != nil {
		return model.Window{}, fmt.Errorf("window.end: %w", err)
	}
	return model.Window{Start: start, End: end}, nil
}
