package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultPlaceholder    = "<!-- LINKS WILL BE INJECTED HERE -->"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = "8080"
	DefaultConcurrency    = 8
	DefaultFetchTimeout   = 10 * time.Second
	DefaultMaxBodyBytes   = 2 << 20
	DefaultMaxRedirects   = 5
	DefaultUserAgent      = "Mozilla/5.0 (compatible; sift/1.0)"
	samplePathPlaceholder = "/home/user/.local/share/sift"
)

type Config struct {
	DatabasePath string       `toml:"database_path"`
	TemplatePath string       `toml:"template_path"`
	Placeholder  string       `toml:"placeholder"`
	Web          WebConfig    `toml:"web"`
	Enrich       EnrichConfig `toml:"enrich"`
}

type WebConfig struct {
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	Compress bool   `toml:"compress"`
}

type EnrichConfig struct {
	Concurrency       int      `toml:"concurrency"`
	FetchTimeout      Duration `toml:"fetch_timeout"`
	MaxBodyBytes      int64    `toml:"max_body_bytes"`
	MaxRedirects      int      `toml:"max_redirects"`
	UserAgent         string   `toml:"user_agent"`
	RequestsPerSecond float64  `toml:"requests_per_second"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Addr returns the host:port the web server listens on.
func (w WebConfig) Addr() string {
	return w.Host + ":" + w.Port
}

func GetDefaultConfig() (*Config, error) {
	dataDir, err := GetDefaultDataDir()
	if err != nil {
		return nil, fmt.Errorf("getting default data directory: %w", err)
	}
	cfg := &Config{
		DatabasePath: filepath.Join(dataDir, "index.db"),
		TemplatePath: filepath.Join(dataDir, "frontend", "search.html"),
		Web:          WebConfig{Compress: true},
	}
	cfg.applyDefaults()
	return cfg, nil
}

func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return GetDefaultConfig()
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes a TOML document and fills in defaults for every unset value.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.DatabasePath == "" || cfg.TemplatePath == "" {
		dataDir, err := GetDefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("getting default data directory: %w", err)
		}
		if cfg.DatabasePath == "" {
			cfg.DatabasePath = filepath.Join(dataDir, "index.db")
		}
		if cfg.TemplatePath == "" {
			cfg.TemplatePath = filepath.Join(dataDir, "frontend", "search.html")
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	if c.Web.Host == "" {
		c.Web.Host = DefaultHost
	}
	if c.Web.Port == "" {
		c.Web.Port = DefaultPort
	}
	if c.Enrich.Concurrency <= 0 {
		c.Enrich.Concurrency = DefaultConcurrency
	}
	if c.Enrich.FetchTimeout.Duration <= 0 {
		c.Enrich.FetchTimeout = Duration{DefaultFetchTimeout}
	}
	if c.Enrich.MaxBodyBytes <= 0 {
		c.Enrich.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if c.Enrich.MaxRedirects <= 0 {
		c.Enrich.MaxRedirects = DefaultMaxRedirects
	}
	if c.Enrich.UserAgent == "" {
		c.Enrich.UserAgent = DefaultUserAgent
	}
	if c.Enrich.RequestsPerSecond < 0 {
		c.Enrich.RequestsPerSecond = 0
	}
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration, pointing its
// paths at the directory holding the configured database.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	dataDir := filepath.Dir(c.DatabasePath)
	template := strings.ReplaceAll(configTemplate, samplePathPlaceholder, dataDir)
	return os.WriteFile(configPath, []byte(template), 0644)
}

// GetDefaultDataDir returns $XDG_DATA_HOME/sift (or ~/.local/share/sift),
// creating it if needed.
func GetDefaultDataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	siftDir := filepath.Join(dataDir, "sift")
	if err := os.MkdirAll(siftDir, 0755); err != nil {
		return "", fmt.Errorf("creating data directory %s: %w", siftDir, err)
	}

	return siftDir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/sift (or ~/.config/sift), creating it
// if needed.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	siftConfigDir := filepath.Join(configDir, "sift")
	if err := os.MkdirAll(siftConfigDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", siftConfigDir, err)
	}

	return siftConfigDir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
