package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Sources     []Source    `yaml:"sources"`
	Aggregation Aggregation `yaml:"aggregation"`
	Cache       Cache       `yaml:"cache"`
	Ranking     Ranking     `yaml:"ranking"`
	Backfill    Backfill    `yaml:"backfill"`
	Audit       Audit       `yaml:"audit"`
	Output      Output      `yaml:"output"`
	Server      Server      `yaml:"server"`
	Logging     Logging     `yaml:"logging"`
}

// Source configures one news provider.
type Source struct {
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	Tier          string `yaml:"tier"`
	Endpoint      string `yaml:"endpoint"`
	APIKeyEnv     string `yaml:"api_key_env"`
	RatePerMinute int    `yaml:"rate_per_minute"`
	Disabled      bool   `yaml:"disabled"`
}

type Aggregation struct {
	FallbackFloor    int           `yaml:"fallback_floor"`
	DefaultLimit     int           `yaml:"default_limit"`
	SourceTimeout    time.Duration `yaml:"source_timeout"`
	EmergencyContent bool          `yaml:"emergency_content"`
}

type Cache struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type Ranking struct {
	CredibleSources []string `yaml:"credible_sources"`
}

type Backfill struct {
	Enabled     bool          `yaml:"enabled"`
	MaxArticles int           `yaml:"max_articles"`
	Timeout     time.Duration `yaml:"timeout"`
}

type Audit struct {
	Enabled bool `yaml:"enabled"`
	Buffer  int  `yaml:"buffer"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for newsrelay.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "newsrelay")
}

// DataDir returns the XDG data directory for newsrelay.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "newsrelay")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/newsrelay/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'newsrelay init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration embedded in the binary.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config is invalid: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Sources: []Source{
			{Name: "newsapi", Kind: "newsapi", Tier: "primary", APIKeyEnv: "NEWSAPI_KEY"},
			{Name: "newsdata", Kind: "newsdata", Tier: "primary", APIKeyEnv: "NEWSDATA_API_KEY"},
			{Name: "mediastack", Kind: "mediastack", Tier: "fallback", APIKeyEnv: "MEDIASTACK_API_KEY"},
			{Name: "gnews", Kind: "gnews", Tier: "fallback", APIKeyEnv: "GNEWS_API_KEY"},
		},
		Aggregation: Aggregation{
			FallbackFloor:    10,
			DefaultLimit:     50,
			SourceTimeout:    10 * time.Second,
			EmergencyContent: true,
		},
		Cache: Cache{
			TTL:        30 * time.Minute,
			MaxEntries: 256,
		},
		Backfill: Backfill{
			Enabled:     false,
			MaxArticles: 5,
			Timeout:     15 * time.Second,
		},
		Audit:   Audit{Enabled: true, Buffer: 64},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, s := range c.Sources {
		if s.Kind == "" {
			return fmt.Errorf("sources[%d]: kind is required", i)
		}
		name := s.Name
		if name == "" {
			name = s.Kind
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, name)
		}
		seen[name] = struct{}{}
	}
	if c.Aggregation.FallbackFloor < 0 {
		return fmt.Errorf("aggregation.fallback_floor must not be negative")
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
