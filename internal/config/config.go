package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/logcrunch/config.yaml"

// Config holds all logcrunch configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Reports ReportsConfig `yaml:"reports"`
	Filters FiltersConfig `yaml:"filters"`
	ASN     ASNConfig     `yaml:"asn"`
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type ReportsConfig struct {
	WindowDays    int    `yaml:"window_days"`
	TopN          int    `yaml:"top_n"`
	PerDayTopK    int    `yaml:"per_day_top_k"`
	SiteDomain    string `yaml:"site_domain"`
	ArticlePrefix string `yaml:"article_prefix"`
	FeedSuffix    string `yaml:"feed_suffix"`
}

// FiltersConfig carries the traffic-cleaning deny-lists. These are curated
// heuristics inherited from the log source, not an exhaustive bot taxonomy;
// operators are expected to tune them per site.
type FiltersConfig struct {
	AgentDenylist     []string `yaml:"agent_denylist"`
	SpamAgentPatterns []string `yaml:"spam_agent_patterns"`
	ProbePathPrefixes []string `yaml:"probe_path_prefixes"`
	ProbePathSuffixes []string `yaml:"probe_path_suffixes"`
}

type ASNConfig struct {
	PeeringDBURL   string `yaml:"peeringdb_url"`
	SpamhausURL    string `yaml:"spamhaus_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Concurrency    int    `yaml:"concurrency"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// DatabasePath resolves the configured SQLite database location, expanding
// a leading ~ in the storage path.
func (c *Config) DatabasePath() (string, error) {
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, c.Storage.SQLiteFile), nil
}
