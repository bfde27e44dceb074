// Package config loads the YAML configuration into an immutable struct that
// is passed by reference into the router and orchestrator constructors.
// Secrets in the file are environment-variable references (${VAR}) resolved
// once at load time; business logic never consults the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

const (
	defaultDailyTokenLimit = 80_000
	defaultTimeoutSeconds  = 60
	defaultTemperature     = 0.3
	defaultPriority        = 99
)

// ModelEntry configures one model adapter. Lower priority is tried first.
type ModelEntry struct {
	Name            string  `mapstructure:"name"`
	Priority        int     `mapstructure:"priority"`
	DailyTokenLimit int     `mapstructure:"daily_token_limit"`
	APIKey          string  `mapstructure:"api_key"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	Temperature     float64 `mapstructure:"temperature"`
	Model           string  `mapstructure:"model"`
	BaseURL         string  `mapstructure:"base_url"`
	Credentials     string  `mapstructure:"credentials"`
}

// Config is the full application configuration.
type Config struct {
	DBPath    string       `mapstructure:"db_path"`
	OutputDir string       `mapstructure:"output_dir"`
	Models    []ModelEntry `mapstructure:"models"`
}

// DefaultPath returns ~/.librotran/config.yaml, or the LIBROTRAN_CONFIG
// override when set.
func DefaultPath() string {
	if p := os.Getenv("LIBROTRAN_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".librotran", "config.yaml")
}

// modelEntryFile is the on-disk shape of one model entry. Numeric fields are
// pointers so an explicit zero in the file stays distinguishable from an
// absent key.
type modelEntryFile struct {
	Name            string   `mapstructure:"name"`
	Priority        *int     `mapstructure:"priority"`
	DailyTokenLimit *int     `mapstructure:"daily_token_limit"`
	APIKey          string   `mapstructure:"api_key"`
	TimeoutSeconds  *int     `mapstructure:"timeout_seconds"`
	Temperature     *float64 `mapstructure:"temperature"`
	Model           string   `mapstructure:"model"`
	BaseURL         string   `mapstructure:"base_url"`
	Credentials     string   `mapstructure:"credentials"`
}

type configFile struct {
	DBPath    string           `mapstructure:"db_path"`
	OutputDir string           `mapstructure:"output_dir"`
	Models    []modelEntryFile `mapstructure:"models"`
}

// Load reads the YAML file at path (DefaultPath when empty), resolves ${VAR}
// references, applies per-entry defaults and returns the entries sorted by
// ascending priority.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config not found at %s: copy config.example.yaml there first: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var file configFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := &Config{DBPath: file.DBPath, OutputDir: file.OutputDir}
	for _, f := range file.Models {
		cfg.Models = append(cfg.Models, ModelEntry{
			Name:            f.Name,
			Priority:        intOrDefault(f.Priority, defaultPriority),
			DailyTokenLimit: intOrDefault(f.DailyTokenLimit, defaultDailyTokenLimit),
			APIKey:          resolveEnv(f.APIKey),
			TimeoutSeconds:  intOrDefault(f.TimeoutSeconds, defaultTimeoutSeconds),
			Temperature:     floatOrDefault(f.Temperature, defaultTemperature),
			Model:           f.Model,
			BaseURL:         f.BaseURL,
			Credentials:     resolveEnv(f.Credentials),
		})
	}

	sort.SliceStable(cfg.Models, func(i, j int) bool {
		return cfg.Models[i].Priority < cfg.Models[j].Priority
	})

	return cfg, nil
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func floatOrDefault(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// resolveEnv expands a ${VAR} reference from the environment. Plain values
// pass through unchanged.
func resolveEnv(value string) string {
	if !strings.HasPrefix(value, "${") || !strings.HasSuffix(value, "}") {
		return value
	}
	name := strings.TrimSpace(value[2 : len(value)-1])
	return os.Getenv(name)
}
