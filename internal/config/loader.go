package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/example/focusguard/internal/logging"
	"github.com/example/focusguard/internal/persistence/sqlite/migration"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FOCUSGUARD"

// FileEnv names the variable holding an optional YAML or TOML config file.
const FileEnv = EnvPrefix + "_CONFIG_FILE"

// Config captures the settings of the focusguard binary.
type Config struct {
	HTTPAddr          string
	DatabasePath      string
	OwnerID           string
	Location          *time.Location
	ReconcileInterval time.Duration
	BridgeTimeout     time.Duration
	BridgeConcurrency int
	MaxLockMinutes    int
	Log               logging.Config
	RateLimitRPS      float64
	RateLimitBurst    int
	InsightsCacheTTL  time.Duration
}

// SQLite returns the database settings for DatabasePath.
func (c Config) SQLite() migration.SQLiteConfig {
	return migration.DefaultSQLiteConfig(c.DatabasePath)
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		DatabasePath:      "focusguard.db",
		OwnerID:           "local_user",
		Location:          time.Local,
		ReconcileInterval: 60 * time.Second,
		BridgeTimeout:     5 * time.Second,
		BridgeConcurrency: 4,
		MaxLockMinutes:    1440,
		Log:               logging.DefaultConfig(),
		RateLimitRPS:      20,
		RateLimitBurst:    40,
		InsightsCacheTTL:  30 * time.Second,
	}
}

// raw holds unparsed values keyed the same way in files and the environment.
type raw struct {
	HTTPAddr          string `envconfig:"HTTP_ADDR"`
	DatabasePath      string `envconfig:"DATABASE_PATH"`
	OwnerID           string `envconfig:"OWNER_ID"`
	Timezone          string `envconfig:"TIMEZONE"`
	ReconcileInterval string `envconfig:"RECONCILE_INTERVAL"`
	BridgeTimeout     string `envconfig:"BRIDGE_TIMEOUT"`
	BridgeConcurrency string `envconfig:"BRIDGE_CONCURRENCY"`
	MaxLockMinutes    string `envconfig:"MAX_LOCK_MINUTES"`
	LogLevel          string `envconfig:"LOG_LEVEL"`
	LogDevelopment    string `envconfig:"LOG_DEVELOPMENT"`
	RateLimitRPS      string `envconfig:"RATE_LIMIT_RPS"`
	RateLimitBurst    string `envconfig:"RATE_LIMIT_BURST"`
	InsightsCacheTTL  string `envconfig:"INSIGHTS_CACHE_TTL"`
}

func (r *raw) fields() map[string]*string {
	return map[string]*string{
		"HTTP_ADDR":          &r.HTTPAddr,
		"DATABASE_PATH":      &r.DatabasePath,
		"OWNER_ID":           &r.OwnerID,
		"TIMEZONE":           &r.Timezone,
		"RECONCILE_INTERVAL": &r.ReconcileInterval,
		"BRIDGE_TIMEOUT":     &r.BridgeTimeout,
		"BRIDGE_CONCURRENCY": &r.BridgeConcurrency,
		"MAX_LOCK_MINUTES":   &r.MaxLockMinutes,
		"LOG_LEVEL":          &r.LogLevel,
		"LOG_DEVELOPMENT":    &r.LogDevelopment,
		"RATE_LIMIT_RPS":     &r.RateLimitRPS,
		"RATE_LIMIT_BURST":   &r.RateLimitBurst,
		"INSIGHTS_CACHE_TTL": &r.InsightsCacheTTL,
	}
}

// overlay copies every non-empty value of other onto r.
func (r *raw) overlay(other raw) {
	dst := r.fields()
	for key, value := range other.fields() {
		if v := strings.TrimSpace(*value); v != "" {
			*dst[key] = v
		}
	}
}

// Load builds the configuration from defaults, then the optional file named
// by FOCUSGUARD_CONFIG_FILE, then FOCUSGUARD_* environment variables. Every
// invalid value is reported in one error.
func Load() (Config, error) {
	var merged raw

	if path := strings.TrimSpace(os.Getenv(FileEnv)); path != "" {
		fromFile, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		merged.overlay(fromFile)
	}

	var fromEnv raw
	if err := envconfig.Process(EnvPrefix, &fromEnv); err != nil {
		return Config{}, fmt.Errorf("config: read environment: %w", err)
	}
	merged.overlay(fromEnv)

	return merged.parse()
}

// readFile decodes a YAML or TOML file. Keys are matched case-insensitively
// against the environment names without prefix, e.g. http_addr.
func readFile(path string) (raw, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return raw{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	values := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &values)
	case ".toml":
		err = toml.Unmarshal(data, &values)
	default:
		return raw{}, fmt.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return raw{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	var out raw
	fields := out.fields()
	var unknown []string
	for key, value := range values {
		field, ok := fields[strings.ToUpper(key)]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		*field = fmt.Sprint(value)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return raw{}, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(unknown, ", "))
	}
	return out, nil
}

func (r raw) parse() (Config, error) {
	cfg := Default()
	var invalid []string

	if r.HTTPAddr != "" {
		cfg.HTTPAddr = r.HTTPAddr
	}
	if r.DatabasePath != "" {
		cfg.DatabasePath = r.DatabasePath
	}
	if r.OwnerID != "" {
		cfg.OwnerID = r.OwnerID
	}
	if r.Timezone != "" {
		loc, err := time.LoadLocation(r.Timezone)
		if err != nil {
			invalid = append(invalid, "TIMEZONE")
		} else {
			cfg.Location = loc
		}
	}

	positiveDuration := func(key, value string, dst *time.Duration) {
		if value == "" {
			return
		}
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, key)
			return
		}
		*dst = d
	}
	positiveInt := func(key, value string, dst *int) {
		if value == "" {
			return
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			invalid = append(invalid, key)
			return
		}
		*dst = n
	}

	positiveDuration("RECONCILE_INTERVAL", r.ReconcileInterval, &cfg.ReconcileInterval)
	positiveDuration("BRIDGE_TIMEOUT", r.BridgeTimeout, &cfg.BridgeTimeout)
	positiveDuration("INSIGHTS_CACHE_TTL", r.InsightsCacheTTL, &cfg.InsightsCacheTTL)
	positiveInt("BRIDGE_CONCURRENCY", r.BridgeConcurrency, &cfg.BridgeConcurrency)
	positiveInt("MAX_LOCK_MINUTES", r.MaxLockMinutes, &cfg.MaxLockMinutes)
	positiveInt("RATE_LIMIT_BURST", r.RateLimitBurst, &cfg.RateLimitBurst)

	if r.RateLimitRPS != "" {
		rps, err := strconv.ParseFloat(r.RateLimitRPS, 64)
		if err != nil || rps <= 0 {
			invalid = append(invalid, "RATE_LIMIT_RPS")
		} else {
			cfg.RateLimitRPS = rps
		}
	}

	if r.LogLevel != "" {
		switch level := strings.ToLower(r.LogLevel); level {
		case "debug", "info", "warn", "error":
			cfg.Log.Level = level
		default:
			invalid = append(invalid, "LOG_LEVEL")
		}
	}
	if r.LogDevelopment != "" {
		dev, err := strconv.ParseBool(r.LogDevelopment)
		if err != nil {
			invalid = append(invalid, "LOG_DEVELOPMENT")
		} else {
			cfg.Log.Development = dev
		}
	}

	if len(invalid) > 0 {
		prefixed := make([]string, len(invalid))
		for i, key := range invalid {
			prefixed[i] = EnvPrefix + "_" + key
		}
		return Config{}, fmt.Errorf("config: invalid values: %s", strings.Join(prefixed, ", "))
	}
	return cfg, nil
}
