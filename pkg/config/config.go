// Package config loads mevoosm settings from defaults, an optional config
// file, .env files and MEVOOSM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/NERVsystems/mevoosm/pkg/gbfs"
	"github.com/NERVsystems/mevoosm/pkg/osm"
	"github.com/NERVsystems/mevoosm/pkg/overpass"
	"github.com/NERVsystems/mevoosm/pkg/version"
)

// EnvPrefix is the prefix of environment overrides, e.g. MEVOOSM_AREA_NAME
const EnvPrefix = "MEVOOSM"

// DefaultArea labels the report and the Overpass fetch
const DefaultArea = "województwo pomorskie"

type Config struct {
	Run      RunConfig
	Feed     FeedConfig
	Overpass OverpassConfig
	Area     string
	Output   OutputConfig
	Log      LogConfig

	HealthcheckURL string
	PushgatewayURL string
	UserAgent      string

	// ConfigFile is the file that was read, if any
	ConfigFile string
}

// RunConfig controls repetition. A zero Interval performs a single run.
type RunConfig struct {
	Interval time.Duration
}

type FeedConfig struct {
	URL              string
	ClientIdentifier string
}

type OverpassConfig struct {
	URL         string
	RPS         float64
	Burst       int
	Timeout     time.Duration
	MaxParallel int
	CacheSize   int
	CacheTTL    time.Duration
}

type OutputConfig struct {
	Dir     string
	MapSlug string
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("run.interval", time.Duration(0))

	v.SetDefault("feed.url", osm.MevoFeedURL)
	v.SetDefault("feed.client_identifier", gbfs.DefaultClientIdentifier)

	v.SetDefault("overpass.url", osm.OverpassBaseURL)
	v.SetDefault("overpass.rps", overpass.DefaultRPS)
	v.SetDefault("overpass.burst", 1)
	v.SetDefault("overpass.timeout", overpass.DefaultQueryTimeout)
	v.SetDefault("overpass.max_parallel", overpass.DefaultMaxParallel)
	v.SetDefault("overpass.cache_size", overpass.DefaultCacheSize)
	v.SetDefault("overpass.cache_ttl", overpass.DefaultCacheTTL)

	v.SetDefault("area.name", DefaultArea)
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.map_slug", "mevo")
	v.SetDefault("log.level", "info")

	v.SetDefault("healthcheck.url", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("user_agent", version.UserAgent())
}

// Load reads .env files from the working directory and then the
// configuration. Existing environment variables win over .env values,
// and .env.local wins over .env.
func Load() (*Config, error) {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
	return LoadFile("")
}

// LoadFile reads configuration from path, or from mevoosm.yaml in the
// working directory when path is empty. A missing default file is not an
// error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("mevoosm")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Run: RunConfig{
			Interval: v.GetDuration("run.interval"),
		},
		Feed: FeedConfig{
			URL:              v.GetString("feed.url"),
			ClientIdentifier: v.GetString("feed.client_identifier"),
		},
		Overpass: OverpassConfig{
			URL:         v.GetString("overpass.url"),
			RPS:         v.GetFloat64("overpass.rps"),
			Burst:       v.GetInt("overpass.burst"),
			Timeout:     v.GetDuration("overpass.timeout"),
			MaxParallel: v.GetInt("overpass.max_parallel"),
			CacheSize:   v.GetInt("overpass.cache_size"),
			CacheTTL:    v.GetDuration("overpass.cache_ttl"),
		},
		Area: v.GetString("area.name"),
		Output: OutputConfig{
			Dir:     v.GetString("output.dir"),
			MapSlug: v.GetString("output.map_slug"),
		},
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		HealthcheckURL: v.GetString("healthcheck.url"),
		PushgatewayURL: v.GetString("metrics.pushgateway_url"),
		UserAgent:      v.GetString("user_agent"),
		ConfigFile:     v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot produce a run
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url must not be empty")
	}
	if c.Overpass.URL == "" {
		return errors.New("overpass.url must not be empty")
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir must not be empty")
	}
	if c.Run.Interval < 0 {
		return fmt.Errorf("run.interval must not be negative, got %v", c.Run.Interval)
	}
	if c.Overpass.RPS < 0 {
		return fmt.Errorf("overpass.rps must not be negative, got %v", c.Overpass.RPS)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// IndexPath is the location of the main report
func (c *Config) IndexPath() string {
	return filepath.Join(c.Output.Dir, "index.html")
}

// MapPath is the location of the interactive map
func (c *Config) MapPath() string {
	return filepath.Join(c.Output.Dir, "map-"+c.Output.MapSlug+".html")
}

// LogLevel returns the configured slog level
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
