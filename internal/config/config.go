// Package config loads service settings from defaults, an optional config
// file and the environment.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Faissen/signatures-recognition/internal/signature"
)

// EnvPrefix prefixes every environment override, e.g. SIGID_HTTP_ADDR.
const EnvPrefix = "SIGID"

// ConfigFileEnv names the environment variable pointing at a config file.
const ConfigFileEnv = "SIGID_CONFIG"

// Gallery sources.
const (
	GallerySourceDatabase  = "database"
	GallerySourceDirectory = "directory"
)

// Config is the resolved service configuration.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration

	DatabaseDSN string
	RedisAddr   string
	CacheTTL    time.Duration

	JWTSecret   string
	JWTAudience string

	LogLevel string

	GallerySource    string
	GalleryDir       string
	GalleryNamesFile string

	CanvasWidth             int
	CanvasHeight            int
	MinInkPixels            int
	CursiveContourThreshold int
	CursiveStrategy         string
	AcceptThreshold         float64
	Workers                 int
}

// legacyEnv keeps the unprefixed variable names of earlier deployments bound.
var legacyEnv = map[string]string{
	"database.dsn": "DATABASE_DSN",
	"redis.addr":   "REDIS_ADDR",
	"jwt.secret":   "JWT_SECRET",
	"jwt.audience": "JWT_AUDIENCE",
}

func setDefaults(v *viper.Viper) {
	opts := signature.DefaultOptions()

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("grpc.addr", ":9090")
	v.SetDefault("database.dsn", "host=postgres user=postgres password=postgres dbname=signatures port=5432 sslmode=disable")
	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("cache.ttl", 10*time.Minute)
	v.SetDefault("jwt.secret", "dev-secret")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("gallery.source", GallerySourceDatabase)
	v.SetDefault("gallery.dir", "signatures")
	v.SetDefault("gallery.names_file", "")
	v.SetDefault("canvas.width", opts.CanvasWidth)
	v.SetDefault("canvas.height", opts.CanvasHeight)
	v.SetDefault("quality.min_ink_pixels", opts.MinInkPixels)
	v.SetDefault("cursive.contour_threshold", opts.CursiveContourThreshold)
	v.SetDefault("matching.cursive_strategy", string(opts.CursiveStrategy))
	v.SetDefault("matching.accept_threshold", 60.0)
	v.SetDefault("matching.workers", runtime.GOMAXPROCS(0))
}

// Load resolves the configuration. The file named by SIGID_CONFIG is read
// when set; environment variables win over file values.
func Load() (*Config, error) {
	return load(viper.New(), os.Getenv(ConfigFileEnv))
}

func load(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envKey := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envKey, legacy); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := &Config{
		HTTPAddr:                v.GetString("http.addr"),
		GRPCAddr:                v.GetString("grpc.addr"),
		ShutdownTimeout:         v.GetDuration("http.shutdown_timeout"),
		DatabaseDSN:             v.GetString("database.dsn"),
		RedisAddr:               v.GetString("redis.addr"),
		CacheTTL:                v.GetDuration("cache.ttl"),
		JWTSecret:               v.GetString("jwt.secret"),
		JWTAudience:             v.GetString("jwt.audience"),
		LogLevel:                v.GetString("log.level"),
		GallerySource:           strings.ToLower(v.GetString("gallery.source")),
		GalleryDir:              v.GetString("gallery.dir"),
		GalleryNamesFile:        v.GetString("gallery.names_file"),
		CanvasWidth:             v.GetInt("canvas.width"),
		CanvasHeight:            v.GetInt("canvas.height"),
		MinInkPixels:            v.GetInt("quality.min_ink_pixels"),
		CursiveContourThreshold: v.GetInt("cursive.contour_threshold"),
		CursiveStrategy:         strings.ToLower(v.GetString("matching.cursive_strategy")),
		AcceptThreshold:         v.GetFloat64("matching.accept_threshold"),
		Workers:                 v.GetInt("matching.workers"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that the signature options do not cover.
func (c *Config) Validate() error {
	switch c.GallerySource {
	case GallerySourceDatabase:
	case GallerySourceDirectory:
		if c.GalleryDir == "" {
			return fmt.Errorf("config: gallery.dir is required for the directory source")
		}
	default:
		return fmt.Errorf("config: unknown gallery.source %q", c.GallerySource)
	}
	if c.AcceptThreshold < 0 || c.AcceptThreshold > 100 {
		return fmt.Errorf("config: matching.accept_threshold must be within [0,100], got %v", c.AcceptThreshold)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: http.shutdown_timeout must be positive")
	}
	return c.SignatureOptions().Validate()
}

// SignatureOptions maps the matching settings onto signature.Options. Enrollment
// and identification must share the result.
func (c *Config) SignatureOptions() signature.Options {
	opts := signature.DefaultOptions()
	opts.CanvasWidth = c.CanvasWidth
	opts.CanvasHeight = c.CanvasHeight
	opts.MinInkPixels = c.MinInkPixels
	opts.CursiveContourThreshold = c.CursiveContourThreshold
	opts.CursiveStrategy = signature.CursiveStrategy(c.CursiveStrategy)
	opts.Workers = c.Workers
	return opts
}
