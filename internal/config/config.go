// Package config loads runtime settings from an optional config file and
// OPSC_* environment variables. Invalid values are logged and replaced by
// defaults; only settings that would make the process unsafe are errors.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/Danselem/dara-opsc/internal/auth"
	"github.com/Danselem/dara-opsc/internal/geo"
)

// EnvPrefix is the prefix for environment overrides: http.addr is read from
// OPSC_HTTP_ADDR.
const EnvPrefix = "OPSC"

// DefaultObserver is the ground station used when a pass request names none.
var DefaultObserver = geo.Observer{LatDeg: -20.28333333, LonDeg: 57.55, ElevationM: 0}

// Config holds all runtime settings.
type Config struct {
	LogLevel slog.Level
	HTTP     HTTPConfig
	Auth     auth.Config
	Observer geo.Observer
	Workers  int
	TLE      TLEConfig
}

// HTTPConfig configures the daemon's listener.
type HTTPConfig struct {
	Addr         string
	MaxBodyBytes int64
	TrustProxy   bool
}

// TLEConfig configures the optional remote element-set source.
type TLEConfig struct {
	SourceURL string
	ExtraURLs []string
	CacheDir  string
	MaxFiles  int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.trust_proxy", false)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.token", "")
	v.SetDefault("observer.latitude", DefaultObserver.LatDeg)
	v.SetDefault("observer.longitude", DefaultObserver.LonDeg)
	v.SetDefault("observer.elevation_m", DefaultObserver.ElevationM)
	v.SetDefault("propagation.workers", runtime.NumCPU())
	v.SetDefault("tle.source_url", "")
	v.SetDefault("tle.extra_urls", []string{})
	v.SetDefault("tle.cache_dir", filepath.Join(os.TempDir(), "opsc", "tle"))
	v.SetDefault("tle.max_files", 5)
}

// Load reads settings. path names a config file (any format viper supports);
// when empty, OPSC_CONFIG is consulted, and with neither only defaults and the
// environment apply.
func Load(path string, logger *slog.Logger) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		logger.Info("config file loaded", "path", v.ConfigFileUsed())
	}

	cfg := Config{
		LogLevel: loadLogLevel(v, logger),
		HTTP:     loadHTTPConfig(v, logger),
		Observer: loadObserver(v, logger),
		Workers:  loadWorkers(v, logger),
		TLE:      loadTLEConfig(v, logger),
	}

	authCfg, err := loadAuthConfig(v, logger)
	if err != nil {
		return Config{}, err
	}
	cfg.Auth = authCfg

	return cfg, nil
}

// ParseLevel maps debug/info/warn/error to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(strings.TrimSpace(s)))
	return l, err
}

func loadLogLevel(v *viper.Viper, logger *slog.Logger) slog.Level {
	s := v.GetString("log.level")
	l, err := ParseLevel(s)
	if err != nil {
		logger.Warn("invalid log.level value, using default", "value", s, "default", "info")
		return slog.LevelInfo
	}
	return l
}

func loadHTTPConfig(v *viper.Viper, logger *slog.Logger) HTTPConfig {
	cfg := HTTPConfig{
		Addr:         v.GetString("http.addr"),
		MaxBodyBytes: v.GetInt64("http.max_body_bytes"),
		TrustProxy:   v.GetBool("http.trust_proxy"),
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxBodyBytes < 1 {
		logger.Warn("invalid http.max_body_bytes value, using default", "value", v.Get("http.max_body_bytes"), "default", 10<<20)
		cfg.MaxBodyBytes = 10 << 20
	}
	return cfg
}

func loadAuthConfig(v *viper.Viper, logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{
		Enabled: v.GetBool("auth.enabled"),
	}
	if cfg.Enabled {
		cfg.Token = v.GetString("auth.token")
		if cfg.Token == "" {
			return cfg, errors.New("auth.token (OPSC_AUTH_TOKEN) is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return cfg, nil
}

func loadObserver(v *viper.Viper, logger *slog.Logger) geo.Observer {
	obs := geo.Observer{
		LatDeg:     v.GetFloat64("observer.latitude"),
		LonDeg:     v.GetFloat64("observer.longitude"),
		ElevationM: v.GetFloat64("observer.elevation_m"),
	}
	if !obs.Valid() {
		logger.Warn("invalid observer location, using default",
			"latitude", obs.LatDeg,
			"longitude", obs.LonDeg,
			"elevation_m", obs.ElevationM,
		)
		return DefaultObserver
	}
	return obs
}

func loadWorkers(v *viper.Viper, logger *slog.Logger) int {
	n := v.GetInt("propagation.workers")
	if n < 1 {
		logger.Warn("invalid propagation.workers value, using default", "value", v.Get("propagation.workers"), "default", runtime.NumCPU())
		return runtime.NumCPU()
	}
	return n
}

func loadTLEConfig(v *viper.Viper, logger *slog.Logger) TLEConfig {
	cfg := TLEConfig{
		SourceURL: strings.TrimSpace(v.GetString("tle.source_url")),
		CacheDir:  v.GetString("tle.cache_dir"),
		MaxFiles:  v.GetInt("tle.max_files"),
	}

	// Environment values arrive as one comma-separated string.
	for _, s := range v.GetStringSlice("tle.extra_urls") {
		for _, u := range strings.Split(s, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.ExtraURLs = append(cfg.ExtraURLs, u)
			}
		}
	}

	if cfg.MaxFiles < 1 {
		logger.Warn("invalid tle.max_files value, using default", "value", v.Get("tle.max_files"), "default", 5)
		cfg.MaxFiles = 5
	}
	return cfg
}
