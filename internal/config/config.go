// Package config loads keplersim settings from flags, KEPLERSIM_* environment
// variables and an optional keplersim.yaml file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dylan7474/planetaryLogger/internal/auth"
	"github.com/dylan7474/planetaryLogger/internal/export"
	"github.com/dylan7474/planetaryLogger/internal/horizons"
	"github.com/dylan7474/planetaryLogger/internal/kepler"
)

// EnvPrefix is prepended to every environment variable, e.g. KEPLERSIM_WORKERS.
const EnvPrefix = "KEPLERSIM"

// Config is the validated runtime configuration.
type Config struct {
	Start  time.Time // zero when unset
	End    time.Time // zero when unset
	Epoch  time.Time // zero means "use Start"
	Days   int       // length of a daily log run, 0 when unset
	Output string
	Mode   export.Mode
	Debug  bool

	LogLevel slog.Level

	Workers    int
	SolverName string
	Iterations int
	Tolerance  float64

	Horizons HorizonsConfig
	Cache    CacheConfig
	HTTP     HTTPConfig
	Stream   StreamConfig
	Auth     auth.Config
	MaxDays  int // largest range served by /api/v1/positions
}

// HorizonsConfig holds Horizons client settings.
type HorizonsConfig struct {
	URL     string
	Timeout time.Duration
	Retries int
	Rate    float64 // requests per second
}

// CacheConfig holds the on-disk element cache and in-memory row cache settings.
type CacheConfig struct {
	Dir        string // empty disables the element cache
	MaxFiles   int
	MaxEntries int
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr       string
	TrustProxy bool
	Rate       float64 // requests per second per client IP
	Burst      int
}

// StreamConfig holds SSE position stream settings.
type StreamConfig struct {
	MaxPerIP      int
	MaxTotal      int
	MaxDays       int
	RowsPerSecond float64 // 0 disables pacing
}

var defaults = map[string]any{
	"days":                   0,
	"output":                 "",
	"mode":                   "longitude",
	"debug":                  false,
	"log_level":              "info",
	"workers":                runtime.NumCPU(),
	"solver":                 "fixed",
	"iterations":             kepler.DefaultIterations,
	"tolerance":              1e-10,
	"horizons.url":           horizons.DefaultBaseURL,
	"horizons.timeout":       30 * time.Second,
	"horizons.retries":       3,
	"horizons.rate":          2.0,
	"cache.dir":              "",
	"cache.max_files":        64,
	"cache.max_entries":      4096,
	"http.addr":              ":8080",
	"http.trust_proxy":       false,
	"http.rate":              10.0,
	"http.burst":             20,
	"auth.enabled":           false,
	"auth.token":             "",
	"api.max_days":           3660,
	"stream.max_per_ip":      4,
	"stream.max_total":       256,
	"stream.max_days":        36600,
	"stream.rows_per_second": 0.0,
}

// New returns a viper instance with defaults, environment binding and the
// config file search path set up. Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("keplersim")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "keplersim"))
	}
	return v
}

// ReadFile reads the config file if one exists. A missing file is not an error.
func ReadFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	return nil
}

// Load builds a Config from v. Malformed dates and an incomplete auth setup
// are errors; out-of-range numeric values log a warning and use the default.
func Load(v *viper.Viper, logger *slog.Logger) (Config, error) {
	var cfg Config
	var err error

	if cfg.Start, err = dateValue(v, "start"); err != nil {
		return cfg, err
	}
	if cfg.End, err = dateValue(v, "end"); err != nil {
		return cfg, err
	}
	if cfg.Epoch, err = dateValue(v, "epoch"); err != nil {
		return cfg, err
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return cfg, fmt.Errorf("end %s is before start %s", v.GetString("end"), v.GetString("start"))
	}

	if cfg.Mode, err = export.ParseMode(v.GetString("mode")); err != nil {
		return cfg, err
	}
	cfg.Output = v.GetString("output")
	cfg.Debug = v.GetBool("debug")
	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		logger.Warn("invalid log_level value, using default", "value", v.GetString("log_level"), "default", defaults["log_level"])
		cfg.LogLevel = slog.LevelInfo
	}
	if cfg.Days = v.GetInt("days"); cfg.Days < 0 {
		logger.Warn("invalid days value, will prompt", "value", v.Get("days"))
		cfg.Days = 0
	}

	cfg.Workers = positiveInt(v, logger, "workers")
	cfg.Iterations = positiveInt(v, logger, "iterations")
	cfg.Tolerance = positiveFloat(v, logger, "tolerance")
	cfg.SolverName = strings.ToLower(v.GetString("solver"))
	if cfg.SolverName != "fixed" && cfg.SolverName != "converging" {
		logger.Warn("invalid solver value, using default", "value", cfg.SolverName, "default", defaults["solver"])
		cfg.SolverName = defaults["solver"].(string)
	}

	cfg.Horizons = HorizonsConfig{
		URL:     v.GetString("horizons.url"),
		Timeout: positiveDuration(v, logger, "horizons.timeout"),
		Retries: v.GetInt("horizons.retries"),
		Rate:    positiveFloat(v, logger, "horizons.rate"),
	}
	if cfg.Horizons.Retries < 0 {
		logger.Warn("invalid horizons.retries value, using default", "value", cfg.Horizons.Retries, "default", defaults["horizons.retries"])
		cfg.Horizons.Retries = defaults["horizons.retries"].(int)
	}

	cfg.Cache = CacheConfig{
		Dir:        v.GetString("cache.dir"),
		MaxFiles:   positiveInt(v, logger, "cache.max_files"),
		MaxEntries: positiveInt(v, logger, "cache.max_entries"),
	}

	cfg.HTTP = HTTPConfig{
		Addr:       v.GetString("http.addr"),
		TrustProxy: v.GetBool("http.trust_proxy"),
		Rate:       positiveFloat(v, logger, "http.rate"),
		Burst:      positiveInt(v, logger, "http.burst"),
	}
	cfg.MaxDays = positiveInt(v, logger, "api.max_days")

	cfg.Stream = StreamConfig{
		MaxPerIP: positiveInt(v, logger, "stream.max_per_ip"),
		MaxTotal: positiveInt(v, logger, "stream.max_total"),
		MaxDays:  positiveInt(v, logger, "stream.max_days"),
	}
	if cfg.Stream.RowsPerSecond = v.GetFloat64("stream.rows_per_second"); cfg.Stream.RowsPerSecond < 0 {
		logger.Warn("invalid stream.rows_per_second value, pacing disabled", "value", v.Get("stream.rows_per_second"))
		cfg.Stream.RowsPerSecond = 0
	}

	cfg.Auth = auth.Config{Enabled: v.GetBool("auth.enabled")}
	if cfg.Auth.Enabled {
		cfg.Auth.Token = v.GetString("auth.token")
		if cfg.Auth.Token == "" {
			return cfg, errors.New("KEPLERSIM_AUTH_TOKEN is required when auth is enabled")
		}
	}

	return cfg, nil
}

// Solver returns the Kepler solver selected by the configuration.
func (c Config) Solver() kepler.Solver {
	if c.SolverName == "converging" {
		return kepler.Converging{Tolerance: c.Tolerance, MaxIterations: c.Iterations}
	}
	return kepler.FixedIterations{N: c.Iterations}
}

// EffectiveEpoch is the element epoch: Epoch when set, else Start.
func (c Config) EffectiveEpoch() time.Time {
	if c.Epoch.IsZero() {
		return c.Start
	}
	return c.Epoch
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func dateValue(v *viper.Viper, key string) (time.Time, error) {
	s := v.GetString(key)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func positiveInt(v *viper.Viper, logger *slog.Logger, key string) int {
	n := v.GetInt(key)
	if n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v.Get(key), "default", defaults[key])
		return defaults[key].(int)
	}
	return n
}

func positiveFloat(v *viper.Viper, logger *slog.Logger, key string) float64 {
	f := v.GetFloat64(key)
	if !(f > 0) {
		logger.Warn("invalid "+key+" value, using default", "value", v.Get(key), "default", defaults[key])
		return defaults[key].(float64)
	}
	return f
}

func positiveDuration(v *viper.Viper, logger *slog.Logger, key string) time.Duration {
	d := v.GetDuration(key)
	if d <= 0 {
		logger.Warn("invalid "+key+" value, using default", "value", v.Get(key), "default", defaults[key])
		return defaults[key].(time.Duration)
	}
	return d
}
