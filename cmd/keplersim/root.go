package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dylan7474/planetaryLogger/internal/config"
	"github.com/dylan7474/planetaryLogger/internal/horizons"
	"github.com/dylan7474/planetaryLogger/internal/metrics"
	"github.com/dylan7474/planetaryLogger/internal/propagation"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v      *viper.Viper
	logger *slog.Logger
	level  *slog.LevelVar
	cfg    config.Config
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	a := &app{v: config.New(), logger: logger, level: level}

	root := &cobra.Command{
		Use:   "keplersim",
		Short: "Two-body planetary position simulator backed by JPL Horizons",
		Long: `keplersim fetches heliocentric osculating elements from JPL Horizons and
propagates them day by day with Kepler's equation. Without a subcommand it
runs "simulate".`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSimulate(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default: ./keplersim.yaml or ~/.config/keplersim/keplersim.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Int("workers", 0, "propagation workers (default: number of CPUs)")
	pf.String("solver", "fixed", "Kepler solver: fixed or converging")
	pf.Int("iterations", 10, "Newton passes (fixed) or iteration cap (converging)")
	pf.Float64("tolerance", 1e-10, "convergence tolerance in radians (converging solver)")
	pf.String("horizons-url", horizons.DefaultBaseURL, "Horizons API endpoint")
	pf.String("cache-dir", "", "directory for cached Horizons responses (empty disables)")
	pf.Bool("debug", false, "dump raw Horizons responses to stderr")

	addSimulateFlags(root.Flags())

	root.AddCommand(
		newSimulateCmd(a),
		newLogCmd(a),
		newElementsCmd(a),
		newServeCmd(a),
	)
	return root
}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"log-level":    "log_level",
	"horizons-url": "horizons.url",
	"cache-dir":    "cache.dir",
	"addr":         "http.addr",
	"trust-proxy":  "http.trust_proxy",
	"max-days":     "api.max_days",
}

// bindFlags binds every flag of fs to its config key, so explicitly set flags
// override environment and file values.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || f.Name == "help" || err != nil {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// load resolves the configuration for cmd.
func (a *app) load(cmd *cobra.Command) error {
	if err := bindFlags(a.v, cmd.Flags()); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.v.SetConfigFile(path)
	}
	if err := config.ReadFile(a.v); err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("config file loaded", "path", used)
	}

	cfg, err := config.Load(a.v, a.logger)
	if err != nil {
		return err
	}
	a.level.Set(cfg.LogLevel)
	a.cfg = cfg

	a.logger.Debug("config",
		"workers", cfg.Workers,
		"solver", cfg.SolverName,
		"iterations", cfg.Iterations,
		"horizons_url", cfg.Horizons.URL,
		"cache_dir", cfg.Cache.Dir,
	)
	return nil
}

// provider builds the Horizons provider. Raw responses go to debugOut when
// debug output is enabled.
func (a *app) provider(debugOut io.Writer) *horizons.Provider {
	cc := horizons.ClientConfig{
		BaseURL:           a.cfg.Horizons.URL,
		Timeout:           a.cfg.Horizons.Timeout,
		Retries:           a.cfg.Horizons.Retries,
		RequestsPerSecond: a.cfg.Horizons.Rate,
	}
	if a.cfg.Debug {
		cc.DebugOut = debugOut
	}

	var cache *horizons.Cache
	if a.cfg.Cache.Dir != "" {
		cache = horizons.NewCache(a.cfg.Cache.Dir, a.cfg.Cache.MaxFiles)
	}
	return horizons.NewProvider(horizons.NewClient(cc, a.logger), cache, a.logger)
}

func (a *app) generator() *propagation.Generator {
	return propagation.NewGenerator(propagation.Config{
		Workers: a.cfg.Workers,
		Solver:  a.cfg.Solver(),
	}, a.logger)
}

// recordSet publishes element set gauges.
func recordSet(bodies int) {
	metrics.SetBodies(bodies)
	metrics.SetElementSetAge(0)
}
