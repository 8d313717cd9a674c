package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"agrifood.ai/internal/sim/scenario"
	"agrifood.ai/internal/sim/tuning"
)

type app struct {
	configDir string
	debug     bool
	logFormat string

	log *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}
	root := &cobra.Command{
		Use:          "afpcalc",
		Short:        "Food system scenario calculator",
		Long:         "afpcalc projects a national food balance under intervention levers and reports emissions, land use and sequestration.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "configs", "./configs", "config directory")
	pf.BoolVar(&a.debug, "debug", false, "debug logging")
	pf.StringVar(&a.logFormat, "log-format", "json", "log encoding: json or console")

	root.AddCommand(
		newRunCmd(a),
		newServeCmd(a),
		newBaselineCmd(a),
		newPresetsCmd(a),
	)
	return root
}

func (a *app) initLogger() error {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(strings.TrimSpace(a.logFormat)) {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	default:
		return fmt.Errorf("unknown --log-format %q", a.logFormat)
	}
	if a.debug {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.log = l
	return nil
}

// tuning reads <configs>/tuning.yaml, falling back to the defaults when the
// file is absent.
func (a *app) tuning() (tuning.Tuning, error) {
	p := filepath.Join(a.configDir, "tuning.yaml")
	t, err := tuning.Load(p)
	if errors.Is(err, os.ErrNotExist) {
		a.log.Info("tuning not found; using defaults", zap.String("path", p))
		return tuning.Load("")
	}
	return t, err
}

// presets reads <configs>/scenarios.yaml, falling back to the bundled set.
func (a *app) presets() (*scenario.Presets, error) {
	p := filepath.Join(a.configDir, "scenarios.yaml")
	ps, err := scenario.LoadPresets(p)
	if errors.Is(err, os.ErrNotExist) {
		a.log.Info("scenarios not found; using bundled presets", zap.String("path", p))
		return scenario.LoadPresets("")
	}
	return ps, err
}
