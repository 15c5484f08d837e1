package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"menuqa/pricevalidator/config"
	"menuqa/pricevalidator/logger"
)

// Exit codes reported to the calling shell.
const (
	exitOK           = 0
	exitDiscrepancy  = 1
	exitMissingInput = 2
	exitValidation   = 3
	exitUnexpected   = 4
	exitInterrupted  = 130
)

// exitError carries a process exit code through cobra's error path.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) *exitError {
	return &exitError{code: code, err: err}
}

type cliFlags struct {
	locationsFile string
	expectedFile  string
	masterFile    string
	outputDir     string
	snapshotDir   string
	province      string
	tolerance     string
	cartPrices    bool
	headless      bool
	safeMode      bool
	maxConcurrent int
}

func main() {
	godotenv.Load()
	logger.Init()

	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			if ee.err != nil {
				logger.Default.Error().Err(ee.err).Msg("Run failed")
			}
			os.Exit(ee.code)
		}
		logger.Default.Error().Err(err).Msg("Run failed")
		os.Exit(exitUnexpected)
	}
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "pricevalidator",
		Short:         "Verifies published menu prices against expected pricing",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, flags)
			if err != nil {
				return exitWith(exitValidation, err)
			}
			return runCLI(cmd.Context(), cfg, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.locationsFile, "locations", "", "locations YAML file")
	pf.StringVar(&flags.expectedFile, "expected", "", "expected-price workbook (flat format)")
	pf.StringVar(&flags.masterFile, "master", "", "master pricing document (overrides --expected)")
	pf.StringVar(&flags.outputDir, "output", "", "report output directory")
	pf.StringVar(&flags.snapshotDir, "snapshots", "", "diagnostic snapshot directory")
	pf.StringVar(&flags.province, "province", "", "restrict the run to one province code")
	pf.StringVar(&flags.tolerance, "tolerance", "", "price-match tolerance in dollars")
	pf.BoolVar(&flags.cartPrices, "cart", false, "verify prices through the checkout cart")
	pf.BoolVar(&flags.headless, "headless", true, "run the browser headless")
	pf.BoolVar(&flags.safeMode, "safe-mode", true, "clamp concurrency and widen delays")
	pf.IntVar(&flags.maxConcurrent, "concurrency", 0, "maximum concurrent locations")

	root.AddCommand(newServeCmd(flags))
	return root
}

func newServeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Starts the web dashboard for triggering runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, flags)
			if err != nil {
				return exitWith(exitValidation, err)
			}
			return runServer(cmd.Context(), cfg, flags)
		},
	}
}

// buildConfig loads the env-backed configuration and lays explicitly set CLI
// flags over it.
func buildConfig(cmd *cobra.Command, flags *cliFlags) (*config.Config, error) {
	cfg := config.LoadConfig()

	set := cmd.Flags().Changed
	if set("locations") {
		cfg.LocationsFile = flags.locationsFile
	}
	if set("expected") {
		cfg.ExpectedFile = flags.expectedFile
	}
	if set("master") {
		cfg.MasterFile = flags.masterFile
	}
	if set("output") {
		cfg.OutputDir = flags.outputDir
	}
	if set("snapshots") {
		cfg.SnapshotDir = flags.snapshotDir
	}
	if set("cart") {
		cfg.CartPrices = flags.cartPrices
	}
	if set("headless") {
		cfg.Headless = flags.headless
	}
	if set("safe-mode") {
		cfg.SafeMode = flags.safeMode
	}
	if set("concurrency") {
		cfg.MaxConcurrent = flags.maxConcurrent
	}
	if set("tolerance") {
		tolerance, err := decimal.NewFromString(flags.tolerance)
		if err != nil {
			return nil, fmt.Errorf("invalid --tolerance %q: %w", flags.tolerance, err)
		}
		cfg.Tolerance = tolerance
	}

	cfg.ApplySafeMode()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
