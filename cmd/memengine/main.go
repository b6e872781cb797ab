// Command memengine is a CLI front-end over the associative memory engine.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memengine/internal/clock"
	"memengine/internal/config"
	"memengine/internal/engine"
)

var (
	verbose    bool
	stateDir   string
	configPath string
	timeout    time.Duration

	logger *zap.Logger
	eng    *engine.Engine
)

// userError marks an error as the caller's fault (bad arguments, unknown
// item id) so main can map it to exit code 1 instead of 2.
type userError struct{ err error }

func (u *userError) Error() string { return u.err.Error() }
func (u *userError) Unwrap() error { return u.err }

func userErrf(format string, args ...interface{}) error {
	return &userError{fmt.Errorf(format, args...)}
}

var rootCmd = &cobra.Command{
	Use:   "memengine",
	Short: "Associative memory engine for long-running assistants",
	Long: `memengine is a persistent, graph-based associative memory store.

Items are remembered with importance and TTL, linked by typed edges, and
retrieved by spreading activation rather than vector search. A homoiconic
policy layer governs decay, recall scoring, and exploration, and can be
revised and reverted at runtime. A background manifest summarizes the
graph's communities as memory-about-memory.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		zcfg.Encoding = "console"
		zcfg.EncoderConfig.TimeKey = ""
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if stateDir != "" {
			cfg.Store.StateDir = stateDir
		}
		if err := cfg.InitLogging(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging not initialized: %v\n", err)
		}

		evaluator, err := newEvaluator(cfg)
		if err != nil {
			return err
		}
		summ, err := newSummarizer(cfg)
		if err != nil {
			logger.Warn("summarizer unavailable, manifest theme naming will fall back to keywords", zap.Error(err))
		}

		eng, err = engine.New(cfg, clock.NewSystem(), evaluator, summ)
		if err != nil {
			return fmt.Errorf("starting engine: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if eng != nil {
			_ = eng.Snapshot()
			eng.Stop()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Override the engine's state directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "memengine.yaml", "Path to a YAML config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	rootCmd.AddCommand(
		rememberCmd,
		recallCmd,
		statsCmd,
		snapshotCmd,
		listPolicyVersionsCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var uerr *userError
		if os.IsNotExist(err) {
			os.Exit(1)
		}
		if asUserError(err, &uerr) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

func asUserError(err error, target **userError) bool {
	for err != nil {
		if ue, ok := err.(*userError); ok {
			*target = ue
			return true
		}
		unwrap, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = unwrap.Unwrap()
	}
	return false
}
