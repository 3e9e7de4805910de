// Package cli implements the dashstate command line.
package cli

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/dashstate/app"
	"github.com/stevemurr/dashstate/config"
	"github.com/stevemurr/dashstate/metrics"
	"github.com/stevemurr/dashstate/shadow"
	"github.com/stevemurr/dashstate/store"
)

// runtime is what every command works against, built once per invocation.
// The application state is opened on first use: opening loads and repairs
// every collection, which read-only commands must not do.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	slots    store.Store
	registry *prometheus.Registry
	shadow   *shadow.Store
	state    *app.State
	closed   bool
}

func (rt *runtime) open() *app.State {
	if rt.state == nil {
		rt.state = app.Open(rt.shadow, app.Options{
			Logger:   rt.logger.Named("app"),
			Preserve: rt.cfg.Session.Preserve,
		})
	}
	return rt.state
}

// close releases the store and flushes the logger. It is safe to call on a
// runtime that never finished setting up, and more than once.
func (rt *runtime) close() {
	if rt.closed || rt.logger == nil {
		return
	}
	rt.closed = true
	if rt.slots != nil {
		if err := rt.slots.Close(); err != nil {
			rt.logger.Warn("close store", zap.Error(err))
		}
	}
	rt.logger.Sync()
}

func newRootCmd() (*cobra.Command, *runtime) {
	var (
		configPath string
		verbose    bool
		rt         = &runtime{}
	)

	root := &cobra.Command{
		Use:           "dashstate <command>",
		Short:         "Validated dashboard state with shadow backups",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if verbose {
				cfg.Log.Level = "debug"
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			rt.cfg, rt.logger = cfg, logger

			slots, err := store.New(cfg.Store.Options(), logger)
			if err != nil {
				return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
			}
			rt.slots = slots
			rt.registry = prometheus.NewRegistry()
			rt.shadow = shadow.New(slots,
				shadow.WithLogger(logger.Named("shadow")),
				shadow.WithRecorder(metrics.NewShadow(rt.registry)))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		serveCmd(rt),
		getCmd(rt),
		putCmd(rt),
		inspectCmd(rt),
		counterCmd(rt),
		logoutCmd(rt),
	)
	return root, rt
}

// execute runs root and closes the store whether or not the command
// succeeded. Cobra skips post-run hooks on error, so this cannot live there.
func execute(root *cobra.Command, rt *runtime) error {
	defer rt.close()
	return root.Execute()
}

// Execute runs the command line and exits non-zero on failure.
func Execute() {
	root, rt := newRootCmd()
	if err := execute(root, rt); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
