package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/api"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen   string
	NoReplay bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the replay scheduler",
		Long: `Start the HTTP API for this node role together with the background
recovery replayer.

Example:
  mco2 serve
  mco2 serve --config ./mco2.yaml --listen :9090 --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&opts.NoReplay, "no-replay", false, "do not start the background replayer")

	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			slog.Error("error during shutdown", "error", closeErr)
		}
	}()

	if !opts.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.New(rt.engine, rt.replayer, rt.registry)

	slog.Info("service starting",
		"role", rt.engine.Role().Local,
		"listen", cfg.Listen,
		"boundary", cfg.Boundary,
		"pending", rt.queue.Len(),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on %s\n", rt.engine.Role().Local, cfg.Listen)

	g, gctx := errgroup.WithContext(ctx)
	if !opts.NoReplay {
		g.Go(func() error {
			// Run only returns once gctx is done.
			_ = rt.replayer.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.Listen)
	})

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	slog.Info("service stopped gracefully")
	return nil
}
