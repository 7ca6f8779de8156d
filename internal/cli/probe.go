package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/probe"
)

// ProbeOptions holds flags for the probe command.
type ProbeOptions struct {
	*RootOptions
	Wait    time.Duration
	Timeout time.Duration
}

// ProbeResult is the output of the probe command.
type ProbeResult struct {
	Entry string `json:"entry"`
}

// RenderText implements textRenderer.
func (r ProbeResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Reachable: %s\n", r.Entry)
}

// NewProbeCommand creates the probe command.
func NewProbeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProbeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "probe [base-url...]",
		Short: "Find the first reachable deployment",
		Long: `Probe candidate deployments in order and print the first one whose health
endpoint answers. Candidates default to probe.candidates from the config.

With --wait the probe is retried with exponential backoff until a candidate
answers or the wait elapses.

Example:
  mco2 probe http://central:8080 http://fragment-a:8080
  mco2 probe --config ./mco2.yaml --wait 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd, opts, args)
		},
	}

	cmd.Flags().DurationVar(&opts.Wait, "wait", 0, "keep retrying for up to this long")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-candidate timeout (overrides config)")

	return cmd
}

func runProbe(cmd *cobra.Command, opts *ProbeOptions, args []string) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	candidates := args
	if len(candidates) == 0 {
		candidates = cfg.Probe.Candidates
	}
	timeout := cfg.Probe.Timeout.Duration
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	out.VerboseLog("probing %d candidate(s), timeout %s", len(candidates), timeout)

	prober := probe.New(nil, timeout)
	ctx := cmd.Context()

	var entry string
	if opts.Wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Wait)
		defer cancel()
		policy := probe.NewBackOff()
		policy.MaxElapsedTime = opts.Wait
		entry, err = prober.WaitForReachable(ctx, candidates, policy)
	} else {
		entry, err = prober.FindReachable(ctx, candidates)
	}
	if err != nil {
		_ = out.Error("NO_REACHABLE_NODE", "no deployment reachable", candidates)
		return WrapExitError(ExitFailure, "probe failed", err)
	}

	return out.Success(ProbeResult{Entry: entry})
}
