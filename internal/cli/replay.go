package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/recovery"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
}

// TargetReplay is the outcome of one target in a replay cycle.
type TargetReplay struct {
	Target    model.NodeID `json:"target"`
	Applied   int          `json:"applied"`
	Remaining int          `json:"remaining"`
	Error     string       `json:"error,omitempty"`
}

// ReplayOutput is the output of the replay command.
type ReplayOutput struct {
	Targets []TargetReplay `json:"targets"`
}

// Complete reports whether every target was drained.
func (o ReplayOutput) Complete() bool {
	for _, t := range o.Targets {
		if t.Remaining > 0 || t.Error != "" {
			return false
		}
	}
	return true
}

// RenderText implements textRenderer.
func (o ReplayOutput) RenderText(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tAPPLIED\tREMAINING\tERROR")
	for _, t := range o.Targets {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", t.Target, t.Applied, t.Remaining, t.Error)
	}
	tw.Flush()
}

func toReplayOutput(reports []recovery.ReplayReport) ReplayOutput {
	out := ReplayOutput{Targets: make([]TargetReplay, 0, len(reports))}
	for _, r := range reports {
		t := TargetReplay{Target: r.Target, Applied: r.Applied, Remaining: r.Remaining}
		if r.Err != nil {
			t.Error = r.Err.Error()
		}
		out.Targets = append(out.Targets, t)
	}
	return out
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run one recovery replay cycle",
		Long: `Replay pending recovery tasks once against every target with a non-empty
queue, in order, stopping per target at the first failure.

Exits with status 1 when any task is left behind.

Example:
  mco2 replay --config ./mco2.yaml
  mco2 replay --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}
	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rt.Close(); closeErr != nil {
			slog.Error("error closing runtime", "error", closeErr)
		}
	}()

	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	out.VerboseLog("replaying %d pending task(s)", rt.queue.Len())

	reports, err := rt.replayer.RunOnce(cmd.Context())
	if err != nil {
		return WrapExitError(ExitFailure, "replay failed", err)
	}

	result := toReplayOutput(reports)
	if err := out.Success(result); err != nil {
		return err
	}
	if !result.Complete() {
		return NewExitError(ExitFailure, "recovery tasks remain pending")
	}
	return nil
}
