package cli

import (
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// QueueOptions holds flags for the queue subcommands.
type QueueOptions struct {
	*RootOptions
	Target string
}

// QueueListing is the output of queue list.
type QueueListing struct {
	Tasks []model.RecoveryTask `json:"tasks"`
}

// RenderText implements textRenderer.
func (l QueueListing) RenderText(w io.Writer) {
	if len(l.Tasks) == 0 {
		fmt.Fprintln(w, "No pending recovery tasks.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTARGET\tKIND\tKEY\tENQUEUED\tID")
	for _, t := range l.Tasks {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Seq, t.Target, t.Op.Kind, t.Op.Key, t.EnqueuedAt.Format(time.RFC3339), t.ID)
	}
	tw.Flush()
	fmt.Fprintf(w, "%d pending task(s)\n", len(l.Tasks))
}

// PurgeResult is the output of queue purge.
type PurgeResult struct {
	Target  model.NodeID `json:"target"`
	Dropped int          `json:"dropped"`
}

// RenderText implements textRenderer.
func (r PurgeResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Dropped %d task(s) for %s\n", r.Dropped, r.Target)
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or purge the recovery queue",
		Long: `Inspect or purge the persisted recovery queue.

These commands take exclusive ownership of the journal and fail while a
server holds it.`,
	}

	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueuePurgeCommand(rootOpts))
	return cmd
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending recovery tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTargetFlag(opts.Target, true)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			journal, q, err := openQueue(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer journal.Close()

			var tasks []model.RecoveryTask
			if target == "" {
				tasks = q.Snapshot()
			} else {
				tasks = q.Pending(target)
			}
			if tasks == nil {
				tasks = []model.RecoveryTask{}
			}
			out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return out.Success(QueueListing{Tasks: tasks})
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "only list tasks for this node")
	return cmd
}

func newQueuePurgeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop every pending task for one node",
		Long: `Drop every pending recovery task for one node. Dropped writes are never
replayed, so the node stays behind central until it is resynchronised.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseTargetFlag(opts.Target, false)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(opts.RootOptions)
			if err != nil {
				return err
			}
			journal, q, err := openQueue(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer journal.Close()

			n, err := q.Purge(cmd.Context(), target)
			if err != nil {
				return WrapExitError(ExitFailure, "purge failed", err)
			}
			slog.Info("queue purged", "target", target, "dropped", n)
			out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return out.Success(PurgeResult{Target: target, Dropped: n})
		},
	}

	cmd.Flags().StringVar(&opts.Target, "target", "", "node whose tasks are dropped (required)")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// parseTargetFlag validates a --target value. An empty value is accepted
// only when optional is set.
func parseTargetFlag(v string, optional bool) (model.NodeID, error) {
	if v == "" && optional {
		return "", nil
	}
	id, err := model.ParseNodeID(v)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "invalid --target", err)
	}
	return id, nil
}
