package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/config"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/engine"
	"github.com/GabrielVillas-DLSU/STADVDB-MCO2-WEBAPP/internal/model"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// ValidateResult summarises a valid configuration.
type ValidateResult struct {
	Path          string         `json:"path"`
	Role          model.NodeID   `json:"role"`
	Boundary      int            `json:"boundary"`
	FailoverOrder []model.NodeID `json:"failoverOrder"`
	Journal       string         `json:"journal"`
}

// RenderText implements textRenderer.
func (r ValidateResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s is valid\n", r.Path)
	fmt.Fprintf(w, "  role:           %s\n", r.Role)
	fmt.Fprintf(w, "  boundary:       startYear <= %d -> %s\n", r.Boundary, model.FragmentA)
	fmt.Fprintf(w, "  failover order: %v\n", r.FailoverOrder)
	fmt.Fprintf(w, "  journal:        %s\n", r.Journal)
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a YAML configuration file against the schema without connecting
to any node.

Example:
  mco2 validate ./mco2.yaml
  mco2 validate ./mco2.yaml --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args[0])
		},
	}
	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, path string) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := config.Load(path)
	if err != nil {
		_ = out.Error("INVALID_CONFIG", err.Error(), map[string]string{"path": path})
		return WrapExitError(ExitFailure, "config is invalid", err)
	}

	order := cfg.FailoverOrder
	if len(order) == 0 {
		order = engine.DefaultRole(cfg.Role).FailoverOrder
	}
	return out.Success(ValidateResult{
		Path:          path,
		Role:          cfg.Role,
		Boundary:      cfg.Boundary,
		FailoverOrder: order,
		Journal:       cfg.Journal.Driver + ":" + cfg.Journal.Path,
	})
}
