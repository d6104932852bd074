package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// NewViewCommand creates the view command group.
func NewViewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Manage materialized views",
	}
	cmd.AddCommand(newViewCreateCommand())
	cmd.AddCommand(newViewRebuildCommand())
	cmd.AddCommand(newViewStatusCommand())
	cmd.AddCommand(newViewListCommand())
	cmd.AddCommand(newViewDeleteCommand())
	return cmd
}

func newViewCreateCommand() *cobra.Command {
	var build bool
	cmd := &cobra.Command{
		Use:   "create <view-id> <sql>",
		Short: "Create or replace a materialized view",
		Long: `Store the defining SQL of a view, record its source tables and bind its
schema. The view is built by the worker, or immediately with --build.`,
		Example: `  leaptable view create syn900 "select a.foo, b.bar from syn1 a join syn2 b on a.id = b.id" --build`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseIDAndVersion(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			view := core.MaterializedView{ID: id, DefiningSQL: args[1]}
			if err := cmdCtx.Engine.CreateView(cmd.Context(), view); err != nil {
				return err
			}
			if build {
				if _, err := cmdCtx.Engine.ProcessPending(cmd.Context()); err != nil {
					return err
				}
			}
			return renderViewStatus(cmd, cmdCtx, id)
		},
	}
	cmd.Flags().BoolVar(&build, "build", false, "Build the view before returning")
	return cmd
}

func newViewRebuildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <view-id>",
		Short: "Bring the physical table of a view up to date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseIDAndVersion(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.RebuildView(cmd.Context(), id); err != nil {
				return err
			}
			return renderViewStatus(cmd, cmdCtx, id)
		},
	}
}

func newViewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status <view-id>",
		Short: "Show the processing status of a view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseIDAndVersion(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return renderViewStatus(cmd, cmdCtx, id)
		},
	}
}

func renderViewStatus(cmd *cobra.Command, cmdCtx *CommandContext, id core.IDAndVersion) error {
	st, err := cmdCtx.Engine.ViewStatus(cmd.Context(), id)
	if err != nil {
		return err
	}
	if cmdCtx.Renderer.IsJSON() {
		return cmdCtx.Renderer.JSON(statusJSON(st))
	}
	pairs := [][2]any{
		{"state", string(st.State)},
		{"changed", st.ChangedOn.Format(time.RFC3339)},
	}
	if st.ProgressMessage != "" {
		pairs = append(pairs, [2]any{"progress", fmt.Sprintf("%s (%d/%d)", st.ProgressMessage, st.ProgressCurrent, st.ProgressTotal)})
	}
	if st.ErrorMessage != "" {
		pairs = append(pairs, [2]any{"error", st.ErrorMessage})
	}
	if st.LastTableChangeEtag != "" {
		pairs = append(pairs, [2]any{"etag", st.LastTableChangeEtag})
	}
	cmdCtx.Renderer.KeyValues(id.String(), pairs)
	return nil
}

type viewStatusJSON struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	Changed  string `json:"changedOn"`
	Progress string `json:"progressMessage,omitempty"`
	Error    string `json:"errorMessage,omitempty"`
	Details  string `json:"errorDetails,omitempty"`
	Etag     string `json:"lastTableChangeEtag,omitempty"`
}

func statusJSON(st *core.TableStatus) viewStatusJSON {
	return viewStatusJSON{
		ID:       st.ID.String(),
		State:    string(st.State),
		Changed:  st.ChangedOn.Format(time.RFC3339),
		Progress: st.ProgressMessage,
		Error:    st.ErrorMessage,
		Details:  st.ErrorDetails,
		Etag:     st.LastTableChangeEtag,
	}
}

func newViewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List materialized views and their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			views, err := cmdCtx.Engine.ListViews(cmd.Context())
			if err != nil {
				return err
			}

			type listed struct {
				ID          string `json:"id"`
				State       string `json:"state"`
				DefiningSQL string `json:"definingSQL"`
			}
			out := make([]listed, 0, len(views))
			for _, v := range views {
				state := "UNKNOWN"
				if st, err := cmdCtx.Engine.ViewStatus(cmd.Context(), v.ID); err == nil {
					state = string(st.State)
				} else if !core.IsNotFound(err) {
					return err
				}
				out = append(out, listed{ID: v.ID.String(), State: state, DefiningSQL: v.DefiningSQL})
			}

			if cmdCtx.Renderer.IsJSON() {
				return cmdCtx.Renderer.JSON(out)
			}
			rows := make([][]any, 0, len(out))
			for _, v := range out {
				rows = append(rows, []any{v.ID, v.State, v.DefiningSQL})
			}
			cmdCtx.Renderer.Table(fmt.Sprintf("Views (%d total)", len(out)), []string{"View", "State", "Defining SQL"}, rows)
			return nil
		},
	}
}

func newViewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <view-id>",
		Short: "Drop a view's physical table and forget the view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := core.ParseIDAndVersion(args[0])
			if err != nil {
				return err
			}
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cmdCtx.Engine.DeleteView(cmd.Context(), id); err != nil {
				return err
			}
			cmdCtx.Renderer.Println(fmt.Sprintf("deleted %s", id))
			return nil
		},
	}
}
