package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// NewTableCommand creates the table command group.
func NewTableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "table",
		Short: "Manage table schemas and their physical tables",
	}
	cmd.AddCommand(newTableSyncCommand())
	cmd.AddCommand(newTableShowCommand())
	cmd.AddCommand(newTableDropCommand())
	return cmd
}

func newTableSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <schema.yaml> [table-id...]",
		Short: "Store table schemas and reconcile their physical tables",
		Long: `Store the columns of each table in the schema file, bind them in order
and create or alter the physical table to match. Views reading a changed
table are flagged for rebuilding.

With table ids, only those tables are synced.`,
		Example: `  leaptable table sync schema.yaml
  leaptable table sync schema.yaml syn123`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTableSync(cmd, args[0], args[1:])
		},
	}
}

func runTableSync(cmd *cobra.Command, path string, only []string) error {
	sf, err := LoadSchemaFile(path)
	if err != nil {
		return err
	}

	ids := sf.TableIDs()
	if len(only) > 0 {
		ids = ids[:0]
		for _, s := range only {
			id, err := core.ParseIDAndVersion(s)
			if err != nil {
				return err
			}
			if _, ok := sf.Columns(id); !ok {
				return fmt.Errorf("table %s is not in %s", id, path)
			}
			ids = append(ids, id)
		}
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	type synced struct {
		Table   string `json:"table"`
		Columns int    `json:"columns"`
		Changed bool   `json:"changed"`
	}
	var results []synced
	for _, id := range ids {
		cols, _ := sf.Columns(id)
		// column ids are assigned by the state store
		for i := range cols {
			cols[i].ID = ""
		}
		schema, changed, err := cmdCtx.Engine.SyncTableSchema(cmd.Context(), id, cols)
		if err != nil {
			return fmt.Errorf("failed to sync %s: %w", id, err)
		}
		results = append(results, synced{Table: id.String(), Columns: len(schema), Changed: changed})
	}

	r := cmdCtx.Renderer
	if r.IsJSON() {
		return r.JSON(results)
	}
	rows := make([][]any, 0, len(results))
	for _, s := range results {
		rows = append(rows, []any{s.Table, s.Columns, s.Changed})
	}
	r.Table("Synced tables", []string{"Table", "Columns", "Changed"}, rows)
	return nil
}

func newTableShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <table-id>",
		Short: "Show the bound schema of a table",
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

			schema, err := cmdCtx.Engine.TableSchema(cmd.Context(), id)
			if err != nil {
				return err
			}
			if cmdCtx.Renderer.IsJSON() {
				return cmdCtx.Renderer.JSON(schema)
			}
			renderSchema(cmdCtx.Renderer, core.TableName(id), schema)
			return nil
		},
	}
}

func newTableDropCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table-id>",
		Short: "Drop a physical table and forget its schema",
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

			dropped, err := cmdCtx.Engine.DropTable(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !dropped {
				cmdCtx.Renderer.Println(fmt.Sprintf("%s did not exist", core.TableName(id)))
				return nil
			}
			cmdCtx.Renderer.Println(fmt.Sprintf("dropped %s", core.TableName(id)))
			return nil
		},
	}
}
