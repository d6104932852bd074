package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptable/internal/engine"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/facet"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	Facets       []string
	ReturnFacets bool
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a table query against the index database",
		Long: `Translate a query against the stored table schemas, run it against the
index database and print the rows. With facets, the rows are narrowed by
every facet filter and the facet results are printed after the rows.`,
		Example: `  leaptable query "select species, count from syn123 where count > 3"
  leaptable query "select * from syn123" --facet species=cat --all -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Facets, "facet", nil, "Facet filter: name=v1,v2 or name=min..max (repeatable)")
	cmd.Flags().BoolVar(&opts.ReturnFacets, "all", false, "Return every facet column, not only filtered ones")

	return cmd
}

func runQuery(cmd *cobra.Command, sql string, opts *QueryOptions) error {
	requests, err := ParseFacetFlags(opts.Facets)
	if err != nil {
		return err
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := cmdCtx.Engine.Query(cmd.Context(), engine.QueryRequest{
		SQL:          sql,
		Facets:       requests,
		ReturnFacets: opts.ReturnFacets,
	})
	if err != nil {
		return err
	}

	r := cmdCtx.Renderer
	if r.IsJSON() {
		return r.JSON(struct {
			SQL     string          `json:"sql"`
			Columns []string        `json:"columns"`
			Rows    [][]any         `json:"rows"`
			Facets  []*facet.Result `json:"facets,omitempty"`
		}{res.Query.OutputSQL(), res.Columns, res.Rows, res.Facets})
	}

	r.Table(fmt.Sprintf("%d rows", len(res.Rows)), logicalHeader(res), res.Rows)
	for _, f := range res.Facets {
		renderFacet(r, f)
	}
	return nil
}

// logicalHeader names result columns by the user's select list. ROW_ID and
// ROW_VERSION keep their physical names.
func logicalHeader(res *engine.QueryResult) []string {
	schema := res.Query.SchemaOfSelect()
	header := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		header[i] = c
		if i < len(schema) && !core.IsSystemColumn(c) {
			header[i] = schema[i].Name
		}
	}
	return header
}

func renderFacet(r *Renderer, f *facet.Result) {
	switch f.FacetType {
	case core.FacetTypeRange:
		r.KeyValues("Facet "+f.ColumnName, [][2]any{
			{"min", f.ColumnMin},
			{"max", f.ColumnMax},
			{"selected min", f.SelectedMin},
			{"selected max", f.SelectedMax},
		})
	default:
		rows := make([][]any, 0, len(f.Values))
		for _, v := range f.Values {
			mark := ""
			if v.Selected {
				mark = "*"
			}
			rows = append(rows, []any{v.Value, v.Count, mark})
		}
		r.Table("Facet "+f.ColumnName, []string{"Value", "Count", "Selected"}, rows)
	}
}
