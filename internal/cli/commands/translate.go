package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leaptable/internal/engine"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/facet"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

// TranslateOptions holds options for the translate command.
type TranslateOptions struct {
	SchemaFile string
	AllowJoins bool
	OmitRowIDs bool
}

// NewTranslateCommand creates the translate command.
func NewTranslateCommand() *cobra.Command {
	opts := &TranslateOptions{}

	cmd := &cobra.Command{
		Use:   "translate <sql>",
		Short: "Translate a table query into physical SQL",
		Long: `Parse a query over logical tables (syn123) and columns and print the
physical SQL that runs against the index database, with its bound
parameters and output schema.

Schemas come from --schema when given, otherwise from the state store.`,
		Example: `  # Translate against a schema file
  leaptable translate "select foo from syn123 where bar > 3" --schema schema.yaml

  # Translate a join for a materialized view definition
  leaptable translate "select a.foo, b.bar from syn1 a join syn2 b on a.id = b.id" --allow-joins`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.SchemaFile, "schema", "", "YAML file mapping table ids to columns")
	cmd.Flags().BoolVar(&opts.AllowJoins, "allow-joins", false, "Allow queries over more than one table")
	cmd.Flags().BoolVar(&opts.OmitRowIDs, "omit-row-ids", false, "Do not append ROW_ID and ROW_VERSION")

	return cmd
}

// translateFunc translates sql with the given options.
type translateFunc func(ctx context.Context, sql string, opts engine.TranslateOptions) (*sqlquery.Query, error)

// withTranslator runs fn with a translator backed by the schema file, or by
// an engine when no schema file is given.
func withTranslator(cmd *cobra.Command, schemaFile string, fn func(*CommandContext, translateFunc) error) error {
	if schemaFile != "" {
		sf, err := LoadSchemaFile(schemaFile)
		if err != nil {
			return err
		}
		cmdCtx := NewCommandContextWithoutEngine(cmd)
		return fn(cmdCtx, func(ctx context.Context, sql string, opts engine.TranslateOptions) (*sqlquery.Query, error) {
			model, err := parser.ParseQuery(sql)
			if err != nil {
				return nil, err
			}
			return sqlquery.NewBuilder(model).
				SchemaProvider(sf).
				AllowJoins(opts.AllowJoins).
				IncludeRowIDAndVersion(!opts.OmitRowIDs).
				Build(ctx)
		})
	}

	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(cmdCtx, cmdCtx.Engine.Translate)
}

// translateOutput is the JSON form of a translated query.
type translateOutput struct {
	SQL        string             `json:"sql"`
	Parameters map[string]any     `json:"parameters"`
	Schema     []core.ColumnModel `json:"schema"`
	Tables     []string           `json:"tables"`
	Aggregate  bool               `json:"aggregate"`
}

func newTranslateOutput(q *sqlquery.Query) translateOutput {
	tables := make([]string, 0, len(q.TableIDs()))
	for _, id := range q.TableIDs() {
		tables = append(tables, id.String())
	}
	return translateOutput{
		SQL:        q.OutputSQL(),
		Parameters: q.Parameters(),
		Schema:     q.SchemaOfSelect(),
		Tables:     tables,
		Aggregate:  q.IsAggregate(),
	}
}

func runTranslate(cmd *cobra.Command, sql string, opts *TranslateOptions) error {
	return withTranslator(cmd, opts.SchemaFile, func(cmdCtx *CommandContext, translate translateFunc) error {
		q, err := translate(cmd.Context(), sql, engine.TranslateOptions{
			AllowJoins: opts.AllowJoins,
			OmitRowIDs: opts.OmitRowIDs,
		})
		if err != nil {
			return err
		}

		r := cmdCtx.Renderer
		if r.IsJSON() {
			return r.JSON(newTranslateOutput(q))
		}
		r.Code(q.OutputSQL())
		renderParameters(r, q.Parameters())
		renderSchema(r, "Output schema", q.SchemaOfSelect())
		return nil
	})
}

func renderParameters(r *Renderer, params map[string]any) {
	if len(params) == 0 {
		return
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	// b2 before b10
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	rows := make([][]any, 0, len(names))
	for _, name := range names {
		rows = append(rows, []any{":" + name, fmt.Sprintf("%v", params[name]), fmt.Sprintf("%T", params[name])})
	}
	r.Table("Parameters", []string{"Name", "Value", "Type"}, rows)
}

func renderSchema(r *Renderer, title string, schema []core.ColumnModel) {
	rows := make([][]any, 0, len(schema))
	for _, cm := range schema {
		physical := ""
		if cm.ID != "" {
			physical = core.ColumnName(cm.ID)
		}
		rows = append(rows, []any{cm.Name, string(cm.ColumnType), physical, string(cm.FacetType)})
	}
	r.Table(title, []string{"Name", "Type", "Column", "Facet"}, rows)
}

// FacetsOptions holds options for the facets command.
type FacetsOptions struct {
	SchemaFile   string
	Facets       []string
	ReturnFacets bool
	MaxValues    int
}

// NewFacetsCommand creates the facets command.
func NewFacetsCommand() *cobra.Command {
	opts := &FacetsOptions{}

	cmd := &cobra.Command{
		Use:   "facets <sql>",
		Short: "Show the facet-filtered query and every facet side query",
		Long: `Translate a single-table query and layer facet filters over it.

Each --facet is either a value list (name=v1,v2) or a range
(name=min..max, either bound may be empty). Nothing is executed.`,
		Example: `  leaptable facets "select * from syn123" --schema schema.yaml \
    --facet species=cat,dog --facet count=1..10 --all`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFacets(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.SchemaFile, "schema", "", "YAML file mapping table ids to columns")
	cmd.Flags().StringArrayVar(&opts.Facets, "facet", nil, "Facet filter: name=v1,v2 or name=min..max (repeatable)")
	cmd.Flags().BoolVar(&opts.ReturnFacets, "all", false, "Include every facet column, not only filtered ones")
	cmd.Flags().IntVar(&opts.MaxValues, "max-values", 0, "Limit of value-count facets (default from config)")

	return cmd
}

func runFacets(cmd *cobra.Command, sql string, opts *FacetsOptions) error {
	requests, err := ParseFacetFlags(opts.Facets)
	if err != nil {
		return err
	}
	return withTranslator(cmd, opts.SchemaFile, func(cmdCtx *CommandContext, translate translateFunc) error {
		base, err := translate(cmd.Context(), sql, engine.TranslateOptions{})
		if err != nil {
			return err
		}
		maxValues := opts.MaxValues
		if maxValues <= 0 {
			maxValues = cmdCtx.Cfg.Facets.MaxValues
		}
		plan, err := facet.NewPlan(cmd.Context(), base, requests, opts.ReturnFacets, maxValues)
		if err != nil {
			return err
		}

		r := cmdCtx.Renderer
		if r.IsJSON() {
			out := struct {
				Filtered translateOutput            `json:"filtered"`
				Facets   map[string]translateOutput `json:"facets"`
			}{
				Filtered: newTranslateOutput(plan.Filtered),
				Facets:   map[string]translateOutput{},
			}
			for _, t := range plan.Transformers {
				out.Facets[t.ColumnName()] = newTranslateOutput(t.Query())
			}
			return r.JSON(out)
		}

		r.Code(plan.Filtered.OutputSQL())
		renderParameters(r, plan.Filtered.Parameters())
		rows := make([][]any, 0, len(plan.Transformers))
		for i, t := range plan.Transformers {
			rows = append(rows, []any{t.ColumnName(), string(plan.Facets[i].FacetType()), t.Query().OutputSQL()})
		}
		r.Table("Facet queries", []string{"Column", "Facet", "SQL"}, rows)
		return nil
	})
}

// ParseFacetFlags converts --facet values into facet requests.
func ParseFacetFlags(flags []string) ([]facet.Request, error) {
	requests := make([]facet.Request, 0, len(flags))
	for _, f := range flags {
		name, spec, ok := strings.Cut(f, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid facet %q: expected name=v1,v2 or name=min..max", f)
		}
		if lo, hi, isRange := strings.Cut(spec, ".."); isRange {
			requests = append(requests, &facet.RangeRequest{
				ColumnName: name,
				Min:        strings.TrimSpace(lo),
				Max:        strings.TrimSpace(hi),
			})
			continue
		}
		var values []string
		for _, v := range strings.Split(spec, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		requests = append(requests, &facet.ValuesRequest{ColumnName: name, Values: values})
	}
	return requests, nil
}
