package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/facet"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

// TranslateOptions controls query translation.
type TranslateOptions struct {
	AllowJoins bool
	// OmitRowIDs disables the ROW_ID and ROW_VERSION columns.
	OmitRowIDs bool
}

// QueryRequest is a query with optional facets.
type QueryRequest struct {
	SQL    string
	Facets []facet.Request
	// ReturnFacets computes a result for every facet-eligible column, not
	// only the filtered ones.
	ReturnFacets bool
}

// QueryResult holds the rows of a query and its facet results.
type QueryResult struct {
	Query   *sqlquery.Query
	Columns []string
	Rows    [][]any
	Facets  []*facet.Result
}

// Translate parses sql and translates it against the stored table schemas.
func (e *Engine) Translate(ctx context.Context, sql string, opts TranslateOptions) (*sqlquery.Query, error) {
	q, err := e.translate(ctx, sql, opts)
	e.metrics.ObserveTranslation(err)
	return q, err
}

func (e *Engine) translate(ctx context.Context, sql string, opts TranslateOptions) (*sqlquery.Query, error) {
	spec, err := parser.ParseQuery(sql)
	if err != nil {
		return nil, err
	}
	return sqlquery.NewBuilder(spec).
		SchemaProvider(e.store).
		AllowJoins(opts.AllowJoins).
		IncludeRowIDAndVersion(!opts.OmitRowIDs).
		Build(ctx)
}

// FacetQueries returns the facet-filtered query and the side query of every
// facet without executing anything.
func (e *Engine) FacetQueries(ctx context.Context, req QueryRequest) (*sqlquery.Query, []facet.Transformer, error) {
	base, err := e.Translate(ctx, req.SQL, TranslateOptions{})
	if err != nil {
		return nil, nil, err
	}
	return e.facetQueries(ctx, base, req)
}

func (e *Engine) facetQueries(ctx context.Context, base *sqlquery.Query, req QueryRequest) (*sqlquery.Query, []facet.Transformer, error) {
	plan, err := facet.NewPlan(ctx, base, req.Facets, req.ReturnFacets, e.maxFacetValues)
	if err != nil {
		return nil, nil, err
	}
	return plan.Filtered, plan.Transformers, nil
}

// Query runs a query against the index database. When facets are requested
// the rows are narrowed by the facet filters and every facet side query runs
// concurrently.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	base, err := e.Translate(ctx, req.SQL, TranslateOptions{})
	if err != nil {
		return nil, err
	}

	q := base
	var transformers []facet.Transformer
	if len(req.Facets) > 0 || req.ReturnFacets {
		q, transformers, err = e.facetQueries(ctx, base, req)
		if err != nil {
			return nil, err
		}
	}

	gw, err := e.gateway(ctx)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Query: q}
	rows, err := gw.Query(ctx, q.OutputSQL(), q.Parameters())
	if err != nil {
		return nil, err
	}
	result.Columns, result.Rows, err = readRows(rows)
	if err != nil {
		return nil, err
	}

	if len(transformers) > 0 {
		result.Facets, err = e.runFacets(ctx, gw, transformers)
		if err != nil {
			return nil, err
		}
	}
	e.logger.Debug("query complete", slog.Int("rows", len(result.Rows)), slog.Int("facets", len(result.Facets)))
	return result, nil
}

func (e *Engine) runFacets(ctx context.Context, gw core.Gateway, transformers []facet.Transformer) ([]*facet.Result, error) {
	results := make([]*facet.Result, len(transformers))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range transformers {
		g.Go(func() error {
			q := t.Query()
			rows, err := gw.Query(gctx, q.OutputSQL(), q.Parameters())
			if err != nil {
				return fmt.Errorf("facet %s: %w", t.ColumnName(), err)
			}
			defer func() { _ = rows.Close() }()
			res, err := t.Transform(rows)
			if err != nil {
				return fmt.Errorf("facet %s: %w", t.ColumnName(), err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.metrics.ObserveFacetQueries(len(transformers))
	return results, nil
}

// readRows drains rows into plain values. Byte slices become strings.
func readRows(rows *core.Rows) ([]string, [][]any, error) {
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return columns, out, nil
}
