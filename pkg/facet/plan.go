package facet

import (
	"context"

	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

// Plan is the full facet treatment of one base query.
type Plan struct {
	// Facets are the validated facet columns, in schema order.
	Facets []*ValidatedFacetColumn
	// Filtered is the base query narrowed by every active facet.
	Filtered *sqlquery.Query
	// Transformers compute the result of each facet.
	Transformers []Transformer
}

// NewPlan validates requests against the schema of base's single table and
// builds the filtered query and every facet side query.
func NewPlan(ctx context.Context, base *sqlquery.Query, requests []Request, returnAllFacets bool, maxValues int) (*Plan, error) {
	tableID, err := base.SingleTableID()
	if err != nil {
		return nil, err
	}
	facets, err := CreateValidatedFacetsList(requests, base.TableSchema(tableID), returnAllFacets)
	if err != nil {
		return nil, err
	}
	filtered, err := GenerateFacetFilteredQuery(ctx, base, facets)
	if err != nil {
		return nil, err
	}
	transformers, err := GenerateFacetQueryTransformers(ctx, base, facets, maxValues)
	if err != nil {
		return nil, err
	}
	return &Plan{Facets: facets, Filtered: filtered, Transformers: transformers}, nil
}
