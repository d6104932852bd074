package facet

import (
	"errors"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/parser"
)

// ValidatedFacetColumn is a facet-eligible column together with its
// request, if any.
type ValidatedFacetColumn struct {
	Column  core.ColumnModel
	Request Request

	filter parser.Condition
}

// ColumnName returns the name of the facet column.
func (v *ValidatedFacetColumn) ColumnName() string {
	return v.Column.Name
}

// FacetType returns the facet type of the column.
func (v *ValidatedFacetColumn) FacetType() core.FacetType {
	return v.Column.FacetType
}

// HasFilter reports whether the facet narrows the result.
func (v *ValidatedFacetColumn) HasFilter() bool {
	return v.filter != nil
}

// Filter returns the facet's condition over logical column names, or nil.
func (v *ValidatedFacetColumn) Filter() parser.Condition {
	return v.filter
}

// CreateValidatedFacetsList matches requests to the facet-eligible columns
// of schema. Results follow schema order. With returnAllFacets every
// eligible column is returned; otherwise only columns with an active filter.
func CreateValidatedFacetsList(requests []Request, schema []core.ColumnModel, returnAllFacets bool) ([]*ValidatedFacetColumn, error) {
	if schema == nil {
		return nil, errors.New("schema is required to validate facets")
	}

	byName, err := createColumnNameToFacetRequestMap(requests)
	if err != nil {
		return nil, err
	}

	for name := range byName {
		cm, ok := core.FindColumn(schema, name)
		if !ok {
			return nil, core.NewValidationError("facet column %q does not exist", name)
		}
		if !cm.IsFacetEligible() {
			return nil, core.NewValidationError("column %q is not a facet column", name)
		}
	}

	var out []*ValidatedFacetColumn
	for _, cm := range schema {
		if !cm.IsFacetEligible() {
			continue
		}
		req := byName[cm.Name]
		if req != nil && req.facetType() != cm.FacetType {
			return nil, core.NewValidationError("column %q has facet type %s but the request is for %s", cm.Name, cm.FacetType, req.facetType())
		}
		active := req != nil && req.active()
		if !active && !returnAllFacets {
			continue
		}
		v := &ValidatedFacetColumn{Column: cm, Request: req}
		if active {
			v.filter = buildFilter(cm, req)
		}
		out = append(out, v)
	}
	return out, nil
}

func createColumnNameToFacetRequestMap(requests []Request) (map[string]Request, error) {
	out := make(map[string]Request, len(requests))
	for _, r := range requests {
		if r == nil {
			continue
		}
		if _, dup := out[r.Column()]; dup {
			return nil, core.NewValidationError("request contains duplicate facet column %q", r.Column())
		}
		out[r.Column()] = r
	}
	return out, nil
}
