// Package facet layers faceted-navigation filters over translated queries.
//
// A facet request narrows one facet-eligible column, either to a range or
// to a set of values. Validated facets are turned into an extra WHERE
// condition on the base query and into side queries that compute, for each
// facet, the values or range still available under every other facet's
// filter.
package facet

import (
	"github.com/leapstack-labs/leaptable/pkg/core"
)

// NullValue selects rows where the facet column is NULL. It is also the
// value reported for NULL groups in value counts.
const NullValue = "org.sagebionetworks.UNDEFINED_NULL_NOTSET"

// DefaultMaxValues bounds the number of values a value-count query returns.
const DefaultMaxValues = 100

// Request is a filter on one facet column. It is either a *RangeRequest or
// a *ValuesRequest.
type Request interface {
	Column() string
	facetType() core.FacetType
	active() bool
}

// RangeRequest limits a range facet. Empty bounds are open.
type RangeRequest struct {
	ColumnName string `json:"columnName" yaml:"column"`
	Min        string `json:"min,omitempty" yaml:"min,omitempty"`
	Max        string `json:"max,omitempty" yaml:"max,omitempty"`
}

func (r *RangeRequest) Column() string             { return r.ColumnName }
func (r *RangeRequest) facetType() core.FacetType { return core.FacetTypeRange }
func (r *RangeRequest) active() bool               { return r.Min != "" || r.Max != "" }

// ValuesRequest limits an enumeration facet to a set of values. NullValue
// matches NULL.
type ValuesRequest struct {
	ColumnName string   `json:"columnName" yaml:"column"`
	Values     []string `json:"facetValues" yaml:"values"`
}

func (r *ValuesRequest) Column() string             { return r.ColumnName }
func (r *ValuesRequest) facetType() core.FacetType { return core.FacetTypeEnumeration }
func (r *ValuesRequest) active() bool               { return len(r.Values) > 0 }
