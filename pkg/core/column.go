package core

import (
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"
)

// ColumnType is the logical type of a table column.
type ColumnType string

// Column types.
const (
	ColumnTypeString       ColumnType = "STRING"
	ColumnTypeInteger      ColumnType = "INTEGER"
	ColumnTypeDouble       ColumnType = "DOUBLE"
	ColumnTypeBoolean      ColumnType = "BOOLEAN"
	ColumnTypeDate         ColumnType = "DATE"
	ColumnTypeFileHandleID ColumnType = "FILEHANDLEID"
	ColumnTypeEntityID     ColumnType = "ENTITYID"
	ColumnTypeSubmissionID ColumnType = "SUBMISSIONID"
	ColumnTypeEvaluationID ColumnType = "EVALUATIONID"
	ColumnTypeLink         ColumnType = "LINK"
	ColumnTypeMediumText   ColumnType = "MEDIUMTEXT"
	ColumnTypeLargeText    ColumnType = "LARGETEXT"
	ColumnTypeUserID       ColumnType = "USERID"
	ColumnTypeJSON         ColumnType = "JSON"

	ColumnTypeStringList   ColumnType = "STRING_LIST"
	ColumnTypeIntegerList  ColumnType = "INTEGER_LIST"
	ColumnTypeBooleanList  ColumnType = "BOOLEAN_LIST"
	ColumnTypeDateList     ColumnType = "DATE_LIST"
	ColumnTypeEntityIDList ColumnType = "ENTITYID_LIST"
	ColumnTypeUserIDList   ColumnType = "USERID_LIST"
)

// Default sizes applied when a column does not declare one.
const (
	DefaultMaxStringSize int64 = 50
	DefaultMaxLinkSize   int64 = 1000
	DefaultMaxListLength int64 = 100
)

var listBaseTypes = map[ColumnType]ColumnType{
	ColumnTypeStringList:   ColumnTypeString,
	ColumnTypeIntegerList:  ColumnTypeInteger,
	ColumnTypeBooleanList:  ColumnTypeBoolean,
	ColumnTypeDateList:     ColumnTypeDate,
	ColumnTypeEntityIDList: ColumnTypeEntityID,
	ColumnTypeUserIDList:   ColumnTypeUserID,
}

// ParseColumnType parses a type name case-insensitively.
func ParseColumnType(s string) (ColumnType, error) {
	ct := ColumnType(strings.ToUpper(strings.TrimSpace(s)))
	switch ct {
	case ColumnTypeString, ColumnTypeInteger, ColumnTypeDouble, ColumnTypeBoolean,
		ColumnTypeDate, ColumnTypeFileHandleID, ColumnTypeEntityID, ColumnTypeSubmissionID,
		ColumnTypeEvaluationID, ColumnTypeLink, ColumnTypeMediumText, ColumnTypeLargeText,
		ColumnTypeUserID, ColumnTypeJSON:
		return ct, nil
	}
	if _, ok := listBaseTypes[ct]; ok {
		return ct, nil
	}
	return "", fmt.Errorf("unknown column type %q", s)
}

// IsList reports whether the type is one of the list variants.
func (t ColumnType) IsList() bool {
	_, ok := listBaseTypes[t]
	return ok
}

// BaseType returns the element type of a list type, or t itself.
func (t ColumnType) BaseType() ColumnType {
	if base, ok := listBaseTypes[t]; ok {
		return base
	}
	return t
}

// IsIntegral reports whether values of this type are stored as 64-bit integers.
func (t ColumnType) IsIntegral() bool {
	switch t {
	case ColumnTypeInteger, ColumnTypeDate, ColumnTypeFileHandleID, ColumnTypeEntityID,
		ColumnTypeSubmissionID, ColumnTypeEvaluationID, ColumnTypeUserID:
		return true
	}
	return false
}

// FacetType marks a column as usable for faceted navigation.
type FacetType string

// Facet types. The empty value means the column is not facet-eligible.
const (
	FacetTypeNone        FacetType = ""
	FacetTypeRange       FacetType = "range"
	FacetTypeEnumeration FacetType = "enumeration"
)

// ColumnModel is the logical description of one table column.
type ColumnModel struct {
	ID                string     `json:"id,omitempty" yaml:"id,omitempty"`
	Name              string     `json:"name" yaml:"name"`
	ColumnType        ColumnType `json:"columnType" yaml:"type"`
	MaximumSize       int64      `json:"maximumSize,omitempty" yaml:"maximum_size,omitempty"`
	MaximumListLength int64      `json:"maximumListLength,omitempty" yaml:"maximum_list_length,omitempty"`
	FacetType         FacetType  `json:"facetType,omitempty" yaml:"facet_type,omitempty"`
	DefaultValue      *string    `json:"defaultValue,omitempty" yaml:"default_value,omitempty"`
}

// IsFacetEligible reports whether the column carries a facet type.
func (c ColumnModel) IsFacetEligible() bool {
	return c.FacetType != FacetTypeNone
}

// EffectiveMaxSize returns the declared maximum size or the type default.
func (c ColumnModel) EffectiveMaxSize() int64 {
	if c.MaximumSize > 0 {
		return c.MaximumSize
	}
	if c.ColumnType.BaseType() == ColumnTypeLink {
		return DefaultMaxLinkSize
	}
	return DefaultMaxStringSize
}

// Hash returns an MD5 fingerprint of the structural fields, ignoring ID.
// Two models with the same hash describe the same column.
func (c ColumnModel) Hash() string {
	def := "<nil>"
	if c.DefaultValue != nil {
		def = *c.DefaultValue
	}
	sum := md5.Sum(fmt.Appendf(nil, "%s\x00%s\x00%d\x00%d\x00%s\x00%s", //nolint:gosec // fingerprint
		c.Name, c.ColumnType, c.MaximumSize, c.MaximumListLength, c.FacetType, def))
	return hex.EncodeToString(sum[:])
}

// SchemaMD5Hex fingerprints an ordered schema by its column ids.
func SchemaMD5Hex(schema []ColumnModel) string {
	ids := make([]string, len(schema))
	for i, c := range schema {
		ids[i] = c.ID
	}
	sum := md5.Sum([]byte(strings.Join(ids, "+"))) //nolint:gosec // fingerprint
	return hex.EncodeToString(sum[:])
}

// FindColumn returns the column with the exact (case-sensitive) name.
func FindColumn(schema []ColumnModel, name string) (ColumnModel, bool) {
	for _, c := range schema {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnModel{}, false
}
