package sqlquery

import (
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/parser"
)

var dateLayouts = []string{
	"2006-1-2 15:4:5.000",
	"2006-1-2 15:4:5",
	"2006-1-2 15:4",
	"2006-1-2",
}

// coerce converts a literal to the type of the column it is compared with.
// When the conversion fails the value is bound as written and the database
// decides.
func coerce(raw string, kind parser.LiteralType, hint *core.ColumnModel) any {
	if hint == nil {
		return literalValue(raw, kind)
	}
	switch hint.ColumnType.BaseType() {
	case core.ColumnTypeInteger, core.ColumnTypeFileHandleID, core.ColumnTypeUserID,
		core.ColumnTypeSubmissionID, core.ColumnTypeEvaluationID:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
	case core.ColumnTypeEntityID:
		if id, err := core.ParseIDAndVersion(raw); err == nil {
			return id.ID
		}
	case core.ColumnTypeDouble:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case core.ColumnTypeBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
	case core.ColumnTypeDate:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if ms, ok := parseDate(raw); ok {
			return ms
		}
	default:
		return raw
	}
	return literalValue(raw, kind)
}

// literalValue is the natural Go value of an uncoerced literal.
func literalValue(raw string, kind parser.LiteralType) any {
	switch kind {
	case parser.LiteralNumber:
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	case parser.LiteralBoolean:
		return strings.EqualFold(raw, "true")
	}
	return raw
}

// parseDate returns epoch milliseconds of a UTC date or date-time.
func parseDate(raw string) (int64, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), time.UTC); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}
