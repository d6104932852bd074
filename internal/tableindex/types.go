package tableindex

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// mysqlType returns the column type used to store a logical column.
func mysqlType(cm core.ColumnModel) string {
	if cm.ColumnType.IsList() {
		return "JSON"
	}
	switch cm.ColumnType {
	case core.ColumnTypeString, core.ColumnTypeLink:
		return fmt.Sprintf("VARCHAR(%d)", cm.EffectiveMaxSize())
	case core.ColumnTypeDouble:
		return "DOUBLE"
	case core.ColumnTypeBoolean:
		return "BOOLEAN"
	case core.ColumnTypeMediumText, core.ColumnTypeLargeText:
		return "MEDIUMTEXT"
	case core.ColumnTypeJSON:
		return "JSON"
	}
	// integral types: INTEGER, DATE and the id types
	return "BIGINT"
}

// normalizeType maps a declared or reported type to a comparable form.
// SHOW COLUMNS reports BOOLEAN as tinyint(1) and may add display widths to
// integer types.
func normalizeType(t string) string {
	t = strings.ToLower(strings.TrimSpace(t))
	switch {
	case t == "boolean" || t == "bool" || t == "tinyint(1)":
		return "boolean"
	case strings.HasPrefix(t, "bigint"):
		return "bigint"
	}
	return t
}

// columnDefinition renders one column of a CREATE or ALTER statement.
func columnDefinition(cm core.ColumnModel) string {
	def := core.ColumnName(cm.ID) + " " + mysqlType(cm)
	if cm.DefaultValue == nil || !allowsDefault(cm) {
		return def + " DEFAULT NULL"
	}
	return def + " DEFAULT " + quoteString(*cm.DefaultValue)
}

// allowsDefault reports whether MySQL accepts a literal default for the
// column's storage type.
func allowsDefault(cm core.ColumnModel) bool {
	switch mysqlType(cm) {
	case "JSON", "MEDIUMTEXT":
		return false
	}
	return true
}

func quoteString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
