package core

import (
	"strconv"
	"strings"
)

// System columns present in every physical table.
const (
	RowIDColumn      = "ROW_ID"
	RowVersionColumn = "ROW_VERSION"
)

const (
	tablePrefix  = "T"
	columnPrefix = "_C"
	columnSuffix = "_"
)

// TableName returns the physical table name: T123, or T123_4 for a version.
func TableName(id IDAndVersion) string {
	name := tablePrefix + strconv.FormatInt(id.ID, 10)
	if id.Versioned {
		name += "_" + strconv.FormatInt(id.Version, 10)
	}
	return name
}

// TableIDFromName inverts TableName.
func TableIDFromName(name string) (IDAndVersion, bool) {
	rest, ok := strings.CutPrefix(name, tablePrefix)
	if !ok {
		return IDAndVersion{}, false
	}
	idPart, versionPart, hasVersion := strings.Cut(rest, "_")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return IDAndVersion{}, false
	}
	if !hasVersion {
		return NewID(id), true
	}
	version, err := strconv.ParseInt(versionPart, 10, 64)
	if err != nil {
		return IDAndVersion{}, false
	}
	return NewIDWithVersion(id, version), true
}

// ColumnName returns the physical column name for a column model id.
func ColumnName(columnID string) string {
	return columnPrefix + columnID + columnSuffix
}

// ColumnIDFromName inverts ColumnName. System columns are not ids.
func ColumnIDFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, columnPrefix) || !strings.HasSuffix(name, columnSuffix) {
		return "", false
	}
	id := name[len(columnPrefix) : len(name)-len(columnSuffix)]
	if id == "" {
		return "", false
	}
	return id, true
}

// IsSystemColumn reports whether name is ROW_ID or ROW_VERSION.
func IsSystemColumn(name string) bool {
	return name == RowIDColumn || name == RowVersionColumn
}
