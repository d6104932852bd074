package core

import (
	"fmt"
	"strconv"
	"strings"
)

// IDAndVersion identifies a table, optionally pinned to a snapshot version.
// The zero Version is meaningful only when Versioned is set.
type IDAndVersion struct {
	ID        int64
	Version   int64
	Versioned bool
}

// NewID returns an unversioned identifier.
func NewID(id int64) IDAndVersion {
	return IDAndVersion{ID: id}
}

// NewIDWithVersion returns an identifier pinned to a version.
func NewIDWithVersion(id, version int64) IDAndVersion {
	return IDAndVersion{ID: id, Version: version, Versioned: true}
}

// ParseIDAndVersion parses "syn123", "123" or "syn123.4". The "syn" prefix is
// case-insensitive.
func ParseIDAndVersion(s string) (IDAndVersion, error) {
	raw := strings.TrimSpace(s)
	if len(raw) >= 3 && strings.EqualFold(raw[:3], "syn") {
		raw = raw[3:]
	}
	idPart, versionPart, hasVersion := strings.Cut(raw, ".")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id < 0 {
		return IDAndVersion{}, fmt.Errorf("invalid table identifier %q", s)
	}
	if !hasVersion {
		return NewID(id), nil
	}
	version, err := strconv.ParseInt(versionPart, 10, 64)
	if err != nil || version < 0 {
		return IDAndVersion{}, fmt.Errorf("invalid table version in %q", s)
	}
	return NewIDWithVersion(id, version), nil
}

// String renders the user-facing form, e.g. syn123 or syn123.4.
func (i IDAndVersion) String() string {
	if i.Versioned {
		return fmt.Sprintf("syn%d.%d", i.ID, i.Version)
	}
	return fmt.Sprintf("syn%d", i.ID)
}

// WithoutVersion drops the version.
func (i IDAndVersion) WithoutVersion() IDAndVersion {
	return NewID(i.ID)
}
