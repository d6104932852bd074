// Package adapter provides the physical SQL gateway used by leaptable.
//
// Concrete adapters live in pkg/adapters/ subdirectories and register
// themselves by name. Every adapter accepts SQL with named parameters
// (":b0", ":b1", ...) as produced by query translation and binds them to
// the driver's positional placeholders.
package adapter

import (
	"database/sql"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

// Type aliases so adapter implementations need only import this package.
type (
	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)

// Adapter is a connected gateway to one database.
type Adapter interface {
	core.Adapter

	// Pool returns the underlying connection pool, or nil before Connect.
	// Components that need a dedicated connection (session-scoped locks)
	// take one from here.
	Pool() *sql.DB

	// DialectName returns the SQL dialect spoken by the database.
	DialectName() string
}
