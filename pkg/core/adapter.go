package core

import (
	"context"
	"database/sql"
)

// SchemaProvider resolves the logical schema of tables.
type SchemaProvider interface {
	// GetTableSchema returns the ordered columns bound to a table.
	GetTableSchema(ctx context.Context, id IDAndVersion) ([]ColumnModel, error)

	// GetColumnModel returns a column model by id.
	GetColumnModel(ctx context.Context, columnID string) (*ColumnModel, error)
}

// ColumnModelManager extends SchemaProvider with column creation and binding.
type ColumnModelManager interface {
	SchemaProvider

	// CreateColumnModel returns the existing model with the same structure,
	// or creates one. It never creates duplicates.
	CreateColumnModel(ctx context.Context, cm ColumnModel) (ColumnModel, error)

	// BindColumnsToVersionOfObject replaces the ordered column binding of a table.
	BindColumnsToVersionOfObject(ctx context.Context, columnIDs []string, id IDAndVersion) error

	// GetColumnIDsForTable returns the ordered column ids bound to a table.
	GetColumnIDsForTable(ctx context.Context, id IDAndVersion) ([]string, error)
}

// Gateway executes physical SQL with named parameters (":b0", ":b1", ...).
type Gateway interface {
	// Exec executes a SQL statement that doesn't return rows.
	Exec(ctx context.Context, sql string, params map[string]any) error

	// Query executes a SQL statement that returns rows.
	Query(ctx context.Context, sql string, params map[string]any) (*Rows, error)
}

// Adapter is a Gateway with a connection lifecycle.
type Adapter interface {
	Gateway

	// Connect establishes a connection to the database.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the database connection.
	Close() error
}

// AdapterConfig holds configuration for connecting to a database.
type AdapterConfig struct {
	Type     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Options  map[string]string
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
