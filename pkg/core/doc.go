// Package core defines the shared language of the leaptable system.
//
// This package contains:
//   - Domain entities (ColumnModel, IDAndVersion, TableStatus, MaterializedView)
//   - Physical naming of tables and columns (T<id>, _C<id>_)
//   - Service interfaces (SchemaProvider, Gateway, Adapter)
//   - The error taxonomy shared by translation, facets and views
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
