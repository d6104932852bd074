// Package matview manages materialized views: tables whose content is the
// result of a defining query over other tables.
//
// A view is registered with its defining SQL. Registration records the
// source tables, binds the projected schema to the view and flags the view
// for rebuilding. Rebuilds run under an exclusive lock on the view and
// shared locks on every source table, and are skipped when neither the
// source content nor the view schema changed since the last build.
package matview

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/leapstack-labs/leaptable/internal/dag"
	"github.com/leapstack-labs/leaptable/internal/metrics"
	"github.com/leapstack-labs/leaptable/internal/state"
	"github.com/leapstack-labs/leaptable/internal/tableindex"
	"github.com/leapstack-labs/leaptable/internal/tablesupport"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/parser"
	"github.com/leapstack-labs/leaptable/pkg/sqlquery"
)

// DefaultEtag is the change etag recorded for a rebuilt view.
const DefaultEtag = "DEFAULT"

// Store is the metadata the manager reads and writes.
type Store interface {
	core.ColumnModelManager
	state.ViewStore
	WriteTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Config holds the collaborators of a Manager.
type Config struct {
	Store   Store
	Support *tablesupport.Support
	Index   *tableindex.Manager
	Gateway core.Gateway
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Manager implements the materialized view lifecycle.
type Manager struct {
	store   Store
	support *tablesupport.Support
	index   *tableindex.Manager
	gw      core.Gateway
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Manager.
func New(cfg Config) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		store:   cfg.Store,
		support: cfg.Support,
		index:   cfg.Index,
		gw:      cfg.Gateway,
		metrics: cfg.Metrics,
		logger:  logger,
	}
}

// Validate checks that the defining SQL of view parses and reads from a
// single table.
func (m *Manager) Validate(view core.MaterializedView) error {
	spec, err := parseDefiningSQL(view.DefiningSQL)
	if err != nil {
		return err
	}
	_, err = sqlquery.SingleTableID(spec)
	return err
}

// RegisterSourceTables records the source tables of a view, binds its
// schema and flags it for rebuilding. An unchanged set of source tables is
// not rewritten.
func (m *Manager) RegisterSourceTables(ctx context.Context, id core.IDAndVersion, definingSQL string) error {
	spec, err := parseDefiningSQL(definingSQL)
	if err != nil {
		return err
	}
	sources, err := sqlquery.SourceTableIDs(spec)
	if err != nil {
		return err
	}

	err = m.store.WriteTransaction(ctx, func(ctx context.Context) error {
		if err := m.checkCycles(ctx, id, sources); err != nil {
			return err
		}

		current, err := m.store.GetSourceTablesIDs(ctx, id)
		if err != nil {
			return err
		}
		if !sameSet(current, sources) {
			var removed []core.IDAndVersion
			for _, c := range current {
				if !slices.Contains(sources, c) {
					removed = append(removed, c)
				}
			}
			if len(removed) > 0 {
				if err := m.store.DeleteSourceTablesIDs(ctx, id, removed...); err != nil {
					return err
				}
			}
			if err := m.store.AddSourceTablesIDs(ctx, id, sources); err != nil {
				return err
			}
			m.logger.Debug("updated view source tables",
				slog.String("view", id.String()),
				slog.Int("sources", len(sources)))
		}

		_, err = m.BindSchemaToView(ctx, id, spec)
		return err
	})
	if err != nil {
		return err
	}

	_, err = m.support.SetTableToProcessingAndTriggerUpdate(ctx, id)
	return err
}

func (m *Manager) checkCycles(ctx context.Context, id core.IDAndVersion, sources []core.IDAndVersion) error {
	all, err := m.store.GetAllViewSources(ctx)
	if err != nil {
		return err
	}
	g, err := dag.FromViewSources(all)
	if err != nil {
		return err
	}
	cycle, path, err := g.WouldCycle(id, sources)
	if err != nil {
		return core.NewValidationError("view %s cannot read from itself", id)
	}
	if cycle {
		return core.NewValidationError("view %s would create a dependency cycle: %s", id, dag.FormatPath(path))
	}
	return nil
}

// BindSchemaToView translates the defining query against the current
// source schemas and binds its output columns to the view, creating column
// models as needed. The returned query selects no ROW_ID or ROW_VERSION and
// can populate the view table directly.
func (m *Manager) BindSchemaToView(ctx context.Context, id core.IDAndVersion, spec *parser.QuerySpecification) (*sqlquery.Query, error) {
	q, err := sqlquery.NewBuilder(spec).
		SchemaProvider(m.store).
		AllowJoins(true).
		IncludeRowIDAndVersion(false).
		Build(ctx)
	if err != nil {
		return nil, err
	}

	selected := q.SchemaOfSelect()
	ids := make([]string, 0, len(selected))
	seen := make(map[string]bool, len(selected))
	for _, cm := range selected {
		if seen[cm.Name] {
			return nil, core.NewValidationError("duplicate column name %q in view %s; give each column a distinct alias", cm.Name, id)
		}
		seen[cm.Name] = true

		created, err := m.store.CreateColumnModel(ctx, cm)
		if err != nil {
			return nil, err
		}
		ids = append(ids, created.ID)
	}
	if err := m.store.BindColumnsToVersionOfObject(ctx, ids, id); err != nil {
		return nil, err
	}
	return q, nil
}

// GetSchemaIDs returns the column ids bound to the view.
func (m *Manager) GetSchemaIDs(ctx context.Context, id core.IDAndVersion) ([]string, error) {
	return m.store.GetColumnIDsForTable(ctx, id)
}

// DeleteViewIndex drops the physical table of the view and its bookkeeping.
func (m *Manager) DeleteViewIndex(ctx context.Context, id core.IDAndVersion) error {
	if _, err := m.index.DeleteTable(ctx, m.gw, id); err != nil {
		return err
	}
	return m.index.DeleteIndexState(ctx, m.gw, id)
}

// CreateOrUpdateViewIndex brings the physical table of a view up to date.
// It takes the exclusive lock on the view, rebinds the schema, then takes
// shared locks on every source table before building. Lock contention and
// a lost status token are reported as recoverable errors.
func (m *Manager) CreateOrUpdateViewIndex(ctx context.Context, id core.IDAndVersion) error {
	if id.Versioned {
		return core.NewValidationError("materialized view snapshots are not supported: %s", id)
	}
	start := time.Now()
	outcome := metrics.RebuildFailed

	err := m.support.TryRunWithTableExclusiveLock(ctx, id, func(ctx context.Context) error {
		// Failures before processing starts are recorded against the token
		// issued when the rebuild was triggered.
		var token string
		if st, err := m.support.GetTableStatus(ctx, id); err == nil {
			token = st.ResetToken
		}
		err := m.rebuildHoldingExclusiveLock(ctx, id, &token, &outcome)
		if err != nil && !core.IsRecoverable(err) && token != "" {
			m.recordFailure(ctx, id, token, err)
		}
		return err
	})
	if err != nil && core.IsRecoverable(err) {
		outcome = metrics.RebuildRetry
	}
	m.metrics.ObserveRebuild(outcome, time.Since(start))
	return err
}

func (m *Manager) rebuildHoldingExclusiveLock(ctx context.Context, id core.IDAndVersion, token *string, outcome *string) error {
	view, err := m.store.GetView(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError("no defining SQL for: %s", id)
		}
		return err
	}
	spec, err := parseDefiningSQL(view.DefiningSQL)
	if err != nil {
		return err
	}

	var q *sqlquery.Query
	err = m.store.WriteTransaction(ctx, func(ctx context.Context) error {
		q, err = m.BindSchemaToView(ctx, id, spec)
		return err
	})
	if err != nil {
		return err
	}

	return m.support.TryRunWithTableNonexclusiveLock(ctx, func(ctx context.Context) error {
		built, err := m.rebuildHoldingLocks(ctx, id, q, token)
		if built {
			*outcome = metrics.RebuildBuilt
		} else if err == nil {
			*outcome = metrics.RebuildUpToDate
		}
		return err
	}, q.TableIDs()...)
}

func (m *Manager) recordFailure(ctx context.Context, id core.IDAndVersion, token string, cause error) {
	if err := m.support.AttemptToSetTableStatusToFailed(ctx, id, token, cause); err != nil {
		m.logger.Warn("failed to record view failure",
			slog.String("view", id.String()),
			slog.String("error", err.Error()))
	}
}

// rebuildHoldingLocks rebuilds the view table from q. It reports whether a
// build happened. Once processing starts, token holds the new reset token.
func (m *Manager) rebuildHoldingLocks(ctx context.Context, id core.IDAndVersion, q *sqlquery.Query, token *string) (bool, error) {
	viewSchema, err := m.store.GetTableSchema(ctx, id)
	if err != nil {
		return false, err
	}
	want := tableindex.IndexState{SchemaMD5: core.SchemaMD5Hex(viewSchema)}
	for _, src := range q.TableIDs() {
		crc, err := m.index.CalculateCRC(ctx, m.gw, src)
		if err != nil {
			return false, err
		}
		want.CRC += crc
	}

	current, ok, err := m.index.GetIndexState(ctx, m.gw, id)
	if err != nil {
		return false, err
	}
	if ok && current == want {
		st, err := m.support.GetTableStatus(ctx, id)
		if err == nil && st.State == core.TableStateAvailable {
			m.logger.Debug("view is up to date", slog.String("view", id.String()))
			return false, nil
		}
	}

	started, err := m.support.StartTableProcessing(ctx, id)
	if err != nil {
		return false, err
	}
	*token = started
	if err := m.build(ctx, id, started, viewSchema, q, want); err != nil {
		var tokenErr *core.InvalidStatusTokenError
		if errors.As(err, &tokenErr) {
			m.logger.Info("view rebuild superseded", slog.String("view", id.String()))
		}
		return false, err
	}
	m.logger.Info("rebuilt view", slog.String("view", id.String()), slog.Int64("crc", want.CRC))
	return true, nil
}

func (m *Manager) build(ctx context.Context, id core.IDAndVersion, token string, schema []core.ColumnModel, q *sqlquery.Query, want tableindex.IndexState) error {
	if err := m.index.RecreateViewTable(ctx, m.gw, schema, id); err != nil {
		return err
	}
	if err := m.support.AttemptToUpdateTableProgress(ctx, id, token, "Building MaterializedView...", 0, 1); err != nil {
		return err
	}
	if err := m.index.PopulateFromQuery(ctx, m.gw, id, schema, q); err != nil {
		return err
	}
	if err := m.index.SetIndexVersionAndSchemaMD5Hex(ctx, m.gw, id, want); err != nil {
		return err
	}
	return m.support.AttemptToSetTableStatusToAvailable(ctx, id, token, DefaultEtag)
}

func parseDefiningSQL(definingSQL string) (*parser.QuerySpecification, error) {
	if strings.TrimSpace(definingSQL) == "" {
		return nil, core.NewValidationError("the definingSQL of the materialized view is required")
	}
	spec, err := parser.ParseQuery(definingSQL)
	if err != nil {
		return nil, &core.ValidationError{Err: err}
	}
	return spec, nil
}

func sameSet(a, b []core.IDAndVersion) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	return true
}
