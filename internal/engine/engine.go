// Package engine wires query translation, facets, physical schema management
// and materialized views into one facade over the state store, the index
// database and the lock manager.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/leapstack-labs/leaptable/internal/lock"
	"github.com/leapstack-labs/leaptable/internal/matview"
	"github.com/leapstack-labs/leaptable/internal/metrics"
	"github.com/leapstack-labs/leaptable/internal/state"
	"github.com/leapstack-labs/leaptable/internal/tableindex"
	"github.com/leapstack-labs/leaptable/internal/tablesupport"
	"github.com/leapstack-labs/leaptable/pkg/adapter"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/facet"

	// Registered adapters.
	_ "github.com/leapstack-labs/leaptable/pkg/adapters/mysql"
	_ "github.com/leapstack-labs/leaptable/pkg/adapters/postgres"
)

// Lock backends.
const (
	LockBackendMemory   = "memory"
	LockBackendPostgres = "postgres"
)

const defaultQueueSize = 256

// Engine is the entry point for table queries and view maintenance.
type Engine struct {
	// Index database adapter (lazy initialized)
	index       adapter.Adapter
	indexConfig adapter.Config
	indexReady  bool
	indexMu     sync.Mutex

	// Postgres adapter backing advisory locks, if configured.
	lockDB adapter.Adapter

	logger  *slog.Logger
	metrics *metrics.Metrics

	store   *state.SQLiteStore
	locks   lock.Manager
	support *tablesupport.Support
	tables  *tableindex.Manager
	views   *matview.Manager

	maxFacetValues int
	worker         WorkerConfig
	queue          chan core.IDAndVersion
}

// LockConfig selects the lock manager.
type LockConfig struct {
	// Backend is "memory" (default) or "postgres".
	Backend string
	// Postgres is the connection used by the postgres backend.
	Postgres adapter.Config
}

// WorkerConfig controls view rebuild retries.
type WorkerConfig struct {
	MaxRetries uint64
	BaseDelay  time.Duration
}

// Config holds engine configuration.
type Config struct {
	// StatePath is the path to the SQLite state database
	StatePath string
	// Index is the connection to the physical index database
	Index adapter.Config
	// IndexAdapter is a pre-connected index adapter whose TABLE_STATUS table
	// already exists. When set, Index is ignored.
	IndexAdapter adapter.Adapter
	// Lock selects the lock manager
	Lock LockConfig
	// MaxFacetValues bounds enumeration facets (0 uses the default)
	MaxFacetValues int
	// Worker controls view rebuild retries
	Worker WorkerConfig
	// Registerer receives the engine metrics (optional)
	Registerer prometheus.Registerer
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine. The index database is connected on first use.
func New(ctx context.Context, cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	logger.Debug("initializing engine", "state_path", cfg.StatePath, "index_type", cfg.Index.Type)

	store := state.NewSQLiteStore(logger)
	if err := store.Open(cfg.StatePath); err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize state schema: %w", err)
	}

	e := &Engine{
		indexConfig:    cfg.Index,
		logger:         logger,
		metrics:        metrics.New(cfg.Registerer),
		store:          store,
		tables:         tableindex.New(logger),
		maxFacetValues: cfg.MaxFacetValues,
		worker:         cfg.Worker,
		queue:          make(chan core.IDAndVersion, defaultQueueSize),
	}
	if e.maxFacetValues <= 0 {
		e.maxFacetValues = facet.DefaultMaxValues
	}
	if e.worker.MaxRetries == 0 {
		e.worker.MaxRetries = 5
	}
	if e.worker.BaseDelay <= 0 {
		e.worker.BaseDelay = 500 * time.Millisecond
	}
	if cfg.IndexAdapter != nil {
		e.index = cfg.IndexAdapter
		e.indexReady = true
	}

	locks, err := e.newLockManager(ctx, cfg.Lock)
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.locks = locks
	e.support = tablesupport.New(tablesupport.Config{
		Locks:   locks,
		Status:  store,
		Trigger: e.enqueue,
		Logger:  logger,
	})
	e.views = matview.New(matview.Config{
		Store:   store,
		Support: e.support,
		Index:   e.tables,
		Gateway: lazyGateway{e},
		Metrics: e.metrics,
		Logger:  logger,
	})
	return e, nil
}

func (e *Engine) newLockManager(ctx context.Context, cfg LockConfig) (lock.Manager, error) {
	switch cfg.Backend {
	case "", LockBackendMemory:
		return lock.NewMemory(), nil
	case LockBackendPostgres:
		pgCfg := cfg.Postgres
		pgCfg.Type = "postgres"
		db, err := adapter.NewAdapter(pgCfg, e.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create lock adapter: %w", err)
		}
		if err := db.Connect(ctx, pgCfg); err != nil {
			return nil, fmt.Errorf("failed to connect lock database: %w", err)
		}
		e.lockDB = db
		return lock.NewPostgres(db.Pool(), e.logger), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
	}
}

// ensureIndexConnected lazily connects to the index database.
func (e *Engine) ensureIndexConnected(ctx context.Context) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	if e.indexReady {
		return nil
	}

	e.logger.Debug("connecting to index database", "adapter_type", e.indexConfig.Type)

	db, err := adapter.NewAdapter(e.indexConfig, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create index adapter: %w", err)
	}
	if err := db.Connect(ctx, e.indexConfig); err != nil {
		return fmt.Errorf("failed to connect to index database: %w", err)
	}
	if err := e.tables.EnsureStatusTable(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	e.index = db
	e.indexReady = true
	e.logger.Debug("index database connected", "dialect", db.DialectName())
	return nil
}

// gateway returns the connected index database.
func (e *Engine) gateway(ctx context.Context) (core.Gateway, error) {
	if err := e.ensureIndexConnected(ctx); err != nil {
		return nil, err
	}
	return e.index, nil
}

// lazyGateway connects the index database on first statement.
type lazyGateway struct{ e *Engine }

func (g lazyGateway) Exec(ctx context.Context, sql string, params map[string]any) error {
	gw, err := g.e.gateway(ctx)
	if err != nil {
		return err
	}
	return gw.Exec(ctx, sql, params)
}

func (g lazyGateway) Query(ctx context.Context, sql string, params map[string]any) (*core.Rows, error) {
	gw, err := g.e.gateway(ctx)
	if err != nil {
		return nil, err
	}
	return gw.Query(ctx, sql, params)
}

// Close releases all resources.
func (e *Engine) Close() error {
	e.logger.Debug("closing engine")

	var errs []error
	if e.index != nil {
		if err := e.index.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.lockDB != nil {
		if err := e.lockDB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing engine: %v", errs)
	}
	return nil
}

// --- Getters (public accessors) ---

// GetStateStore returns the state store.
func (e *Engine) GetStateStore() *state.SQLiteStore {
	return e.store
}

// GetViewManager returns the materialized view manager.
func (e *Engine) GetViewManager() *matview.Manager {
	return e.views
}
