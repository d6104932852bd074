package engine

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/internal/testutil"
	"github.com/leapstack-labs/leaptable/pkg/adapters/mysql"
	"github.com/leapstack-labs/leaptable/pkg/core"
	"github.com/leapstack-labs/leaptable/pkg/facet"
)

var (
	syn1   = core.NewID(1)
	viewID = core.NewID(100)

	fooColumn = core.ColumnModel{Name: "foo", ColumnType: core.ColumnTypeString, MaximumSize: 50, FacetType: core.FacetTypeEnumeration}
	barColumn = core.ColumnModel{Name: "bar", ColumnType: core.ColumnTypeInteger, FacetType: core.FacetTypeRange}
)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	index := mysql.New(nil)
	index.DB = db

	e, err := New(context.Background(), Config{
		StatePath:    ":memory:",
		IndexAdapter: index,
		Worker:       WorkerConfig{MaxRetries: 1, BaseDelay: time.Millisecond},
		Registerer:   prometheus.NewRegistry(),
		Logger:       testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e, mock
}

// syncTable creates syn1 with foo and bar. The ids are 1 and 2.
func syncTable(t *testing.T, e *Engine, mock sqlmock.Sqlmock) []core.ColumnModel {
	t.Helper()
	mock.ExpectQuery(regexp.QuoteMeta("SHOW COLUMNS FROM T1")).
		WillReturnError(&gomysql.MySQLError{Number: 1146, Message: "Table 'T1' doesn't exist"})
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS T1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	schema, changed, err := e.SyncTableSchema(context.Background(), syn1, []core.ColumnModel{fooColumn, barColumn})
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, schema, 2)
	assert.Equal(t, "1", schema[0].ID)
	assert.Equal(t, "2", schema[1].ID)
	return schema
}

func TestNew_UnknownLockBackend(t *testing.T) {
	_, err := New(context.Background(), Config{StatePath: ":memory:", Lock: LockConfig{Backend: "zookeeper"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lock backend")
}

func TestNew_InvalidStatePath(t *testing.T) {
	_, err := New(context.Background(), Config{StatePath: "/nonexistent/path/state.db"})
	require.Error(t, err)
}

func TestEngine_SyncAndTranslate(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)

	q, err := e.Translate(ctx, "select foo from syn1 where bar > 3", TranslateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT _C1_, ROW_ID, ROW_VERSION FROM T1 WHERE _C2_ > :b0", q.OutputSQL())
	assert.Equal(t, map[string]any{"b0": int64(3)}, q.Parameters())

	q, err = e.Translate(ctx, "select foo from syn1", TranslateOptions{OmitRowIDs: true})
	require.NoError(t, err)
	assert.Equal(t, "SELECT _C1_ FROM T1", q.OutputSQL())

	_, err = e.Translate(ctx, "select nope from syn1", TranslateOptions{})
	assert.True(t, core.IsValidation(err))

	// Unchanged schema: the live table already matches.
	mock.ExpectQuery(regexp.QuoteMeta("SHOW COLUMNS FROM T1")).
		WillReturnRows(sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
			AddRow("ROW_ID", "bigint", "NO", "PRI", nil, "").
			AddRow("ROW_VERSION", "bigint", "NO", "", nil, "").
			AddRow("_C1_", "varchar(50)", "YES", "", nil, "").
			AddRow("_C2_", "bigint", "YES", "", nil, ""))
	_, changed, err := e.SyncTableSchema(ctx, syn1, []core.ColumnModel{fooColumn, barColumn})
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_SyncTableSchema_DuplicateColumn(t *testing.T) {
	e, mock := newTestEngine(t)

	_, _, err := e.SyncTableSchema(context.Background(), syn1, []core.ColumnModel{fooColumn, fooColumn})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_QueryWithFacets(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT _C1_, _C2_, ROW_ID, ROW_VERSION FROM T1")).
		WillReturnRows(sqlmock.NewRows([]string{"_C1_", "_C2_", "ROW_ID", "ROW_VERSION"}).
			AddRow([]byte("a"), int64(1), int64(10), int64(0)))
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"value", "frequency"}).
			AddRow("a", int64(3)).
			AddRow("b", int64(1)))
	mock.ExpectQuery(regexp.QuoteMeta("MIN(")).
		WillReturnRows(sqlmock.NewRows([]string{"minimum", "maximum"}).AddRow("1", "9"))

	res, err := e.Query(ctx, QueryRequest{
		SQL:          "select foo, bar from syn1",
		Facets:       []facet.Request{&facet.ValuesRequest{ColumnName: "foo", Values: []string{"a"}}},
		ReturnFacets: true,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, []string{"_C1_", "_C2_", "ROW_ID", "ROW_VERSION"}, res.Columns)
	assert.Equal(t, [][]any{{"a", int64(1), int64(10), int64(0)}}, res.Rows)
	assert.Contains(t, res.Query.OutputSQL(), "IN")

	require.Len(t, res.Facets, 2)
	assert.Equal(t, "foo", res.Facets[0].ColumnName)
	assert.Equal(t, []facet.ValueCount{
		{Value: "a", Count: 3, Selected: true},
		{Value: "b", Count: 1},
	}, res.Facets[0].Values)
	assert.Equal(t, "bar", res.Facets[1].ColumnName)
	assert.Equal(t, "1", res.Facets[1].ColumnMin)
	assert.Equal(t, "9", res.Facets[1].ColumnMax)
}

func TestEngine_QueryFacetError(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)

	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT _C1_, _C2_, ROW_ID, ROW_VERSION FROM T1")).
		WillReturnRows(sqlmock.NewRows([]string{"_C1_", "_C2_", "ROW_ID", "ROW_VERSION"}))
	mock.ExpectQuery(regexp.QuoteMeta("MIN(")).
		WillReturnError(errors.New("lost connection"))

	_, err := e.Query(ctx, QueryRequest{
		SQL:    "select foo, bar from syn1",
		Facets: []facet.Request{&facet.RangeRequest{ColumnName: "bar", Min: "2"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "facet bar")
}

func TestEngine_FacetQueries_RejectsMismatchedFacetType(t *testing.T) {
	e, mock := newTestEngine(t)
	syncTable(t, e, mock)

	_, _, err := e.FacetQueries(context.Background(), QueryRequest{
		SQL: "select foo from syn1",
		Facets: []facet.Request{
			&facet.ValuesRequest{ColumnName: "bar", Values: []string{"1"}},
		},
	})
	require.Error(t, err)
	assert.True(t, core.IsValidation(err))
}

func expectViewBuild(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta("CRC32")).
		WillReturnRows(sqlmock.NewRows([]string{"crc"}).AddRow(int64(5)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT CRC, SCHEMA_HASH FROM TABLE_STATUS")).
		WillReturnRows(sqlmock.NewRows([]string{"CRC", "SCHEMA_HASH"}))
	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE T100")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS T100")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO T100 (_C1_) SELECT _C1_ FROM T1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO TABLE_STATUS")).
		WillReturnResult(sqlmock.NewResult(0, 1))
}

func TestEngine_ViewLifecycle(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)

	err := e.CreateView(ctx, core.MaterializedView{ID: viewID, DefiningSQL: "select foo from syn1 a join syn1 b on a.foo = b.foo"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrJoinNotSupported)

	require.NoError(t, e.CreateView(ctx, core.MaterializedView{ID: viewID, DefiningSQL: "select foo from syn1"}))

	views, err := e.ListViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)

	affected, err := e.ViewsAffectedBy(ctx, syn1)
	require.NoError(t, err)
	assert.Equal(t, []core.IDAndVersion{viewID}, affected)

	expectViewBuild(mock)
	n, err := e.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())

	st, err := e.ViewStatus(ctx, viewID)
	require.NoError(t, err)
	assert.Equal(t, core.TableStateAvailable, st.State)

	// A change to the source table flags the view again.
	require.NoError(t, e.NotifyTableChanged(ctx, syn1))
	st, err = e.ViewStatus(ctx, viewID)
	require.NoError(t, err)
	assert.Equal(t, core.TableStateProcessing, st.State)

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE T100")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM TABLE_STATUS")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, e.DeleteView(ctx, viewID))
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = e.ViewStatus(ctx, viewID)
	assert.True(t, core.IsNotFound(err))
	affected, err = e.ViewsAffectedBy(ctx, syn1)
	require.NoError(t, err)
	assert.Empty(t, affected)
}

func TestEngine_ProcessPending_RetriesLockContention(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)
	require.NoError(t, e.CreateView(ctx, core.MaterializedView{ID: viewID, DefiningSQL: "select foo from syn1"}))

	release, err := e.locks.TryExclusive(ctx, "T100")
	require.NoError(t, err)
	defer release()

	_, err = e.ProcessPending(ctx)
	require.Error(t, err)
	assert.True(t, core.IsRecoverable(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_RunWorker(t *testing.T) {
	e, mock := newTestEngine(t)
	syncTable(t, e, mock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.CreateView(ctx, core.MaterializedView{ID: viewID, DefiningSQL: "select foo from syn1"}))
	expectViewBuild(mock)

	done := make(chan error, 1)
	go func() { done <- e.RunWorker(ctx) }()

	require.Eventually(t, func() bool {
		st, err := e.ViewStatus(context.Background(), viewID)
		return err == nil && st.State == core.TableStateAvailable
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_DropTable(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)

	mock.ExpectExec(regexp.QuoteMeta("DROP TABLE T1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM TABLE_STATUS")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	dropped, err := e.DropTable(ctx, syn1)
	require.NoError(t, err)
	assert.True(t, dropped)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = e.TableSchema(ctx, syn1)
	assert.True(t, core.IsNotFound(err))
}

func TestEngine_QueueStaleViews(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)
	require.NoError(t, e.CreateView(ctx, core.MaterializedView{ID: viewID, DefiningSQL: "select foo from syn1"}))

	// drain the trigger from CreateView as if the process had restarted
	<-e.queue

	n, err := e.QueueStaleViews(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expectViewBuild(mock)
	processed, err := e.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	require.NoError(t, mock.ExpectationsWereMet())

	n, err = e.QueueStaleViews(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEngine_Accessors(t *testing.T) {
	e, mock := newTestEngine(t)
	ctx := context.Background()
	syncTable(t, e, mock)
	require.NoError(t, e.CreateView(ctx, core.MaterializedView{ID: viewID, DefiningSQL: "select foo from syn1"}))

	require.NotNil(t, e.GetStateStore().DB())
	ids, err := e.GetViewManager().GetSchemaIDs(ctx, viewID)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, ids)
}
