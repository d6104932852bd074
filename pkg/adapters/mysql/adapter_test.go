package mysql

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/pkg/adapter"
)

func TestBuildMySQLDSN(t *testing.T) {
	tests := []struct {
		name   string
		config adapter.Config
		addr   string
		user   string
		db     string
		params map[string]string
	}{
		{
			name:   "defaults",
			config: adapter.Config{Database: "tables"},
			addr:   "localhost:3306",
			db:     "tables",
		},
		{
			name: "full",
			config: adapter.Config{
				Host:     "db.example.com",
				Port:     3307,
				Database: "index",
				Username: "indexer",
				Password: "secret",
				Options:  map[string]string{"sql_mode": "'ANSI_QUOTES'"},
			},
			addr:   "db.example.com:3307",
			user:   "indexer",
			db:     "index",
			params: map[string]string{"sql_mode": "'ANSI_QUOTES'"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := mysql.ParseDSN(buildMySQLDSN(tt.config))
			require.NoError(t, err)
			assert.Equal(t, "tcp", parsed.Net)
			assert.Equal(t, tt.addr, parsed.Addr)
			assert.Equal(t, tt.user, parsed.User)
			assert.Equal(t, tt.db, parsed.DBName)
			assert.True(t, parsed.ParseTime)
			for k, v := range tt.params {
				assert.Equal(t, v, parsed.Params[k])
			}
		})
	}
}

func TestIsTableNotFound(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"unknown table", &mysql.MySQLError{Number: 1051, Message: "Unknown table 'T1'"}, true},
		{"no such table", &mysql.MySQLError{Number: 1146, Message: "Table 'T1' doesn't exist"}, true},
		{"wrapped", fmt.Errorf("failed to execute SQL: %w", &mysql.MySQLError{Number: 1146}), true},
		{"other server error", &mysql.MySQLError{Number: 1064, Message: "syntax error"}, false},
		{"plain error", assert.AnError, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTableNotFound(tt.err))
		})
	}
}

func TestNew(t *testing.T) {
	adp := New(nil)
	assert.Nil(t, adp.DB, "DB should be nil before Connect")
	assert.False(t, adp.IsConnected())
	assert.Equal(t, "mysql", adp.DialectName())

	err := adp.Exec(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")
}

func TestAdapter_Registry(t *testing.T) {
	factory, ok := adapter.Get("mysql")
	require.True(t, ok, "mysql adapter should be registered")
	_, ok = factory(nil).(*Adapter)
	assert.True(t, ok, "factory should return *Adapter")
}
