package adapter

import (
	"context"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct{ BaseSQLAdapter }

func (stubAdapter) DialectName() string { return "stub" }

func (*stubAdapter) Connect(context.Context, Config) error { return nil }

func TestRegistry(t *testing.T) {
	Register("stub", func(l *slog.Logger) Adapter { return &stubAdapter{BaseSQLAdapter{Logger: l}} })

	assert.True(t, IsRegistered("stub"))
	assert.Contains(t, ListAdapters(), "stub")
	assert.True(t, slices.IsSorted(ListAdapters()))
	assert.False(t, IsRegistered("oracle"))

	adp, err := NewAdapter(Config{Type: "stub"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", adp.DialectName())
	assert.Nil(t, adp.Pool())
}

func TestNewAdapter_Errors(t *testing.T) {
	_, err := NewAdapter(Config{}, nil)
	assert.EqualError(t, err, "index type not specified")

	_, err = NewAdapter(Config{Type: "oracle"}, nil)
	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "oracle", unknown.Type)
	assert.Contains(t, err.Error(), "index.type")
}
