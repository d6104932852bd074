package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaptable/pkg/core"
)

var (
	t1 = core.NewID(1)
	t2 = core.NewID(2)
	t3 = core.NewIDWithVersion(3, 1)
	v1 = core.NewID(10)
	v2 = core.NewID(20)
	v3 = core.NewID(30)
)

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph()

	require.NoError(t, g.AddEdge(t1, v1))
	require.NoError(t, g.AddEdge(t2, v1))
	require.NoError(t, g.AddEdge(t2, v1))

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 2, g.EdgeCount())
	assert.Equal(t, []core.IDAndVersion{t1, t2}, g.Sources(v1))
	assert.Equal(t, []core.IDAndVersion{v1}, g.Dependents(t2))
}

func TestGraph_AddEdge_SelfLoop(t *testing.T) {
	g := NewGraph()
	err := g.AddEdge(v1, v1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-loop")
}

func TestGraph_SetSources(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.SetSources(v1, []core.IDAndVersion{t1, t2}))
	require.NoError(t, g.SetSources(v1, []core.IDAndVersion{t3}))

	assert.Equal(t, []core.IDAndVersion{t3}, g.Sources(v1))
	assert.Empty(t, g.Dependents(t1))
	assert.Equal(t, 1, g.EdgeCount())
}

func TestGraph_Remove(t *testing.T) {
	g := NewGraph()
	require.NoError(t, g.SetSources(v1, []core.IDAndVersion{t1}))
	require.NoError(t, g.SetSources(v2, []core.IDAndVersion{v1}))

	g.Remove(v1)

	assert.Empty(t, g.Dependents(t1))
	assert.Empty(t, g.Sources(v2))
	assert.Equal(t, 0, g.EdgeCount())
}

func TestGraph_HasCycle(t *testing.T) {
	tests := []struct {
		name      string
		sources   map[core.IDAndVersion][]core.IDAndVersion
		wantCycle bool
	}{
		{
			name:    "chain",
			sources: map[core.IDAndVersion][]core.IDAndVersion{v1: {t1}, v2: {v1}, v3: {v2, t2}},
		},
		{
			name:      "two views reading each other",
			sources:   map[core.IDAndVersion][]core.IDAndVersion{v1: {v2}, v2: {v1}},
			wantCycle: true,
		},
		{
			name:      "three view loop",
			sources:   map[core.IDAndVersion][]core.IDAndVersion{v1: {v3}, v2: {v1}, v3: {v2}},
			wantCycle: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := FromViewSources(tt.sources)
			require.NoError(t, err)

			cycle, path := g.HasCycle()
			assert.Equal(t, tt.wantCycle, cycle)
			if tt.wantCycle {
				require.NotEmpty(t, path)
				assert.Equal(t, path[0], path[len(path)-1])
			}
		})
	}
}

func TestGraph_WouldCycle(t *testing.T) {
	g, err := FromViewSources(map[core.IDAndVersion][]core.IDAndVersion{v1: {t1}, v2: {v1}})
	require.NoError(t, err)

	cycle, path, err := g.WouldCycle(v1, []core.IDAndVersion{v2})
	require.NoError(t, err)
	assert.True(t, cycle)
	assert.Equal(t, "syn10 -> syn20 -> syn10", FormatPath(path))

	// The graph itself is untouched.
	assert.Equal(t, []core.IDAndVersion{t1}, g.Sources(v1))

	cycle, _, err = g.WouldCycle(v3, []core.IDAndVersion{v2, t2})
	require.NoError(t, err)
	assert.False(t, cycle)

	_, _, err = g.WouldCycle(v3, []core.IDAndVersion{v3})
	assert.Error(t, err)
}

func TestGraph_TopologicalSort(t *testing.T) {
	g, err := FromViewSources(map[core.IDAndVersion][]core.IDAndVersion{
		v3: {v2, t2},
		v2: {v1},
		v1: {t1},
	})
	require.NoError(t, err)

	order, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []core.IDAndVersion{t1, t2, v1, v2, v3}, order)
}

func TestGraph_TopologicalSort_Cycle(t *testing.T) {
	g, err := FromViewSources(map[core.IDAndVersion][]core.IDAndVersion{v1: {v2}, v2: {v1}})
	require.NoError(t, err)

	_, err = g.TopologicalSort()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle detected")
}

func TestGraph_AffectedViews(t *testing.T) {
	g, err := FromViewSources(map[core.IDAndVersion][]core.IDAndVersion{
		v1: {t1},
		v2: {v1, t2},
		v3: {t3},
	})
	require.NoError(t, err)

	tests := []struct {
		name    string
		changed []core.IDAndVersion
		want    []core.IDAndVersion
	}{
		{"source of chain", []core.IDAndVersion{t1}, []core.IDAndVersion{v1, v2}},
		{"second source", []core.IDAndVersion{t2}, []core.IDAndVersion{v2}},
		{"snapshot", []core.IDAndVersion{t3}, []core.IDAndVersion{v3}},
		{"unknown table", []core.IDAndVersion{core.NewID(99)}, []core.IDAndVersion{}},
		{"view changed", []core.IDAndVersion{v1}, []core.IDAndVersion{v2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.AffectedViews(tt.changed...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGraph_Upstream(t *testing.T) {
	g, err := FromViewSources(map[core.IDAndVersion][]core.IDAndVersion{
		v1: {t1},
		v2: {v1, t2},
	})
	require.NoError(t, err)

	assert.Equal(t, []core.IDAndVersion{t1, t2, v1}, g.Upstream(v2))
	assert.Empty(t, g.Upstream(t1))
}
