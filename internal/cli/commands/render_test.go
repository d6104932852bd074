package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/leaptable/internal/config"
)

func TestRenderer_Formats(t *testing.T) {
	tests := []struct {
		format   string
		contains []string
		absent   []string
	}{
		{
			format:   config.OutputText,
			contains: []string{"Views", "syn1", "AVAILABLE", "select foo from syn1"},
			absent:   []string{"```", "## "},
		},
		{
			format:   config.OutputMarkdown,
			contains: []string{"## Views", "| View |", "```sql\nselect foo from syn1\n```"},
		},
		{
			format:   "yaml",
			contains: []string{"Views", "syn1"},
			absent:   []string{"## "},
		},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewRenderer(&buf, tt.format)
			assert.False(t, r.IsJSON())

			r.Table("Views", []string{"View", "State"}, [][]any{{"syn1", "AVAILABLE"}})
			r.Code("select foo from syn1")

			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestRenderer_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, config.OutputText).Table("Views (0 total)", []string{"View"}, nil)
	assert.Contains(t, buf.String(), "Views (0 total)\n")
	assert.Contains(t, buf.String(), "(0 rows)")
	assert.NotContains(t, buf.String(), "(0 ROWS)")
}

func TestRenderer_JSON(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, config.OutputJSON)
	assert.True(t, r.IsJSON())
	assert.NoError(t, r.JSON(map[string]int{"rows": 2}))
	assert.JSONEq(t, `{"rows":2}`, buf.String())
}

func TestRenderer_KeyValues(t *testing.T) {
	var buf bytes.Buffer
	NewRenderer(&buf, config.OutputText).KeyValues("syn100", [][2]any{{"state", "PROCESSING"}})
	assert.Contains(t, buf.String(), "Field")
	assert.NotContains(t, buf.String(), "FIELD")
	assert.Contains(t, buf.String(), "PROCESSING")
}
