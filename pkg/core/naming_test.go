package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIDAndVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    IDAndVersion
		wantStr string
		wantErr bool
	}{
		{in: "syn123", want: NewID(123), wantStr: "syn123"},
		{in: "SYN123.4", want: NewIDWithVersion(123, 4), wantStr: "syn123.4"},
		{in: "456", want: NewID(456), wantStr: "syn456"},
		{in: "syn0.0", want: NewIDWithVersion(0, 0), wantStr: "syn0.0"},
		{in: "synabc", wantErr: true},
		{in: "syn1.x", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIDAndVersion(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantStr, got.String())
			assert.Equal(t, NewID(got.ID), got.WithoutVersion())
		})
	}
}

func TestTableNameRoundTrip(t *testing.T) {
	for _, id := range []IDAndVersion{NewID(123), NewIDWithVersion(123, 4), NewID(0)} {
		name := TableName(id)
		back, ok := TableIDFromName(name)
		require.True(t, ok, name)
		assert.Equal(t, id, back)
	}
	assert.Equal(t, "T123", TableName(NewID(123)))
	assert.Equal(t, "T123_4", TableName(NewIDWithVersion(123, 4)))

	_, ok := TableIDFromName("X123")
	assert.False(t, ok)
}

func TestColumnNameRoundTrip(t *testing.T) {
	assert.Equal(t, "_C890_", ColumnName("890"))

	id, ok := ColumnIDFromName("_C890_")
	require.True(t, ok)
	assert.Equal(t, "890", id)

	for _, name := range []string{"ROW_ID", "_C_", "C890_", "_C890"} {
		_, ok := ColumnIDFromName(name)
		assert.False(t, ok, name)
	}
	assert.True(t, IsSystemColumn(RowVersionColumn))
}

func TestColumnModelHash(t *testing.T) {
	a := ColumnModel{ID: "1", Name: "foo", ColumnType: ColumnTypeString, MaximumSize: 50}
	b := a
	b.ID = "2"
	assert.Equal(t, a.Hash(), b.Hash(), "hash ignores id")

	c := a
	c.FacetType = FacetTypeEnumeration
	assert.NotEqual(t, a.Hash(), c.Hash())

	assert.NotEqual(t,
		SchemaMD5Hex([]ColumnModel{{ID: "1"}, {ID: "2"}}),
		SchemaMD5Hex([]ColumnModel{{ID: "2"}, {ID: "1"}}),
	)
}

func TestColumnType(t *testing.T) {
	ct, err := ParseColumnType("string_list")
	require.NoError(t, err)
	assert.True(t, ct.IsList())
	assert.Equal(t, ColumnTypeString, ct.BaseType())
	assert.True(t, ColumnTypeDate.IsIntegral())
	assert.False(t, ColumnTypeDouble.IsIntegral())

	_, err = ParseColumnType("BLOB")
	assert.Error(t, err)

	assert.Equal(t, int64(1000), ColumnModel{ColumnType: ColumnTypeLink}.EffectiveMaxSize())
	assert.Equal(t, int64(50), ColumnModel{ColumnType: ColumnTypeString}.EffectiveMaxSize())
}

func TestErrorClassification(t *testing.T) {
	wrapped := fmt.Errorf("rebuild: %w", &InvalidStatusTokenError{Table: NewID(1)})
	assert.True(t, IsRecoverable(wrapped))
	assert.True(t, IsRecoverable(&LockUnavailableError{Key: "syn1"}))
	assert.False(t, IsRecoverable(errors.New("boom")))

	v := &ValidationError{Message: "bad", Err: ErrJoinNotSupported}
	assert.True(t, IsValidation(fmt.Errorf("x: %w", v)))
	assert.ErrorIs(t, v, ErrJoinNotSupported)
	assert.True(t, IsNotFound(&NotFoundError{Kind: "view", Key: "syn1"}))
}
