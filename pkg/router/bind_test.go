package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindNamed(t *testing.T) {
	args := map[string]any{"visit_id": "V1", "patient_id": "P1"}

	tests := []struct {
		name     string
		sql      string
		style    PlaceholderStyle
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "dollar style",
			sql:      "SELECT * FROM t WHERE visit_id = :visit_id AND patient_id = :patient_id",
			style:    StyleDollar,
			wantSQL:  "SELECT * FROM t WHERE visit_id = $1 AND patient_id = $2",
			wantArgs: []any{"V1", "P1"},
		},
		{
			name:     "question style repeats values",
			sql:      "SELECT * FROM t WHERE a = :visit_id OR b = :visit_id",
			style:    StyleQuestion,
			wantSQL:  "SELECT * FROM t WHERE a = ? OR b = ?",
			wantArgs: []any{"V1", "V1"},
		},
		{
			name:     "dollar style reuses position",
			sql:      "SELECT * FROM t WHERE a = :visit_id OR b = :visit_id",
			style:    StyleDollar,
			wantSQL:  "SELECT * FROM t WHERE a = $1 OR b = $1",
			wantArgs: []any{"V1"},
		},
		{
			name:     "at style",
			sql:      "SELECT * FROM t WHERE visit_id = :visit_id",
			style:    StyleAtP,
			wantSQL:  "SELECT * FROM t WHERE visit_id = @p1",
			wantArgs: []any{"V1"},
		},
		{
			name:     "no placeholders",
			sql:      "SELECT 1",
			style:    StyleDollar,
			wantSQL:  "SELECT 1",
			wantArgs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := BindNamed(tt.sql, args, tt.style)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}
}

func TestBindNamedMissingArgument(t *testing.T) {
	_, _, err := BindNamed("SELECT * FROM t WHERE id = :nope", map[string]any{}, StyleDollar)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ":nope")
}

func TestHasNamedPlaceholders(t *testing.T) {
	assert.True(t, HasNamedPlaceholders("SELECT :a"))
	assert.False(t, HasNamedPlaceholders("SELECT $1"))
}
