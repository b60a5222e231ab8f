package normalizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillpulse/internal/config"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"comma", "a,b,c\n1,2,3", ','},
		{"semicolon", "a;b;c\n1;2;3", ';'},
		{"tab", "a\tb\tc", '\t'},
		{"quoted separator ignored", `"a;b",c,d`, ','},
		{"no separator defaults to comma", "justoneword", ','},
		{"semicolon majority", "a;b;c,d", ';'},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sniffDelimiter([]byte(tt.data)))
		})
	}
}

func TestReadTable_CSV(t *testing.T) {
	cfg := config.Default().Schema

	t.Run("ragged rows allowed", func(t *testing.T) {
		rows, err := ReadTable(strings.NewReader("a,b,c\n1,2\n"), "x.csv", cfg)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Len(t, rows[0], 3)
		assert.Len(t, rows[1], 2)
	})

	t.Run("configured delimiter overrides sniffing", func(t *testing.T) {
		forced := cfg
		forced.Delimiter = "|"

		rows, err := ReadTable(strings.NewReader("a|b,c\n"), "x.csv", forced)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, []string{"a", "b,c"}, rows[0])
	})

	t.Run("missing extension treated as csv", func(t *testing.T) {
		rows, err := ReadTable(strings.NewReader("a,b\n"), "upload", cfg)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})
}

func TestReadTable_UnsupportedExtension(t *testing.T) {
	_, err := ReadTable(strings.NewReader("x"), "report.pdf", config.Default().Schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestReadTable_BrokenXLSX(t *testing.T) {
	_, err := ReadTable(strings.NewReader("this is not a zip archive"), "report.xlsx", config.Default().Schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not be parsed")
}
