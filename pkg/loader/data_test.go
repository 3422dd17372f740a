package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadData(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantLen int
		first   any
	}{
		{name: "json object", input: `{"count": 3}`, wantLen: 1, first: map[string]any{"count": float64(3)}},
		{name: "json array", input: `[1, 2]`, wantLen: 1, first: []any{float64(1), float64(2)}},
		{name: "yaml mapping", input: "region: us-east\n", wantLen: 1, first: map[string]any{"region": "us-east"}},
		{name: "yaml list is not ndjson", input: "- a\n- b\n", wantLen: 1, first: []any{"a", "b"}},
		{name: "multi document yaml", input: "a: 1\n---\nb: 2\n", wantLen: 2, first: map[string]any{"a": 1}},
		{name: "ndjson", input: "{\"x\":1}\n{\"x\":2}\n", wantLen: 2, first: map[string]any{"x": float64(1)}},
		{name: "ndjson with crlf", input: "{\"x\":1}\r\n{\"x\":2}\r\n", wantLen: 2, first: map[string]any{"x": float64(1)}},
		{name: "toml section", input: "[server]\nport = 8080\n", wantLen: 1, first: map[string]any{"server": map[string]any{"port": int64(8080)}}},
		{name: "broken json reads as yaml", input: `{invalid}`, wantLen: 1, first: map[string]any{"invalid": nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadData(tt.input)
			require.NoError(t, err)
			require.Len(t, got, tt.wantLen)
			assert.Equal(t, tt.first, got[0])
		})
	}
}

func TestLoadDataTOMLFalsePositive(t *testing.T) {
	input := "items:\n  - when: arch == \"2.0\"\n    expression: |\n      [\"legacy\"]\n"
	got, err := LoadData(input)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.IsType(t, map[string]any{}, got[0])
}

func TestLoadDataEmpty(t *testing.T) {
	_, err := LoadData("  \n")
	require.ErrorIs(t, err, ErrEmpty)
}

func TestLoadRoot(t *testing.T) {
	single, err := LoadRoot(`{"a": 1}`)
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, single)

	multi, err := LoadRoot("a: 1\n---\na: 2\n")
	require.NoError(t, err)
	list, ok := multi.([]any)
	require.True(t, ok)
	assert.Len(t, list, 2)
}

func TestIsLikelyTOML(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"[server]\nhost = \"x\"", true},
		{"key = \"value\"\nother = 2", true},
		{"[[items]]\nname = \"a\"", true},
		{"# comment\nname = 'x'", true},
		{"name: value", false},
		{"[1, 2, 3]", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isLikelyTOML(tt.input), tt.input)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		return p
	}

	t.Run("yaml by extension", func(t *testing.T) {
		v, err := LoadFile(write("q.yml", "rows:\n  - id: 1\n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"rows": []any{map[string]any{"id": 1}}}, v)
	})

	t.Run("toml by extension", func(t *testing.T) {
		v, err := LoadFile(write("q.toml", "total = 12\n"))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"total": int64(12)}, v)
	})

	t.Run("ndjson by extension", func(t *testing.T) {
		v, err := LoadFile(write("q.ndjson", "{\"id\":1}\n"))
		require.NoError(t, err)
		assert.Equal(t, []any{map[string]any{"id": float64(1)}}, v)
	})

	t.Run("wrong extension falls back to detection", func(t *testing.T) {
		v, err := LoadFile(write("oops.toml", `{"key":"val"}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"key": "val"}, v)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadFile(filepath.Join(dir, "absent.json"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}
