package binding

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableSetGetInvalidate(t *testing.T) {
	tbl := NewTable(Contents{"q1": []any{map[string]any{"x": 1, "y": 2}}})

	v, ok := tbl.Get("q1")
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"x": 1, "y": 2}}, v)

	tbl.Set("q1", 42)
	v, ok = tbl.Get("q1")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	assert.True(t, tbl.Invalidate("q1"))
	assert.False(t, tbl.Invalidate("q1"))
	_, ok = tbl.Get("q1")
	assert.False(t, ok)
}

func TestTableZeroValueIsUsable(t *testing.T) {
	var tbl Table
	tbl.Set("a", 1)
	v, ok := tbl.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableReplace(t *testing.T) {
	tbl := NewTable(Contents{"a": 1, "b": 2})
	tbl.Replace(Contents{"c": 3})
	assert.Equal(t, []string{"c"}, tbl.Keys())
}

func TestFreezeIsIsolatedFromLaterWrites(t *testing.T) {
	rows := []any{map[string]any{"x": 1}}
	tbl := NewTable(Contents{"q1": rows})
	frozen := tbl.Freeze()

	tbl.Set("q1", "new")
	tbl.Set("q2", "added")
	rows[0].(map[string]any)["x"] = 99

	v, ok := frozen.Get("q1")
	require.True(t, ok)
	assert.Equal(t, []any{map[string]any{"x": 1}}, v)
	_, ok = frozen.Get("q2")
	assert.False(t, ok)
	assert.Equal(t, []string{"q1"}, frozen.Keys())
}

func TestFrozenContentsIsACopy(t *testing.T) {
	frozen := NewFrozen(Contents{"q": map[string]any{"v": 1}})
	out := frozen.Contents()
	out["q"].(map[string]any)["v"] = 2

	v, _ := frozen.Get("q")
	assert.Equal(t, map[string]any{"v": 1}, v)
	assert.Equal(t, 1, frozen.Len())
}

func TestConcurrentReadersSeeWholeValues(t *testing.T) {
	tbl := NewTable(Contents{"k": []any{0, 0}})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 500; i++ {
			tbl.Set("k", []any{i, i})
		}
	}()
	for i := 0; i < 500; i++ {
		v, ok := tbl.Get("k")
		require.True(t, ok)
		pair := v.([]any)
		assert.Equal(t, pair[0], pair[1])
	}
	wg.Wait()
}

func TestDependenciesKeysFor(t *testing.T) {
	deps := Dependencies{
		"region":  {"q2", "q1", "q2", ""},
		"account": {},
	}
	assert.Equal(t, []string{"q1", "q2"}, deps.KeysFor("region"))
	assert.Nil(t, deps.KeysFor("account"))
	assert.Nil(t, deps.KeysFor("missing"))
	assert.Equal(t, []string{"region"}, deps.Inputs())
}
