package live

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oakwood-commons/dashx/pkg/binding"
)

const dash = "m.dashboard.d"

func newWatchDir(t *testing.T) (root, dir string) {
	t.Helper()
	root = t.TempDir()
	dir = filepath.Join(root, dash)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	return root, dir
}

// receive advances the mock clock until an update arrives.
func receive(t *testing.T, mock *clock.Mock, ch <-chan binding.Update) binding.Update {
	t.Helper()
	var got binding.Update
	require.Eventually(t, func() bool {
		mock.Add(time.Second)
		select {
		case u, ok := <-ch:
			if !ok {
				return false
			}
			got = u
			return true
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
	return got
}

func TestDirSourceInitialScan(t *testing.T) {
	root, dir := newWatchDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.b.json"), []byte(`{"n": 2}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.a.yaml"), []byte("n: 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := NewDirSource(root, WithClock(clock.NewMock()))
	ch, err := src.Subscribe(ctx, dash)
	require.NoError(t, err)

	assert.Equal(t, binding.Update{Key: "q.a", Payload: map[string]any{"n": 1}}, <-ch)
	assert.Equal(t, binding.Update{Key: "q.b", Payload: map[string]any{"n": float64(2)}}, <-ch)

	cancel()
	for range ch {
	}
}

func TestDirSourceWatchesChanges(t *testing.T) {
	root, dir := newWatchDir(t)
	mock := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := NewDirSource(root, WithClock(mock), WithDebounce(100*time.Millisecond), WithInitialScan(false))
	ch, err := src.Subscribe(ctx, dash)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.count.toml"), []byte("total = 7\n"), 0o644))
	got := receive(t, mock, ch)
	assert.Equal(t, "q.count", got.Key)
	assert.Equal(t, map[string]any{"total": int64(7)}, got.Payload)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "q.count.toml"), []byte("total = 8\n"), 0o644))
	for {
		got = receive(t, mock, ch)
		if got.Payload.(map[string]any)["total"] == int64(8) {
			break
		}
	}

	cancel()
	for range ch {
	}
}

func TestDirSourceSkipsUndecodable(t *testing.T) {
	root, dir := newWatchDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"open": `), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(`[1]`), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := NewDirSource(root, WithClock(clock.NewMock())).Subscribe(ctx, dash)
	require.NoError(t, err)

	assert.Equal(t, binding.Update{Key: "good", Payload: []any{float64(1)}}, <-ch)
	cancel()
	for range ch {
	}
}

func TestDirSourceMissingDirectory(t *testing.T) {
	_, err := NewDirSource(t.TempDir()).Subscribe(context.Background(), "absent")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestQueryKey(t *testing.T) {
	tests := []struct {
		path string
		key  string
		ok   bool
	}{
		{"/x/q.count.json", "q.count", true},
		{"/x/rows.NDJSON", "rows", true},
		{"/x/.swap.json", "", false},
		{"/x/q.json~", "", false},
		{"/x/readme.md", "", false},
	}
	for _, tt := range tests {
		key, ok := queryKey(tt.path)
		assert.Equal(t, tt.ok, ok, tt.path)
		assert.Equal(t, tt.key, key, tt.path)
	}
}
