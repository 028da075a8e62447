package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestScanDirectory(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "b.PNG"))
	touch(t, filepath.Join(root, "a.jpg"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "sub", "c.webp"))
	touch(t, filepath.Join(root, ".cache", "d.png"))
	touch(t, filepath.Join(root, ".e.png"))

	tests := []struct {
		name       string
		exts       []string
		skipHidden bool
		want       []string
	}{
		{"images, hidden skipped", nil, true, []string{"a.jpg", "b.PNG", "sub/c.webp"}},
		{"hidden included", nil, false, []string{".cache/d.png", ".e.png", "a.jpg", "b.PNG", "sub/c.webp"}},
		{"explicit extensions", []string{".PNG"}, true, []string{"b.PNG"}},
		{"non-image extensions ignored", []string{"txt", "jpg"}, true, []string{"a.jpg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, stats, err := ScanDirectory(root, tt.exts, tt.skipHidden)
			require.NoError(t, err)

			var got []string
			for _, r := range results {
				rel, _ := filepath.Rel(root, r.Path)
				got = append(got, filepath.ToSlash(rel))
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, uint32(len(tt.want)), stats.Matched)
		})
	}
}

func TestScanDirectory_Errors(t *testing.T) {
	_, _, err := ScanDirectory(" ", nil, true)
	assert.Error(t, err)

	_, _, err = ScanDirectory(filepath.Join(t.TempDir(), "missing"), nil, true)
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden("/x/.git"))
	assert.False(t, IsHidden("/x/a.png"))
	assert.False(t, IsHidden("."))
}

func TestStartWatcher(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "existing.png"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, SkipHidden: true}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return filepath.Base(p)
		case <-time.After(5 * time.Second):
			t.Fatal("no event")
			return ""
		}
	}
	assert.Equal(t, "existing.png", next())

	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "new.jpg"))
	assert.Equal(t, "new.jpg", next())

	cancel()
	for range events {
	}
}
