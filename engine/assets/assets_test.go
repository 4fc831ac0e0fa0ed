package assets

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/castle/engine/core"
)

func init() {
	core.SetLogOutput(io.Discard)
}

func TestDetermineAssetType(t *testing.T) {
	tests := []struct {
		path string
		want AssetType
	}{
		{"textures/grass.png", ASSET_TYPE_TEXTURE},
		{"textures/stone.TIFF", ASSET_TYPE_TEXTURE},
		{"shaders/default.vert.spv", ASSET_TYPE_SHADER},
		{"castle.yaml", ASSET_TYPE_LAYOUT},
		{"fonts/hud.fnt", ASSET_TYPE_FONT},
		{"engine.toml", ASSET_TYPE_CONFIG},
		{"notes.txt", ASSET_TYPE_NONE},
		{"Makefile", ASSET_TYPE_NONE},
	}
	for _, tt := range tests {
		if got := DetermineAssetType(tt.path); got != tt.want {
			t.Errorf("DetermineAssetType(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func nextChange(t *testing.T, w *Watcher) Change {
	t.Helper()
	select {
	case c := <-w.Events():
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
	return Change{}
}

func TestWatcherReportsDirectoryChanges(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(dir); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "castle.yaml")
	if err := os.WriteFile(path, []byte("items: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	c := nextChange(t, w)
	if c.Path != path || c.Type != ASSET_TYPE_LAYOUT {
		t.Errorf("change = %+v", c)
	}
}

func TestWatcherSingleFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "castle.yaml")
	if err := os.WriteFile(target, []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Watch(target); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("c"), 0644); err != nil {
		t.Fatal(err)
	}
	if c := nextChange(t, w); c.Path != target {
		t.Errorf("got change for %s, want only %s", c.Path, target)
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := NewWatcher()
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
	if err := w.Watch(t.TempDir()); err != ErrWatcherClosed {
		t.Errorf("Watch after close = %v", err)
	}
	if _, ok := <-w.Events(); ok {
		t.Error("events channel still open")
	}
}
