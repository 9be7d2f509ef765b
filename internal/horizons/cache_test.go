package horizons

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "horizons"), 4)
	key := ElementsKey("199", requested)
	if key != "elements_199_20240101" {
		t.Fatalf("key = %q", key)
	}

	if _, ok, err := c.Load(key); ok || err != nil {
		t.Fatalf("Load on empty cache: ok=%v err=%v", ok, err)
	}
	if err := c.Write(key, mercuryElements); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, ok, err := c.Load(key)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got != mercuryElements {
		t.Error("cached result differs from written result")
	}
}

func TestCachePrune(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir, 2)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"199", "299", "399"} {
		key := ElementsKey(id, requested)
		if err := c.Write(key, "x"); err != nil {
			t.Fatalf("Write %s: %v", key, err)
		}
		// Spread mod times so pruning order is deterministic.
		mt := base.Add(time.Duration(i) * time.Minute)
		os.Chtimes(filepath.Join(dir, key+cacheExt), mt, mt)
	}
	// The third write pruned before its mod time was adjusted; write once
	// more to prune with settled times.
	if err := c.Write(ElementsKey("499", requested), "x"); err != nil {
		t.Fatal(err)
	}

	files, err := c.listFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files after prune, want 2", len(files))
	}
	if _, ok, _ := c.Load(ElementsKey("499", requested)); !ok {
		t.Error("newest entry was pruned")
	}
	if _, ok, _ := c.Load(ElementsKey("199", requested)); ok {
		t.Error("oldest entry survived pruning")
	}
}

func TestCacheRejectsInvalidKeys(t *testing.T) {
	c := NewCache(t.TempDir(), 0)
	for _, key := range []string{"", "../escape", `a\b`, "a/b"} {
		if err := c.Write(key, "x"); err == nil {
			t.Errorf("Write(%q) succeeded, want error", key)
		}
		if _, _, err := c.Load(key); err == nil {
			t.Errorf("Load(%q) succeeded, want error", key)
		}
	}
}
