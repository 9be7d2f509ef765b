package horizons

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const cacheExt = ".txt"

// Cache stores raw Horizons results on disk so repeated runs for the same
// epoch skip the network.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache creates a Cache that stores files in dir and keeps at most maxFiles.
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 64
	}
	return &Cache{
		dir:      dir,
		maxFiles: maxFiles,
	}
}

// ElementsKey is the cache key of an element query.
func ElementsKey(id string, epoch time.Time) string {
	return fmt.Sprintf("elements_%s_%s", id, epoch.UTC().Format("20060102"))
}

// Write saves a result under key and prunes old files beyond maxFiles.
func (c *Cache) Write(key, result string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := c.ensureDir(); err != nil {
		return err
	}

	path := filepath.Join(c.dir, key+cacheExt)
	if err := os.WriteFile(path, []byte(result), 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return c.prune()
}

// Load returns the cached result for key. ok is false on a miss.
func (c *Cache) Load(key string) (result string, ok bool, err error) {
	if err := validKey(key); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(filepath.Join(c.dir, key+cacheExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading cache file: %w", err)
	}
	return string(data), true, nil
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("invalid cache key %q", key)
	}
	return nil
}

type cacheFile struct {
	name    string
	modTime time.Time
}

func (c *Cache) listFiles() ([]cacheFile, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	var files []cacheFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), cacheExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, cacheFile{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}

	if len(files) <= c.maxFiles {
		return nil
	}

	// Remove oldest files.
	for _, f := range files[:len(files)-c.maxFiles] {
		if err := os.Remove(filepath.Join(c.dir, f.name)); err != nil {
			return fmt.Errorf("pruning cache file %s: %w", f.name, err)
		}
	}

	return nil
}

func (c *Cache) ensureDir() error {
	return os.MkdirAll(c.dir, 0755)
}
