// Package cache implements the plan execution engine's deterministic
// content-addressed cache (spec.md §4.D): atomic tmp+rename writes keyed by
// SHA256(canonical_json({tool,version,inputs,manifest_hash})), with an
// optional size-bounded eviction pass run after every write and a bounded
// in-memory read-through layer fronting the file store.
//
// Grounded on the teacher's atomic-write discipline (every persistence
// layer in the teacher writes a value then makes it visible in one step)
// and on hashicorp/golang-lru/v2 for the in-memory read-through layer —
// promoted here from an indirect tool dependency of the teacher's go.mod
// into a direct runtime dependency.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"goa.design/goa-ai/canon"
)

// memCacheSize bounds the in-memory read-through layer. It is independent
// of the on-disk byte cap: a hot key stays decoded in memory even while the
// byte-capped file store evicts colder entries.
const memCacheSize = 256

// Key derives the deterministic cache key for a node invocation:
// SHA256(canonical_json({tool, version, inputs, manifest_hash})).
func Key(tool, version string, inputs any, manifestHash string) (string, error) {
	return canon.HashJSON(map[string]any{
		"tool":          tool,
		"version":       version,
		"inputs":        inputs,
		"manifest_hash": manifestHash,
	})
}

// Cache is a file-backed content-addressed store rooted at a directory,
// fronted by a bounded in-memory LRU of decoded values.
type Cache struct {
	root     string
	maxBytes int64
	mem      *lru.Cache[string, any]
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxBytes bounds the cache's total on-disk size. After every write, if
// the cumulative size of all entries exceeds maxBytes, the
// least-recently-modified entries are deleted until it fits. Zero (the
// default) disables on-disk eviction.
func WithMaxBytes(maxBytes int64) Option {
	return func(c *Cache) { c.maxBytes = maxBytes }
}

// New creates a Cache rooted at root, creating the directory if needed.
func New(root string, opts ...Option) (*Cache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create root %q: %w", root, err)
	}
	mem, err := lru.New[string, any](memCacheSize)
	if err != nil {
		return nil, fmt.Errorf("cache: init memory layer: %w", err)
	}
	c := &Cache{root: root, mem: mem}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.root, key+".json")
}

// Read returns the stored value for key, or ok == false if absent.
func (c *Cache) Read(key string) (value any, ok bool, err error) {
	if v, hit := c.mem.Get(key); hit {
		return v, true, nil
	}
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: read %q: %w", key, err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	c.mem.Add(key, v)
	return v, true, nil
}

// Write stores value under key via a temp-file-then-rename so concurrent
// readers never observe a torn file. If the cache has a size cap, eviction
// runs after the write.
func (c *Cache) Write(key string, value any) error {
	raw, err := canon.JSON(value)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	target := c.path(key)
	tmp, err := os.CreateTemp(c.root, "."+key+"-*.tmp")
	if err != nil {
		return fmt.Errorf("cache: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("cache: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache: rename into place: %w", err)
	}
	c.mem.Add(key, value)
	if c.maxBytes > 0 {
		return c.evictToFit()
	}
	return nil
}

type entryInfo struct {
	key   string
	size  int64
	mtime int64
}

func (c *Cache) listEntries() ([]entryInfo, error) {
	dirEntries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, fmt.Errorf("cache: list root: %w", err)
	}
	out := make([]entryInfo, 0, len(dirEntries))
	for _, e := range dirEntries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, entryInfo{
			key:   e.Name()[:len(e.Name())-len(".json")],
			size:  info.Size(),
			mtime: info.ModTime().UnixNano(),
		})
	}
	return out, nil
}

// evictToFit deletes least-recently-modified entries until total on-disk
// bytes fits within maxBytes. Only safe when a single process owns the
// cache root, per spec.md §5.
func (c *Cache) evictToFit() error {
	entries, err := c.listEntries()
	if err != nil {
		return err
	}
	var total int64
	for _, e := range entries {
		total += e.size
	}
	if total <= c.maxBytes {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime < entries[j].mtime })
	for _, e := range entries {
		if total <= c.maxBytes {
			break
		}
		if err := os.Remove(c.path(e.key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("cache: evict %q: %w", e.key, err)
		}
		c.mem.Remove(e.key)
		total -= e.size
	}
	return nil
}

// BypassedCacheField is the literal metrics value for nodes whose manifest
// is tagged side_effecting, per spec.md §4.D.
const BypassedCacheField = "bypassed:side_effect"
