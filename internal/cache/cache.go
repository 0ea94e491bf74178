// Package cache stores per-sample evaluation results keyed by the exact
// inputs that produced them, so re-runs over unchanged data skip the
// decode/score pipeline. Entries are zstd-compressed JSON files.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/internal/models"
)

// keyVersion is folded into every cache key. Bump it when the scoring
// pipeline changes in a way that makes old entries wrong.
const keyVersion = "1"

// Cache provides caching for per-sample evaluation results
type Cache struct {
	dir string
	mu  sync.Mutex
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// New creates a new cache instance with the specified directory
func New(dir string) *Cache {
	// Default zstd options never fail.
	enc, _ := zstd.NewWriter(nil) //nolint:errcheck
	dec, _ := zstd.NewReader(nil) //nolint:errcheck
	return &Cache{dir: dir, enc: enc, dec: dec}
}

// Key generates a unique cache key for one sample evaluation.
// The key is based on:
// - dataset identity (name, encoding kind and params, tolerance)
// - model name
// - sample id
// - prediction and truth file contents
func Key(m *dataset.Manifest, modelName string, pair dataset.Pair) (string, error) {
	h := sha256.New()

	if err := writeString(h, keyVersion); err != nil {
		return "", err
	}
	if err := writeString(h, m.Name); err != nil {
		return "", err
	}
	if err := writeString(h, modelName); err != nil {
		return "", err
	}

	// Include the full encoding (kind and params) and tolerance: changing
	// either changes every sample's metrics.
	if err := writeString(h, m.Encoding.Kind); err != nil {
		return "", err
	}
	paramsJSON, err := json.Marshal(m.Encoding.Params)
	if err != nil {
		return "", fmt.Errorf("marshaling encoding params: %w", err)
	}
	if _, err := h.Write(paramsJSON); err != nil {
		return "", err
	}
	if err := writeFloat(h, m.Tolerance); err != nil {
		return "", err
	}

	if err := writeString(h, pair.ID); err != nil {
		return "", err
	}

	// Prediction and truth are positional, not a set: swapping them must
	// change the key.
	if err := hashArtifacts(h, []string{pair.PredictionPath, pair.TruthPath}); err != nil {
		return "", fmt.Errorf("hashing mask files: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get retrieves a cached sample result if it exists
func (c *Cache) Get(key string) (*models.SampleResult, bool) {
	if c.dir == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.cachePath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		// Cache miss
		return nil, false
	}

	plain, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		// Corrupt cache entry, treat as miss
		return nil, false
	}

	var result models.SampleResult
	if err := json.Unmarshal(plain, &result); err != nil {
		// Invalid cache entry, treat as miss
		return nil, false
	}

	return &result, true
}

// Put stores a sample result in the cache
func (c *Cache) Put(key string, result *models.SampleResult) error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Ensure cache directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshaling sample result: %w", err)
	}

	path := c.cachePath(key)
	compressed := c.enc.EncodeAll(data, make([]byte, 0, len(data)))
	if err := os.WriteFile(path, compressed, 0644); err != nil {
		return fmt.Errorf("writing cache file: %w", err)
	}

	return nil
}

// Clear removes all cached results
func (c *Cache) Clear() error {
	if c.dir == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Check if directory exists
	if _, err := os.Stat(c.dir); os.IsNotExist(err) {
		return nil
	}

	// Safety check: verify this is a maskeval cache directory before
	// removing. Check for presence of at least one .zst cache file or an
	// empty directory.
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("reading cache directory: %w", err)
	}

	// If directory is not empty, verify it contains only cache files
	if len(entries) > 0 {
		hasValidCache := false
		for _, entry := range entries {
			if entry.IsDir() {
				return fmt.Errorf("cache directory contains subdirectories - refusing to delete for safety")
			}
			if filepath.Ext(entry.Name()) == ".zst" {
				hasValidCache = true
			} else {
				return fmt.Errorf("cache directory contains non-cache files - refusing to delete for safety")
			}
		}
		if !hasValidCache {
			return fmt.Errorf("no valid cache files found in directory - refusing to delete for safety")
		}
	}

	return os.RemoveAll(c.dir)
}

// Info reports how many entries the cache holds and their total size in
// bytes. A missing directory counts as an empty cache.
func (c *Cache) Info() (entries int, totalBytes int64, err error) {
	if c.dir == "" {
		return 0, 0, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("reading cache directory: %w", err)
	}

	for _, e := range dirEntries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".zst" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		entries++
		totalBytes += fi.Size()
	}
	return entries, totalBytes, nil
}

// cachePath returns the file path for a cache key
func (c *Cache) cachePath(key string) string {
	return filepath.Join(c.dir, key+".json.zst")
}

// Helper functions

func writeString(w io.Writer, s string) error {
	// Write string with null byte delimiter to prevent hash collisions
	_, err := w.Write([]byte(s + "\x00"))
	return err
}

func writeFloat(w io.Writer, f float64) error {
	// Write float with null byte delimiter to prevent hash collisions
	_, err := fmt.Fprintf(w, "%g\x00", f)
	return err
}

func hashArtifacts(h io.Writer, paths []string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := hashFile(h, p); err != nil {
			// If the file doesn't exist, include the path in the hash
			// anyway. This ensures cache invalidation when it appears.
			if os.IsNotExist(err) {
				if err := writeString(h, p); err != nil {
					return err
				}
				continue
			}
			return fmt.Errorf("hashing %s: %w", p, err)
		}
	}
	return nil
}

func hashFile(h io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(h, f); err != nil {
		return err
	}

	return nil
}
