package telemetry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ErrCacheEmpty is returned by LoadLatest when nothing has been cached.
var ErrCacheEmpty = errors.New("telemetry: cache is empty")

const (
	cachePrefix = "posatt_"
	cacheSuffix = ".csv"
)

// Cache keeps the most recent downloaded telemetry tables on disk, one file
// per fetch named by the fetch time in nanoseconds.
type Cache struct {
	dir      string
	maxFiles int
}

// NewCache returns a Cache in dir holding at most maxFiles tables (5 when
// maxFiles <= 0).
func NewCache(dir string, maxFiles int) *Cache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &Cache{dir: dir, maxFiles: maxFiles}
}

// Write stores data as the table fetched at ts and drops the oldest tables
// beyond the limit. The file appears atomically.
func (c *Cache) Write(data []byte, ts time.Time) error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".partial-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache file: %w", err)
	}

	dst := filepath.Join(c.dir, cachePrefix+strconv.FormatInt(ts.UnixNano(), 10)+cacheSuffix)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publishing cache file: %w", err)
	}
	return c.prune()
}

// LoadLatest returns the newest cached table and its fetch time.
func (c *Cache) LoadLatest() ([]byte, time.Time, error) {
	files, err := c.listFiles()
	if err != nil {
		return nil, time.Time{}, err
	}
	if len(files) == 0 {
		return nil, time.Time{}, ErrCacheEmpty
	}

	latest := files[len(files)-1]
	data, err := os.ReadFile(latest.path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("reading cache file: %w", err)
	}
	return data, latest.fetched, nil
}

type cacheFile struct {
	path    string
	fetched time.Time
}

// listFiles returns cached tables oldest first. Files that do not follow
// the naming scheme are ignored.
func (c *Cache) listFiles() ([]cacheFile, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, cachePrefix+"*"+cacheSuffix))
	if err != nil {
		return nil, fmt.Errorf("listing cache dir: %w", err)
	}

	files := make([]cacheFile, 0, len(paths))
	for _, p := range paths {
		stamp := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(p), cachePrefix), cacheSuffix)
		ns, err := strconv.ParseInt(stamp, 10, 64)
		if err != nil {
			continue
		}
		files = append(files, cacheFile{path: p, fetched: time.Unix(0, ns)})
	}
	slices.SortFunc(files, func(a, b cacheFile) int { return a.fetched.Compare(b.fetched) })
	return files, nil
}

func (c *Cache) prune() error {
	files, err := c.listFiles()
	if err != nil {
		return err
	}
	for len(files) > c.maxFiles {
		if err := os.Remove(files[0].path); err != nil {
			return fmt.Errorf("pruning cache file: %w", err)
		}
		files = files[1:]
	}
	return nil
}
