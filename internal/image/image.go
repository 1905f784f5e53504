package image

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manash/stability-skill/internal/security"
)

const (
	filePrefix = "figure_"
	fileExt    = ".png"

	DefaultMaxAge   = 24 * time.Hour
	DefaultMaxFiles = 64
)

var ErrNoImageData = errors.New("no image data available")

type Retention struct {
	MaxAge   time.Duration
	MaxFiles int
}

// Cache writes generated images into a per-user directory and enforces retention.
type Cache struct {
	dir       string
	retention Retention
	now       func() time.Time
}

func NewCache(dir string, retention Retention) *Cache {
	if retention.MaxAge <= 0 {
		retention.MaxAge = DefaultMaxAge
	}
	if retention.MaxFiles <= 0 {
		retention.MaxFiles = DefaultMaxFiles
	}
	return &Cache{
		dir:       dir,
		retention: retention,
		now:       time.Now,
	}
}

func DefaultDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		homeDir, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("failed to locate cache directory: %w", err)
		}
		base = filepath.Join(homeDir, ".cache")
	}
	return filepath.Join(base, "stability-skill"), nil
}

func (c *Cache) Dir() string {
	return c.dir
}

// Write stores data under a fresh collision-resistant name. The file only
// appears under its final name once fully written.
func (c *Cache) Write(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrNoImageData
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	name := GenerateFilename()
	if err := security.ValidateCacheName(name); err != nil {
		return "", err
	}
	path := filepath.Join(c.dir, name)

	tmp, err := os.CreateTemp(c.dir, ".tmp-"+filePrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return path, nil
}

// Remove deletes a cached image. Paths outside the cache directory are refused.
func (c *Cache) Remove(path string) error {
	_, err := c.remove(path)
	return err
}

// remove reports whether this call deleted the file. A file already gone
// is not an error.
func (c *Cache) remove(path string) (bool, error) {
	if err := security.Within(c.dir, path); err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// List returns cached images, oldest first.
func (c *Cache) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, de := range dirEntries {
		if de.IsDir() || !IsCacheFile(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Path:    filepath.Join(c.dir, de.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.Before(entries[j].ModTime)
	})
	return entries, nil
}

type PruneResult struct {
	Removed []Entry
	Kept    int
	Bytes   int64
}

// Prune removes images older than MaxAge and then the oldest images beyond
// MaxFiles. Paths for which inUse returns true are never removed.
func (c *Cache) Prune(inUse func(path string) bool) (*PruneResult, error) {
	entries, err := c.List()
	if err != nil {
		return nil, err
	}

	result := &PruneResult{}
	cutoff := c.now().Add(-c.retention.MaxAge)

	var survivors []Entry
	for _, e := range entries {
		if e.ModTime.Before(cutoff) && (inUse == nil || !inUse(e.Path)) {
			if err := c.pruneOne(result, e); err != nil {
				return result, err
			}
			continue
		}
		survivors = append(survivors, e)
	}

	excess := len(survivors) - c.retention.MaxFiles
	var kept []Entry
	for _, e := range survivors {
		if excess > 0 && (inUse == nil || !inUse(e.Path)) {
			if err := c.pruneOne(result, e); err != nil {
				return result, err
			}
			excess--
			continue
		}
		kept = append(kept, e)
	}

	result.Kept = len(kept)
	return result, nil
}

// pruneOne removes e and counts it only if no concurrent prune got there first.
func (c *Cache) pruneOne(result *PruneResult, e Entry) error {
	removed, err := c.remove(e.Path)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", e.Path, err)
	}
	if removed {
		result.Removed = append(result.Removed, e)
		result.Bytes += e.Size
	}
	return nil
}

func GenerateFilename() string {
	return filePrefix + uuid.NewString() + fileExt
}

func IsCacheFile(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileExt)
}
