package imgcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// bump when Meta changes shape
const metaSchemaVersion uint16 = 1

const (
	metaSuffix     = ".meta"
	maxSegmentLen  = 64
	defaultSegment = "image"
)

// Meta is the sidecar written next to every downloaded image.
type Meta struct {
	Schema    uint16
	URL       string
	File      string
	Size      int64
	Format    string
	Width     int
	Height    int
	FetchedAt time.Time
}

// Store places downloaded images in a directory.
type Store struct {
	dir string
}

// DefaultDir returns $XDG_CACHE_HOME/memeful/images, or a temp directory when
// no home is known.
func DefaultDir() string {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "memeful", "images")
		}
		base = filepath.Join(home, ".cache")
	}
	return filepath.Join(base, "memeful", "images")
}

// OpenStore returns a Store rooted at dir, creating it if needed.
func OpenStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// TargetPath derives the local file for rawURL. The name keeps the last path
// segment for readability and is prefixed with a URL hash so that
// a/cat.png and b/cat.png never collide.
func (s *Store) TargetPath(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	prefix := hex.EncodeToString(sum[:])[:16]
	return filepath.Join(s.dir, prefix+"-"+lastSegment(rawURL))
}

func lastSegment(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	seg := path.Base(p)
	if seg == "." || seg == "/" || seg == "" {
		return defaultSegment
	}
	var b strings.Builder
	for _, r := range seg {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if len(out) > maxSegmentLen {
		out = out[len(out)-maxSegmentLen:]
	}
	if strings.Trim(out, "._") == "" {
		return defaultSegment
	}
	return out
}

// Write stores data for rawURL, replacing any previous file, and returns the
// local path. The sidecar is best effort: a missing sidecar only hides the
// file from List.
func (s *Store) Write(rawURL string, data []byte, info Info) (string, error) {
	target := s.TargetPath(rawURL)
	if err := writeAtomic(target, data); err != nil {
		return "", err
	}
	meta := Meta{
		Schema:    metaSchemaVersion,
		URL:       rawURL,
		File:      filepath.Base(target),
		Size:      int64(len(data)),
		Format:    info.Format,
		Width:     info.Width,
		Height:    info.Height,
		FetchedAt: time.Now().UTC(),
	}
	if payload, err := msgpack.Marshal(&meta); err == nil {
		_ = writeAtomic(target+metaSuffix, payload)
	}
	return target, nil
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// List returns the sidecar metadata of every stored image, sorted by URL.
// Unreadable or foreign sidecars are skipped.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []Meta
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metaSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			continue
		}
		var m Meta
		if err := msgpack.Unmarshal(data, &m); err != nil || m.Schema != metaSchemaVersion {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.dir, m.File)); err != nil {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })
	return out, nil
}

// Clean removes the store directory and everything in it.
func (s *Store) Clean() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", s.dir, err)
	}
	return nil
}
