package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNoSnapshot is returned by LoadLatest when the directory holds no snapshot.
var ErrNoSnapshot = errors.New("no catalog snapshot found")

const (
	snapshotPrefix = "catalog_"
	snapshotSuffix = ".msgpack.zst"
)

// snapshot is the on-disk form of a merged catalog.
type snapshot struct {
	LoadedAt time.Time `msgpack:"loaded_at"`
	Records  []Record  `msgpack:"records"`
}

// SnapshotCache persists merged catalogs as zstd-compressed msgpack files
// named catalog_<unix>.msgpack.zst and keeps the newest maxFiles of them.
type SnapshotCache struct {
	dir      string
	maxFiles int
}

// NewSnapshotCache creates a cache rooted at dir.
func NewSnapshotCache(dir string, maxFiles int) *SnapshotCache {
	if maxFiles <= 0 {
		maxFiles = 5
	}
	return &SnapshotCache{dir: dir, maxFiles: maxFiles}
}

// Write saves c and prunes snapshots beyond maxFiles.
func (sc *SnapshotCache) Write(c *Catalog) error {
	if err := os.MkdirAll(sc.dir, 0755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	ts := c.LoadedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(sc.dir, snapshotPrefix+strconv.FormatInt(ts.Unix(), 10)+snapshotSuffix)

	// Written under a temporary name and renamed into place.
	tmp, err := os.CreateTemp(sc.dir, "tmp-catalog-*")
	if err != nil {
		return fmt.Errorf("creating snapshot file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, c); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming snapshot file: %w", err)
	}

	return sc.prune()
}

// LoadLatest decodes the newest snapshot. The returned catalog is unpublished
// and carries no version.
func (sc *SnapshotCache) LoadLatest() (*Catalog, error) {
	files, err := sc.listFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoSnapshot
	}

	latest := files[len(files)-1]
	f, err := os.Open(filepath.Join(sc.dir, latest.name))
	if err != nil {
		return nil, fmt.Errorf("opening snapshot: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Encode writes c in snapshot format (msgpack, zstd-compressed).
func Encode(w io.Writer, c *Catalog) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	defer zw.Close()

	snap := snapshot{LoadedAt: c.LoadedAt, Records: c.Records()}
	if err := msgpack.NewEncoder(zw).Encode(&snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader) (*Catalog, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer zr.Close()

	var snap snapshot
	if err := msgpack.NewDecoder(zr).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	c := Merge(snap.Records)
	c.LoadedAt = snap.LoadedAt
	return c, nil
}

type snapshotFile struct {
	name string
	ts   int64
}

func (sc *SnapshotCache) listFiles() ([]snapshotFile, error) {
	entries, err := os.ReadDir(sc.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshot dir: %w", err)
	}

	var files []snapshotFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix), 10, 64)
		if err != nil {
			continue
		}
		files = append(files, snapshotFile{name: name, ts: ts})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ts < files[j].ts })
	return files, nil
}

func (sc *SnapshotCache) prune() error {
	files, err := sc.listFiles()
	if err != nil {
		return err
	}
	if len(files) <= sc.maxFiles {
		return nil
	}
	for _, f := range files[:len(files)-sc.maxFiles] {
		if err := os.Remove(filepath.Join(sc.dir, f.name)); err != nil {
			return fmt.Errorf("pruning snapshot %s: %w", f.name, err)
		}
	}
	return nil
}
