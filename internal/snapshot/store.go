package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	// NameLayout is the time layout of snapshot file names, without extension.
	NameLayout = "20060102_150405"

	// Ext is the extension of snapshot files. Other files in the directory are ignored.
	Ext = ".txt"
)

var (
	// ErrNotFound is returned when a named snapshot does not exist.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrInvalidName is returned for names that are not plain file names.
	ErrInvalidName = errors.New("snapshot: invalid name")
)

// Info describes one stored snapshot.
type Info struct {
	Name       string    `json:"filename"`
	Path       string    `json:"filepath"`
	CapturedAt time.Time `json:"timestamp"`
	Size       int64     `json:"size"`
	ModTime    time.Time `json:"-"`
}

// Store is a directory of timestamped status dumps.
type Store struct {
	fs       afero.Fs
	dir      string
	clock    Clock
	location *time.Location
}

// NewStore opens the snapshot directory, creating it if needed.
func NewStore(fs afero.Fs, dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot directory is required")
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &Store{
		fs:       fs,
		dir:      dir,
		clock:    RealClock{},
		location: time.Local,
	}, nil
}

// SetClock sets the clock used for window selection (for testing)
func (s *Store) SetClock(clock Clock) {
	s.clock = clock
}

// SetLocation sets the zone file names are interpreted in. Defaults to local time.
func (s *Store) SetLocation(loc *time.Location) {
	s.location = loc
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// NameFor returns the file name of a snapshot captured at t.
func NameFor(t time.Time) string {
	return t.Format(NameLayout) + Ext
}

// Write stores content as the snapshot captured at t. The file is written
// to a temporary name first and renamed into place, so readers never see a
// partial dump.
func (s *Store) Write(content []byte, at time.Time) (Info, error) {
	name := NameFor(at.In(s.location))
	final := filepath.Join(s.dir, name)

	tmp, err := afero.TempFile(s.fs, s.dir, ".licstats-*.tmp")
	if err != nil {
		return Info{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := s.fs.Rename(tmpName, final); err != nil {
		_ = s.fs.Remove(tmpName)
		return Info{}, fmt.Errorf("failed to rename snapshot: %w", err)
	}

	return s.Stat(name)
}

// Read returns the full content of the named snapshot.
func (s *Store) Read(name string) ([]byte, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", name, err)
	}
	return data, nil
}

// Stat returns the metadata of the named snapshot.
func (s *Store) Stat(name string) (Info, error) {
	if err := validName(name); err != nil {
		return Info{}, err
	}
	fi, err := s.fs.Stat(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Info{}, fmt.Errorf("failed to stat snapshot %s: %w", name, err)
	}
	if fi.IsDir() {
		return Info{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s.info(fi), nil
}

// List returns the snapshots in the window, most recent first.
// Latest yields at most one entry.
func (s *Store) List(w Window) ([]Info, error) {
	all, err := s.all()
	if err != nil {
		return nil, err
	}

	if w.Days() == 0 {
		if len(all) > 1 {
			all = all[:1]
		}
		return all, nil
	}

	cutoff := w.Cutoff(s.clock.Now())
	out := make([]Info, 0, len(all))
	for _, info := range all {
		if !info.CapturedAt.Before(cutoff) {
			out = append(out, info)
		}
	}
	return out, nil
}

// Prune deletes snapshots captured before cutoff and returns how many were removed.
func (s *Store) Prune(cutoff time.Time) (int, error) {
	all, err := s.all()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range all {
		if !info.CapturedAt.Before(cutoff) {
			continue
		}
		if err := s.fs.Remove(info.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove snapshot %s: %w", info.Name, err)
		}
		removed++
	}
	return removed, nil
}

// all returns every snapshot in the directory, most recent first.
func (s *Store) all() ([]Info, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot directory: %w", err)
	}

	out := make([]Info, 0, len(entries))
	for _, fi := range entries {
		if fi.IsDir() || !strings.HasSuffix(fi.Name(), Ext) {
			continue
		}
		out = append(out, s.info(fi))
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CapturedAt.Equal(out[j].CapturedAt) {
			return out[i].CapturedAt.After(out[j].CapturedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func (s *Store) info(fi os.FileInfo) Info {
	return Info{
		Name:       fi.Name(),
		Path:       filepath.Join(s.dir, fi.Name()),
		CapturedAt: s.capturedAt(fi),
		Size:       fi.Size(),
		ModTime:    fi.ModTime(),
	}
}

// capturedAt prefers the time encoded in the file name and falls back to
// the modification time for files named some other way.
func (s *Store) capturedAt(fi os.FileInfo) time.Time {
	stem := strings.TrimSuffix(fi.Name(), Ext)
	if t, err := time.ParseInLocation(NameLayout, stem, s.location); err == nil {
		return t
	}
	return fi.ModTime()
}

func validName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
