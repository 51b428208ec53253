// Package backup keeps compressed, timestamped copies of course files
// under <root>/_backups before they are overwritten.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/starford/coursesync/internal/storage"
)

// Dir is the backup folder under the course root.
const Dir = "_backups"

const stampLayout = "2006-01-02T15-04-05.000000"

// Files is the storage the backup store writes through.
type Files interface {
	List(dir, ext string) ([]storage.Entry, error)
	Read(path string) ([]byte, error)
	Exists(path string) (bool, error)
	Write(path string, content []byte) error
}

// Store writes backups of one course directory.
type Store struct {
	files  Files
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for backup names.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a Store writing through files.
func NewStore(files Files, opts ...Option) *Store {
	s := &Store{files: files, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Location returns the backup directory of a resource file, such as
// _backups/assignments/Homework 1.yaml.
func Location(folder, filename string) string {
	return path.Join(Dir, folder, filename)
}

// JSON stores a snapshot of remote data. It always writes.
func (s *Store) JSON(folder, filename string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("backup: encode json: %w", err)
	}
	return s.write(Location(folder, filename), ".json", raw)
}

// Resource stores current (the file's content before an overwrite) unless
// it equals next or is already the latest backup. It reports whether a
// backup was written.
func (s *Store) Resource(folder, filename, ext string, current, next []byte) (bool, error) {
	if bytes.Equal(current, next) {
		return false, nil
	}
	dir := Location(folder, filename)
	latest, ok, err := s.Latest(dir, ext)
	if err != nil {
		return false, err
	}
	if ok && bytes.Equal(latest, current) {
		return false, nil
	}
	if _, err := s.write(dir, ext, current); err != nil {
		return false, err
	}
	return true, nil
}

// Versions lists the backups in dir that end in ext+".gz", oldest first.
func (s *Store) Versions(dir, ext string) ([]string, error) {
	entries, err := s.files.List(dir, ext+".gz")
	if err != nil {
		return nil, fmt.Errorf("backup: list %s: %w", dir, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Path)
	}
	sort.Slice(out, func(i, j int) bool {
		si, ni := versionKey(out[i], ext)
		sj, nj := versionKey(out[j], ext)
		if si != sj {
			return si < sj
		}
		return ni < nj
	})
	return out, nil
}

// versionKey splits a backup name into its stamp and collision counter.
func versionKey(p, ext string) (string, int) {
	name := strings.TrimSuffix(path.Base(p), ext+".gz")
	stamp, counter, ok := strings.Cut(name, "_")
	if !ok {
		return stamp, 0
	}
	n, err := strconv.Atoi(counter)
	if err != nil {
		return name, 0
	}
	return stamp, n
}

// Latest returns the decompressed content of the newest backup in dir.
func (s *Store) Latest(dir, ext string) ([]byte, bool, error) {
	versions, err := s.Versions(dir, ext)
	if err != nil || len(versions) == 0 {
		return nil, false, err
	}
	content, err := s.Open(versions[len(versions)-1])
	if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

// Open decompresses one backup file.
func (s *Store) Open(p string) ([]byte, error) {
	raw, err := s.files.Read(p)
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("backup: open %s: %w", p, err)
	}
	defer zr.Close()
	content, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("backup: read %s: %w", p, err)
	}
	return content, nil
}

func (s *Store) write(dir, ext string, content []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(content); err != nil {
		return "", fmt.Errorf("backup: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("backup: compress: %w", err)
	}

	target, err := s.freeName(dir, ext)
	if err != nil {
		return "", err
	}
	if err := s.files.Write(target, buf.Bytes()); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}
	s.logger.Info("backup: written", slog.String("path", target), slog.Int("bytes", len(content)))
	return target, nil
}

// freeName picks a timestamped name in dir that does not exist yet, so a
// backup is never overwritten.
func (s *Store) freeName(dir, ext string) (string, error) {
	stamp := s.now().UTC().Format(stampLayout)
	for n := 0; ; n++ {
		name := stamp
		if n > 0 {
			name += "_" + strconv.Itoa(n)
		}
		p := path.Join(dir, name+ext+".gz")
		exists, err := s.files.Exists(p)
		if err != nil {
			return "", fmt.Errorf("backup: %w", err)
		}
		if !exists {
			return p, nil
		}
	}
}
