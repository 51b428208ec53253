package index

import (
	"log/slog"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/coursesync/internal/checksum"
	"github.com/starford/coursesync/internal/parser"
	"github.com/starford/coursesync/internal/resource"
	"github.com/starford/coursesync/internal/storage"
)

// Sync walks every category folder and brings the catalog up to date:
//   - new/changed resource files are parsed and upserted
//   - files removed from disk are deleted from the catalog
func Sync(db *DB, store storage.Provider, reg *resource.Registry, logger *slog.Logger) error {
	var metas []storage.Entry
	for _, v := range reg.Variants() {
		d := v.Descriptor()
		entries, err := store.List(d.Folder, d.Extension)
		if err != nil {
			return err
		}
		metas = append(metas, entries...)
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := indexFile(db, reg, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.Delete(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// Classify returns the variant owning rel (a path relative to the course
// root), or false for files that are not resources: backups, templates,
// public exports and files with a foreign extension.
func Classify(reg *resource.Registry, rel string) (resource.Variant, bool) {
	slashed := filepath.ToSlash(rel)
	folder, _, ok := strings.Cut(slashed, "/")
	if !ok {
		return nil, false
	}
	v, ok := reg.ByFolder(folder)
	if !ok {
		return nil, false
	}
	if !strings.HasSuffix(slashed, v.Descriptor().Extension) || strings.HasSuffix(slashed, storage.PublicSuffix) {
		return nil, false
	}
	return v, true
}

// indexFile extracts the title and searchable body of data and upserts it.
// Files that are not resources are ignored.
func indexFile(db *DB, reg *resource.Registry, rel string, data []byte) error {
	v, ok := Classify(reg, rel)
	if !ok {
		return nil
	}
	d := v.Descriptor()
	title, body := describe(d, rel, data)
	return db.Upsert(Row{
		Path:     rel,
		Category: string(d.Category),
		Title:    title,
		Checksum: checksum.Sum(data),
	}, body)
}

// describe picks a display title: the front-matter or heading of a Markdown
// file, the name/title key of a YAML resource, or the entry names of an
// outcome bank. The file name is the last resort.
func describe(d resource.Descriptor, rel string, data []byte) (title, body string) {
	fallback := strings.TrimSuffix(path.Base(filepath.ToSlash(rel)), d.Extension)
	if d.Extension == ".md" {
		res, err := parser.Parse(data)
		if err != nil || res.Title == "" {
			return fallback, string(data)
		}
		return res.Title, res.Body
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil || len(doc) == 0 {
		return fallback, string(data)
	}
	if d.Category == resource.CategoryOutcome {
		names := make([]string, 0, len(doc))
		for name := range doc {
			names = append(names, name)
		}
		sort.Strings(names)
		return strings.Join(names, ", "), string(data)
	}
	for _, key := range []string{"name", "title"} {
		if s, ok := doc[key].(string); ok && s != "" {
			return s, string(data)
		}
	}
	return fallback, string(data)
}
