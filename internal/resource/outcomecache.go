package resource

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"github.com/starford/coursesync/internal/convert"
)

// OutcomeCache holds every outcome found in a course's outcome banks, keyed
// by course name. A course is scanned on its first lookup and stays cached
// until Invalidate or Reload.
type OutcomeCache struct {
	cv *convert.Converter

	mu      sync.Mutex
	courses map[string]map[string]*Outcome
	scans   int
}

// NewOutcomeCache creates an empty cache.
func NewOutcomeCache(cv *convert.Converter) *OutcomeCache {
	return &OutcomeCache{cv: cv, courses: make(map[string]map[string]*Outcome)}
}

// Lookup returns the outcome called name in course, scanning root (the
// course directory) on first use.
func (c *OutcomeCache) Lookup(course string, root fs.FS, name string) (*Outcome, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bank, ok := c.courses[course]
	if !ok {
		var err error
		if bank, err = c.scan(root); err != nil {
			return nil, false, err
		}
		c.courses[course] = bank
	}
	o, ok := bank[name]
	return o, ok, nil
}

// Reload rescans the banks of course.
func (c *OutcomeCache) Reload(course string, root fs.FS) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	bank, err := c.scan(root)
	if err != nil {
		return err
	}
	c.courses[course] = bank
	return nil
}

// Invalidate drops course from the cache; the next lookup rescans it.
func (c *OutcomeCache) Invalidate(course string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.courses, course)
}

// scan reads every bank under the outcomes folder. Later banks win on
// duplicate names.
func (c *OutcomeCache) scan(root fs.FS) (map[string]*Outcome, error) {
	c.scans++
	d := Outcomes.Descriptor()
	out := make(map[string]*Outcome)

	if _, err := fs.Stat(root, d.Folder); err != nil {
		return out, nil
	}
	err := fs.WalkDir(root, d.Folder, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !strings.HasSuffix(p, d.Extension) || strings.HasSuffix(p, ".public"+d.Extension) {
			return nil
		}
		content, err := fs.ReadFile(root, p)
		if err != nil {
			return err
		}
		bank, err := parseBank(content)
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		for name, value := range bank {
			o, err := outcomeFromEntry(c.cv, name, value)
			if err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			o.BankSource = path.Dir(p)
			out[name] = o
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resource: load outcome banks: %w", err)
	}
	return out, nil
}
