// Package view implements a sectioned live view over a record store. The
// controller groups records into sections, keeps the grouping current by
// observing store commits, and reports every structural change to its
// delegate inside a will/did-change bracket.
package view

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"liveview/pkg/results"
)

// Compile-time contract assertions.
var (
	_ results.Controller     = (*Controller)(nil)
	_ results.CommitObserver = (*Controller)(nil)
)

// Controller materializes the store contents as ordered sections and streams
// change callbacks to a delegate as commits arrive.
type Controller struct {
	store results.RecordStore

	mu       sync.RWMutex
	delegate results.Delegate
	records  map[string]results.Record
	sections []Section
	paths    map[string]results.IndexPath

	watchMu     sync.Mutex
	cancelWatch func()
}

// New constructs a controller over the given store. Call PerformFetch to load
// the initial contents and begin observing commits.
func New(store results.RecordStore) *Controller {
	return &Controller{
		store:   store,
		records: make(map[string]results.Record),
		paths:   make(map[string]results.IndexPath),
	}
}

// SetDelegate installs the change recipient. Passing nil detaches the current
// delegate; the controller keeps observing the store either way.
func (c *Controller) SetDelegate(delegate results.Delegate) {
	c.mu.Lock()
	c.delegate = delegate
	c.mu.Unlock()
}

// PerformFetch loads the current store contents, rebuilds the section layout,
// and subscribes to future commits. It delivers no delegate callbacks of its
// own. Safe to call again to force a reload.
func (c *Controller) PerformFetch(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	records := c.store.ListRecords()
	c.mu.Lock()
	c.records = make(map[string]results.Record, len(records))
	for _, record := range records {
		c.records[record.ID] = record
	}
	sections, paths := buildLayout(c.records)
	delegate := c.delegate
	c.mu.Unlock()

	c.resolveTitles(delegate, sections)
	c.publish(sections, paths)

	c.watchMu.Lock()
	if c.cancelWatch == nil {
		c.cancelWatch = c.store.Watch(c)
	}
	c.watchMu.Unlock()
	return nil
}

// Close stops observing the store. Idempotent.
func (c *Controller) Close() {
	c.watchMu.Lock()
	if c.cancelWatch != nil {
		c.cancelWatch()
		c.cancelWatch = nil
	}
	c.watchMu.Unlock()
}

// Sections returns the current section layout.
func (c *Controller) Sections() []results.SectionInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]results.SectionInfo, len(c.sections))
	for i, section := range c.sections {
		out[i] = section
	}
	return out
}

// Record returns the record at the given index path.
func (c *Controller) Record(path results.IndexPath) (results.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if path.Section < 0 || path.Section >= len(c.sections) {
		return results.Record{}, false
	}
	section := c.sections[path.Section]
	if path.Row < 0 || path.Row >= len(section.records) {
		return results.Record{}, false
	}
	return section.records[path.Row].Clone(), true
}

// IndexPathForRecord locates a record by ID within the current layout.
func (c *Controller) IndexPathForRecord(id string) (results.IndexPath, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	path, ok := c.paths[id]
	if !ok {
		return results.NoIndexPath, false
	}
	return path, true
}

// SectionIndexTitles returns one index title per section, in section order.
func (c *Controller) SectionIndexTitles() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	titles := make([]string, len(c.sections))
	for i, section := range c.sections {
		titles[i] = section.indexTitle
	}
	return titles
}

// StoreDidCommit folds a committed change set into the layout and reports the
// resulting structural changes to the delegate inside a single bracket.
func (c *Controller) StoreDidCommit(commit results.Commit) {
	c.mu.Lock()
	oldPaths := c.paths
	oldSections := c.sections
	for _, change := range commit.Changes {
		switch change.Action {
		case results.ActionCreate, results.ActionUpdate:
			if change.After != nil {
				c.records[change.After.ID] = change.After.Clone()
			}
		case results.ActionDelete:
			if change.Before != nil {
				delete(c.records, change.Before.ID)
			}
		}
	}
	newSections, newPaths := buildLayout(c.records)
	delegate := c.delegate
	c.mu.Unlock()

	c.resolveTitles(delegate, newSections)
	c.publish(newSections, newPaths)

	if delegate == nil {
		return
	}
	delegate.ControllerWillChangeContent(c)
	emitSectionChanges(c, delegate, oldSections, newSections)
	for _, change := range commit.Changes {
		c.emitRecordChange(delegate, change, oldPaths, newPaths)
	}
	delegate.ControllerDidChangeContent(c)
}

func emitSectionChanges(c *Controller, delegate results.Delegate, oldSections, newSections []Section) {
	current := make(map[string]bool, len(newSections))
	for _, section := range newSections {
		current[section.name] = true
	}
	for index, section := range oldSections {
		if !current[section.name] {
			delegate.ControllerDidChangeSection(c, section, index, results.ChangeDelete)
		}
	}
	previous := make(map[string]bool, len(oldSections))
	for _, section := range oldSections {
		previous[section.name] = true
	}
	for index, section := range newSections {
		if !previous[section.name] {
			delegate.ControllerDidChangeSection(c, section, index, results.ChangeInsert)
		}
	}
}

func (c *Controller) emitRecordChange(delegate results.Delegate, change results.Change, oldPaths, newPaths map[string]results.IndexPath) {
	id := change.RecordID()
	if id == "" {
		return
	}
	switch change.Action {
	case results.ActionCreate:
		newPath, ok := newPaths[id]
		if !ok {
			return
		}
		delegate.ControllerDidChangeRecord(c, change.After.Clone(), results.NoIndexPath, results.ChangeInsert, newPath)
	case results.ActionDelete:
		oldPath, ok := oldPaths[id]
		if !ok {
			return
		}
		delegate.ControllerDidChangeRecord(c, change.Before.Clone(), oldPath, results.ChangeDelete, results.NoIndexPath)
	case results.ActionUpdate:
		oldPath, hadOld := oldPaths[id]
		newPath, hasNew := newPaths[id]
		if !hasNew {
			return
		}
		record := change.After.Clone()
		switch {
		case !hadOld:
			delegate.ControllerDidChangeRecord(c, record, results.NoIndexPath, results.ChangeInsert, newPath)
		case oldPath == newPath:
			delegate.ControllerDidChangeRecord(c, record, oldPath, results.ChangeUpdate, newPath)
		default:
			delegate.ControllerDidChangeRecord(c, record, oldPath, results.ChangeMove, newPath)
		}
	}
}

// buildLayout regroups records into sorted sections and computes the index
// path lookup. Pure: it touches no controller state, so callers may run it
// under the write lock. Index titles are left empty; resolveTitles fills them
// afterwards without the lock held.
func buildLayout(records map[string]results.Record) ([]Section, map[string]results.IndexPath) {
	grouped := make(map[string][]results.Record)
	for _, record := range records {
		grouped[record.SectionKey] = append(grouped[record.SectionKey], record)
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)

	sections := make([]Section, 0, len(names))
	paths := make(map[string]results.IndexPath, len(records))
	for sectionIndex, name := range names {
		rows := grouped[name]
		sort.Slice(rows, func(i, j int) bool {
			if rows[i].SortKey != rows[j].SortKey {
				return rows[i].SortKey < rows[j].SortKey
			}
			return rows[i].ID < rows[j].ID
		})
		for rowIndex, record := range rows {
			paths[record.ID] = results.IndexPath{Section: sectionIndex, Row: rowIndex}
		}
		sections = append(sections, Section{name: name, records: rows})
	}
	return sections, paths
}

// resolveTitles fills each section's index title, preferring a delegate that
// implements results.SectionIndexTitleProvider over the default first-rune
// title. Called with no lock held: the provider is free to query the
// controller from its callback, which at this point still serves the
// previously published layout.
func (c *Controller) resolveTitles(delegate results.Delegate, sections []Section) {
	provider, _ := delegate.(results.SectionIndexTitleProvider)
	for i := range sections {
		if provider != nil {
			if title, ok := provider.SectionIndexTitle(c, sections[i].name); ok {
				sections[i].indexTitle = title
				continue
			}
		}
		sections[i].indexTitle = defaultIndexTitle(sections[i].name)
	}
}

// publish swaps in a fully built layout.
func (c *Controller) publish(sections []Section, paths map[string]results.IndexPath) {
	c.mu.Lock()
	c.sections = sections
	c.paths = paths
	c.mu.Unlock()
}

func defaultIndexTitle(name string) string {
	if name == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(name)
	return strings.ToUpper(string(r))
}
