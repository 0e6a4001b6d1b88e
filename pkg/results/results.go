// Package results defines the fetched-results contract: the record model, the
// controller abstraction that maintains a live, sectioned, ordered view over a
// record store, and the delegate interfaces through which structural changes
// are reported to a presentation layer.
package results

import (
	"fmt"
	"time"
)

// IndexPath locates a record inside the sectioned view.
type IndexPath struct {
	Section int
	Row     int
}

// NoIndexPath is the sentinel used when a callback argument carries no
// position (for example the new path of a delete).
var NoIndexPath = IndexPath{Section: -1, Row: -1}

// IsValid reports whether the path points at an actual position.
func (p IndexPath) IsValid() bool {
	return p.Section >= 0 && p.Row >= 0
}

func (p IndexPath) String() string {
	if !p.IsValid() {
		return "[-]"
	}
	return fmt.Sprintf("[%d,%d]", p.Section, p.Row)
}

// ChangeType classifies a structural change reported to the delegate.
type ChangeType int

// Structural change kinds reported between a will-change and did-change pair.
const (
	// ChangeInsert indicates a record or section appeared.
	ChangeInsert ChangeType = iota + 1
	// ChangeDelete indicates a record or section disappeared.
	ChangeDelete
	// ChangeMove indicates a record relocated to a different index path.
	ChangeMove
	// ChangeUpdate indicates a record changed in place.
	ChangeUpdate
)

func (t ChangeType) String() string {
	switch t {
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeMove:
		return "move"
	case ChangeUpdate:
		return "update"
	default:
		return fmt.Sprintf("changetype(%d)", int(t))
	}
}

// SectionInfo describes one section of the fetched view.
type SectionInfo interface {
	// Name returns the section key grouping its records.
	Name() string
	// IndexTitle returns the abbreviated title used in a section index.
	IndexTitle() string
	// NumRecords returns the number of records in the section.
	NumRecords() int
	// Records returns the section's records in view order.
	Records() []Record
}

// Record is the unit of data the view orders and sections. Records are passed
// through to delegates by value and never reinterpreted by the controller.
type Record struct {
	ID         string         `json:"id"`
	SectionKey string         `json:"section_key"`
	SortKey    string         `json:"sort_key"`
	Title      string         `json:"title"`
	Fields     map[string]any `json:"fields,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Clone returns a deep copy so shared state cannot be mutated through a
// retained record.
func (r Record) Clone() Record {
	cp := r
	if r.Fields != nil {
		cp.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			cp.Fields[k] = v
		}
	}
	return cp
}
