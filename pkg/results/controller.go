package results

import "context"

// Controller maintains a live, sectioned, ordered view over query results
// from a record store and reports structural changes to a single delegate.
type Controller interface {
	// PerformFetch loads the current store contents and begins observing
	// subsequent commits. It must be called before the query methods return
	// meaningful data.
	PerformFetch(ctx context.Context) error
	// Sections returns the current sections in view order.
	Sections() []SectionInfo
	// Record returns the record at path from the current view.
	Record(path IndexPath) (Record, bool)
	// IndexPathForRecord returns the current position of the record with the
	// given ID.
	IndexPathForRecord(id string) (IndexPath, bool)
	// SectionIndexTitles returns the abbreviated titles of all sections in
	// view order.
	SectionIndexTitles() []string
	// SetDelegate registers the object receiving change notifications. A nil
	// delegate stops delivery. The controller holds a non-owning reference.
	SetDelegate(d Delegate)
}
