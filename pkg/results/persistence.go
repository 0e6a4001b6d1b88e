package results

import (
	"context"
	"time"
)

// Action indicates the type of modification captured in a commit.
type Action string

// Change actions enumerate the CRUD operations a transaction records.
const (
	// ActionCreate indicates a record was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates a record was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change describes a mutation applied to a record during a transaction.
// Before is nil for creates, After is nil for deletes.
type Change struct {
	Action Action
	Before *Record
	After  *Record
}

// RecordID returns the identity of the record the change concerns.
func (c Change) RecordID() string {
	if c.After != nil {
		return c.After.ID
	}
	if c.Before != nil {
		return c.Before.ID
	}
	return ""
}

// Commit summarizes one successfully committed transaction. Sequence numbers
// are strictly increasing per store; observers receive commits in order.
type Commit struct {
	Seq     uint64
	At      time.Time
	Changes []Change
}

// CommitObserver receives committed change batches from a record store.
// Delivery is synchronous and serialized: a store never invokes an observer
// concurrently with itself.
type CommitObserver interface {
	StoreDidCommit(Commit)
}

// Transaction exposes the record operations a persistence implementation
// supports within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateRecord(Record) (Record, error)
	UpdateRecord(id string, mutator func(*Record) error) (Record, error)
	DeleteRecord(id string) error
}

// TransactionView provides read-only access to transactional state.
type TransactionView interface {
	ListRecords() []Record
	FindRecord(id string) (Record, bool)
}

// RecordStore is a minimal abstraction over durable record backends. It
// mirrors the subset of store capabilities the view controller consumes.
type RecordStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Commit, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetRecord(id string) (Record, bool)
	ListRecords() []Record
	// Watch registers a commit observer and returns a cancel function that
	// unregisters it.
	Watch(obs CommitObserver) (cancel func())
}
