// Package memory provides an in-memory implementation of the record store
// used for tests and ephemeral environments. It is also the canonical
// transactional engine the durable backends embed.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"liveview/pkg/results"
)

// Compile-time contract assertion ensuring memory.Store adheres to the
// results persistence interface.
var _ results.RecordStore = (*Store)(nil)

// Snapshot captures a point-in-time clone of the store state, including the
// commit sequence so hydrated stores continue numbering where they left off.
type Snapshot struct {
	Records map[string]results.Record `json:"records"`
	Seq     uint64                    `json:"seq"`
}

// Store is an in-memory transactional record store with synchronous commit
// observation.
type Store struct {
	mu    sync.RWMutex
	state map[string]results.Record
	seq   uint64
	nowFn func() time.Time

	// commitMu serializes commit application and observer delivery so
	// observers see commits in sequence order. It is acquired before mu and
	// released after delivery, with mu already released, so observers may
	// read the store freely from their callbacks.
	commitMu  sync.Mutex
	obsMu     sync.Mutex
	observers map[int]results.CommitObserver
	nextObsID int
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state:     make(map[string]results.Record),
		nowFn:     func() time.Time { return time.Now().UTC() },
		observers: make(map[int]results.CommitObserver),
	}
}

// NowFunc returns the clock used to stamp records.
func (s *Store) NowFunc() func() time.Time { return s.nowFn }

// SetNowFunc overrides the clock; intended for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

func (s *Store) newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// Transaction represents a mutation set applied to the store state.
type Transaction struct {
	store   *Store
	state   map[string]results.Record
	changes []results.Change
	now     time.Time
}

var _ results.Transaction = (*Transaction)(nil)

// transactionView exposes a read-only snapshot of transactional state.
type transactionView struct {
	state map[string]results.Record
}

var _ results.TransactionView = transactionView{}

// ListRecords returns all records in the snapshot, ordered by ID.
func (v transactionView) ListRecords() []results.Record {
	return listSorted(v.state)
}

// FindRecord retrieves a record by ID from the snapshot.
func (v transactionView) FindRecord(id string) (results.Record, bool) {
	r, ok := v.state[id]
	if !ok {
		return results.Record{}, false
	}
	return r.Clone(), true
}

func listSorted(state map[string]results.Record) []results.Record {
	out := make([]results.Record, 0, len(state))
	for _, r := range state {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneState(state map[string]results.Record) map[string]results.Record {
	cloned := make(map[string]results.Record, len(state))
	for k, v := range state {
		cloned[k] = v.Clone()
	}
	return cloned
}

// Snapshot returns a read-only view of the transactional state.
func (tx *Transaction) Snapshot() results.TransactionView {
	return transactionView{state: tx.state}
}

// CreateRecord stores a new record within the transaction.
func (tx *Transaction) CreateRecord(r results.Record) (results.Record, error) {
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := tx.state[r.ID]; exists {
		return results.Record{}, fmt.Errorf("record %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	tx.state[r.ID] = r.Clone()
	after := r.Clone()
	tx.changes = append(tx.changes, results.Change{Action: results.ActionCreate, After: &after})
	return r.Clone(), nil
}

// UpdateRecord mutates a record using the provided mutator function.
func (tx *Transaction) UpdateRecord(id string, mutator func(*results.Record) error) (results.Record, error) {
	current, ok := tx.state[id]
	if !ok {
		return results.Record{}, fmt.Errorf("record %q not found", id)
	}
	before := current.Clone()
	if err := mutator(&current); err != nil {
		return results.Record{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state[id] = current.Clone()
	after := current.Clone()
	tx.changes = append(tx.changes, results.Change{Action: results.ActionUpdate, Before: &before, After: &after})
	return current.Clone(), nil
}

// DeleteRecord removes a record from the transaction state.
func (tx *Transaction) DeleteRecord(id string) error {
	current, ok := tx.state[id]
	if !ok {
		return fmt.Errorf("record %q not found", id)
	}
	delete(tx.state, id)
	before := current.Clone()
	tx.changes = append(tx.changes, results.Change{Action: results.ActionDelete, Before: &before})
	return nil
}

// RunInTransaction executes fn within a transactional copy of the store
// state. On success the state is swapped in, the commit sequence advances,
// and observers are notified synchronously before the next commit may start.
func (s *Store) RunInTransaction(ctx context.Context, fn func(results.Transaction) error) (results.Commit, error) {
	if err := ctx.Err(); err != nil {
		return results.Commit{}, err
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	s.mu.Lock()
	tx := &Transaction{
		store: s,
		state: cloneState(s.state),
		now:   s.nowFn(),
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return results.Commit{}, err
	}

	s.mu.Lock()
	s.state = tx.state
	s.seq++
	commit := results.Commit{Seq: s.seq, At: tx.now, Changes: tx.changes}
	s.mu.Unlock()

	s.notify(commit)
	return commit, nil
}

// View executes fn against a read-only snapshot of committed state.
func (s *Store) View(ctx context.Context, fn func(results.TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := cloneState(s.state)
	s.mu.RUnlock()
	return fn(transactionView{state: snapshot})
}

// GetRecord retrieves a record by ID from committed state.
func (s *Store) GetRecord(id string) (results.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state[id]
	if !ok {
		return results.Record{}, false
	}
	return r.Clone(), true
}

// ListRecords returns all records from committed state, ordered by ID.
func (s *Store) ListRecords() []results.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSorted(s.state)
}

// Watch registers a commit observer. The returned cancel function
// unregisters it; cancel is safe to call more than once.
func (s *Store) Watch(obs results.CommitObserver) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	id := s.nextObsID
	s.nextObsID++
	s.observers[id] = obs
	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) notify(commit results.Commit) {
	s.obsMu.Lock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	obs := make([]results.CommitObserver, 0, len(ids))
	for _, id := range ids {
		obs = append(obs, s.observers[id])
	}
	s.obsMu.Unlock()
	for _, o := range obs {
		o.StoreDidCommit(commit)
	}
}

// ExportState returns a deep copy of the committed state and sequence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Records: cloneState(s.state), Seq: s.seq}
}

// ImportState replaces the committed state wholesale. Observers are not
// notified: hydration precedes observation.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snapshot.Records == nil {
		s.state = make(map[string]results.Record)
	} else {
		s.state = cloneState(snapshot.Records)
	}
	s.seq = snapshot.Seq
}
