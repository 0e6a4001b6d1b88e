// Package observability provides recorder implementations that export
// delegate callback counters and unsafe-change reports.
package observability

import (
	"expvar"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"liveview/pkg/safety"
)

var expvarSeq uint64

// Compile-time contract assertion.
var _ safety.ObservationRecorder = (*ExpvarRecorder)(nil)

// ExpvarRecorder publishes callback and unsafe-change counters via expvar for
// deployments that prefer process-local metrics without external dependencies.
type ExpvarRecorder struct {
	name      string
	mu        sync.Mutex
	callbacks map[string]int64
	unsafe    int64
}

// ExpvarSnapshot captures a read-only view of the recorded counters.
type ExpvarSnapshot struct {
	Callbacks  map[string]int64 `json:"callbacks_total"`
	Unsafe     int64            `json:"unsafe_changes_total"`
	RecordedAt time.Time        `json:"recorded_at"`
}

// NewExpvarRecorder constructs an expvar-backed recorder and publishes it
// under the supplied name. When name is empty, a unique identifier is
// generated.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("liveview_safety_metrics_%d", id)
	}
	rec := &ExpvarRecorder{
		name:      name,
		callbacks: make(map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated counters.
func (r *ExpvarRecorder) Snapshot() ExpvarSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	callbacks := make(map[string]int64, len(r.callbacks))
	for kind, count := range r.callbacks {
		callbacks[kind] = count
	}

	return ExpvarSnapshot{
		Callbacks:  callbacks,
		Unsafe:     r.unsafe,
		RecordedAt: time.Now().UTC(),
	}
}

// RecordCallback counts one forwarded delegate callback of the given kind.
func (r *ExpvarRecorder) RecordCallback(kind string) {
	if kind == "" {
		return
	}
	r.mu.Lock()
	r.callbacks[kind]++
	r.mu.Unlock()
}

// RecordUnsafe counts one structural change delivered outside a bracket.
func (r *ExpvarRecorder) RecordUnsafe() {
	r.mu.Lock()
	r.unsafe++
	r.mu.Unlock()
}
