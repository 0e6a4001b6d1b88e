package safety

import (
	"context"
	"fmt"
	"testing"

	"liveview/pkg/results"
)

// fakeController scripts arbitrary callback sequences, including malformed
// ones a well-behaved controller would never emit.
type fakeController struct {
	delegate results.Delegate

	fetchErr    error
	fetchCalls  int
	sections    []results.SectionInfo
	record      results.Record
	recordOK    bool
	path        results.IndexPath
	pathOK      bool
	indexTitles []string
}

var _ results.Controller = (*fakeController)(nil)

func (f *fakeController) PerformFetch(context.Context) error {
	f.fetchCalls++
	return f.fetchErr
}
func (f *fakeController) Sections() []results.SectionInfo { return f.sections }
func (f *fakeController) Record(results.IndexPath) (results.Record, bool) {
	return f.record, f.recordOK
}
func (f *fakeController) IndexPathForRecord(string) (results.IndexPath, bool) {
	return f.path, f.pathOK
}
func (f *fakeController) SectionIndexTitles() []string   { return f.indexTitles }
func (f *fakeController) SetDelegate(d results.Delegate) { f.delegate = d }

func (f *fakeController) emitWill() { f.delegate.ControllerWillChangeContent(f) }
func (f *fakeController) emitDid()  { f.delegate.ControllerDidChangeContent(f) }

func (f *fakeController) emitRecord(rec results.Record, path results.IndexPath, kind results.ChangeType, newPath results.IndexPath) {
	f.delegate.ControllerDidChangeRecord(f, rec, path, kind, newPath)
}

func (f *fakeController) emitSection(info results.SectionInfo, index int, kind results.ChangeType) {
	f.delegate.ControllerDidChangeSection(f, info, index, kind)
}

// fakeSection is a minimal SectionInfo for section-change arguments.
type fakeSection struct{ name string }

func (s fakeSection) Name() string              { return s.name }
func (s fakeSection) IndexTitle() string        { return s.name }
func (s fakeSection) NumRecords() int           { return 0 }
func (s fakeSection) Records() []results.Record { return nil }

// recordingDelegate implements the required base capability set and records
// every callback in arrival order.
type recordingDelegate struct {
	events      []string
	controllers []results.Controller
}

func (d *recordingDelegate) ControllerWillChangeContent(c results.Controller) {
	d.events = append(d.events, "will")
	d.controllers = append(d.controllers, c)
}

func (d *recordingDelegate) ControllerDidChangeContent(c results.Controller) {
	d.events = append(d.events, "did")
	d.controllers = append(d.controllers, c)
}

func (d *recordingDelegate) ControllerDidChangeRecord(c results.Controller, rec results.Record, path results.IndexPath, kind results.ChangeType, newPath results.IndexPath) {
	d.events = append(d.events, fmt.Sprintf("record %s %s %s->%s", rec.ID, kind, path, newPath))
	d.controllers = append(d.controllers, c)
}

func (d *recordingDelegate) ControllerDidChangeSection(c results.Controller, info results.SectionInfo, index int, kind results.ChangeType) {
	d.events = append(d.events, fmt.Sprintf("section %s %s %d", info.Name(), kind, index))
	d.controllers = append(d.controllers, c)
}

// unsafeAwareDelegate additionally implements the optional extended
// capability.
type unsafeAwareDelegate struct {
	recordingDelegate
	unsafeFrom []results.Controller
}

func (d *unsafeAwareDelegate) ControllerDidMakeUnsafeChanges(c results.Controller) {
	d.events = append(d.events, "unsafe")
	d.unsafeFrom = append(d.unsafeFrom, c)
}

// titleDelegate implements the optional section index title capability.
type titleDelegate struct {
	recordingDelegate
	titles map[string]string
}

func (d *titleDelegate) SectionIndexTitle(_ results.Controller, name string) (string, bool) {
	t, ok := d.titles[name]
	return t, ok
}

type countingRecorder struct {
	callbacks map[string]int
	unsafe    int
}

func (r *countingRecorder) RecordCallback(kind string) {
	if r.callbacks == nil {
		r.callbacks = make(map[string]int)
	}
	r.callbacks[kind]++
}

func (r *countingRecorder) RecordUnsafe() { r.unsafe++ }

type captureLogger struct {
	noopLogger
	debugs []string
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.debugs = append(l.debugs, msg) }

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("event count mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestWrapRegistersAsInnerDelegate(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	if inner.delegate != results.Delegate(wrapped) {
		t.Fatalf("wrapper did not register itself with the wrapped controller")
	}
	if wrapped.Inner() != results.Controller(inner) {
		t.Fatalf("Inner() did not return the wrapped controller")
	}
}

func TestBracketedBatchProducesNoUnsafeSignal(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &unsafeAwareDelegate{}
	wrapped.SetDelegate(app)

	inner.emitWill()
	inner.emitRecord(results.Record{ID: "r1"}, results.NoIndexPath, results.ChangeInsert, results.IndexPath{Section: 0, Row: 0})
	inner.emitDid()

	assertEvents(t, app.events, []string{
		"will",
		"record r1 insert [-]->[0,0]",
		"did",
	})
	for i, c := range app.controllers {
		if c != results.Controller(inner) {
			t.Fatalf("callback %d carried %T, want the wrapped controller", i, c)
		}
	}
}

func TestChangeBeforeAnyBracketIsForwardedAndFlagged(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &unsafeAwareDelegate{}
	wrapped.SetDelegate(app)

	inner.emitRecord(results.Record{ID: "r9"}, results.IndexPath{Section: 0, Row: 2}, results.ChangeDelete, results.NoIndexPath)

	assertEvents(t, app.events, []string{
		"unsafe",
		"record r9 delete [0,2]->[-]",
	})
	if len(app.unsafeFrom) != 1 || app.unsafeFrom[0] != results.Controller(inner) {
		t.Fatalf("unsafe signal must carry the underlying controller")
	}
	if wrapped.pendingWillChange {
		t.Fatalf("pending flag must remain false after an unbracketed change")
	}
}

func TestChangeAfterClosedBracketIsFlagged(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &unsafeAwareDelegate{}
	wrapped.SetDelegate(app)

	inner.emitWill()
	inner.emitDid()
	inner.emitRecord(results.Record{ID: "r2"}, results.IndexPath{Section: 0, Row: 1}, results.ChangeUpdate, results.NoIndexPath)

	assertEvents(t, app.events, []string{
		"will",
		"did",
		"unsafe",
		"record r2 update [0,1]->[-]",
	})
}

func TestEachUnbracketedCallbackReportsOwnViolation(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &unsafeAwareDelegate{}
	wrapped.SetDelegate(app)

	inner.emitRecord(results.Record{ID: "a"}, results.IndexPath{Section: 0, Row: 0}, results.ChangeUpdate, results.NoIndexPath)
	inner.emitRecord(results.Record{ID: "b"}, results.IndexPath{Section: 0, Row: 1}, results.ChangeUpdate, results.NoIndexPath)
	inner.emitSection(fakeSection{name: "s"}, 0, results.ChangeDelete)

	unsafeCount := 0
	for _, ev := range app.events {
		if ev == "unsafe" {
			unsafeCount++
		}
	}
	if unsafeCount != 3 {
		t.Fatalf("expected one unsafe report per offending callback, got %d (%v)", unsafeCount, app.events)
	}
}

func TestForwardingPreservesOrderAcrossMixedSequence(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &unsafeAwareDelegate{}
	wrapped.SetDelegate(app)

	inner.emitWill()
	inner.emitSection(fakeSection{name: "alpha"}, 0, results.ChangeInsert)
	inner.emitRecord(results.Record{ID: "r1"}, results.NoIndexPath, results.ChangeInsert, results.IndexPath{Section: 0, Row: 0})
	inner.emitRecord(results.Record{ID: "r2"}, results.IndexPath{Section: 0, Row: 1}, results.ChangeMove, results.IndexPath{Section: 0, Row: 0})
	inner.emitDid()

	assertEvents(t, app.events, []string{
		"will",
		"section alpha insert 0",
		"record r1 insert [-]->[0,0]",
		"record r2 move [0,1]->[0,0]",
		"did",
	})
}

func TestDelegateWithoutCapabilityStillReceivesForwards(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &recordingDelegate{}
	wrapped.SetDelegate(app)

	// Unbracketed change: the unsafe signal has nowhere to go and must be
	// silently dropped while the standard callback still arrives.
	inner.emitRecord(results.Record{ID: "r3"}, results.IndexPath{Section: 1, Row: 0}, results.ChangeDelete, results.NoIndexPath)

	assertEvents(t, app.events, []string{"record r3 delete [1,0]->[-]"})
}

func TestNilDelegateToleratedThroughoutLifecycle(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)

	// No delegate registered at all.
	inner.emitWill()
	inner.emitRecord(results.Record{ID: "r"}, results.NoIndexPath, results.ChangeInsert, results.IndexPath{Section: 0, Row: 0})
	inner.emitDid()

	// Delegate torn down between registration and a later callback.
	app := &recordingDelegate{}
	wrapped.SetDelegate(app)
	inner.emitWill()
	wrapped.SetDelegate(nil)
	inner.emitRecord(results.Record{ID: "r"}, results.NoIndexPath, results.ChangeInsert, results.IndexPath{Section: 0, Row: 0})
	inner.emitDid()

	assertEvents(t, app.events, []string{"will"})
}

func TestSectionChangeOutsideBracketIsFlagged(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)
	app := &unsafeAwareDelegate{}
	wrapped.SetDelegate(app)

	inner.emitSection(fakeSection{name: "beta"}, 2, results.ChangeInsert)

	assertEvents(t, app.events, []string{
		"unsafe",
		"section beta insert 2",
	})
}

func TestSectionIndexTitlePassThrough(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner)

	// Without the capability the query falls back to the controller default.
	wrapped.SetDelegate(&recordingDelegate{})
	if title, ok := wrapped.SectionIndexTitle(inner, "golf"); ok || title != "" {
		t.Fatalf("expected fallback for plain delegate, got %q/%v", title, ok)
	}

	app := &titleDelegate{titles: map[string]string{"golf": "G"}}
	wrapped.SetDelegate(app)
	title, ok := wrapped.SectionIndexTitle(inner, "golf")
	if !ok || title != "G" {
		t.Fatalf("expected delegate-provided title, got %q/%v", title, ok)
	}
	if _, ok := wrapped.SectionIndexTitle(inner, "hotel"); ok {
		t.Fatalf("expected miss for unknown section")
	}
	// Title queries never open or close a bracket.
	if wrapped.pendingWillChange {
		t.Fatalf("title query must not affect bracket state")
	}
}

func TestQueryMethodsDelegateToWrappedController(t *testing.T) {
	inner := &fakeController{
		sections:    []results.SectionInfo{fakeSection{name: "s"}},
		record:      results.Record{ID: "r7"},
		recordOK:    true,
		path:        results.IndexPath{Section: 1, Row: 3},
		pathOK:      true,
		indexTitles: []string{"A", "B"},
	}
	wrapped := Wrap(inner)

	if err := wrapped.PerformFetch(context.Background()); err != nil {
		t.Fatalf("PerformFetch: %v", err)
	}
	if inner.fetchCalls != 1 {
		t.Fatalf("expected fetch delegated once, got %d", inner.fetchCalls)
	}
	if got := wrapped.Sections(); len(got) != 1 || got[0].Name() != "s" {
		t.Fatalf("Sections not delegated: %v", got)
	}
	rec, ok := wrapped.Record(results.IndexPath{Section: 0, Row: 0})
	if !ok || rec.ID != "r7" {
		t.Fatalf("Record not delegated: %v %v", rec, ok)
	}
	path, ok := wrapped.IndexPathForRecord("r7")
	if !ok || path != (results.IndexPath{Section: 1, Row: 3}) {
		t.Fatalf("IndexPathForRecord not delegated: %v %v", path, ok)
	}
	if got := wrapped.SectionIndexTitles(); len(got) != 2 || got[0] != "A" {
		t.Fatalf("SectionIndexTitles not delegated: %v", got)
	}
}

func TestRecorderCountsCallbacksAndUnsafeReports(t *testing.T) {
	inner := &fakeController{}
	rec := &countingRecorder{}
	wrapped := Wrap(inner, WithRecorder(rec))
	wrapped.SetDelegate(&unsafeAwareDelegate{})

	inner.emitWill()
	inner.emitRecord(results.Record{ID: "a"}, results.NoIndexPath, results.ChangeInsert, results.IndexPath{Section: 0, Row: 0})
	inner.emitSection(fakeSection{name: "s"}, 0, results.ChangeInsert)
	inner.emitDid()
	inner.emitRecord(results.Record{ID: "b"}, results.IndexPath{Section: 0, Row: 0}, results.ChangeUpdate, results.NoIndexPath)

	if rec.callbacks[CallbackWillChange] != 1 ||
		rec.callbacks[CallbackDidChange] != 1 ||
		rec.callbacks[CallbackRecordChange] != 2 ||
		rec.callbacks[CallbackSectionChange] != 1 {
		t.Fatalf("unexpected callback counts: %v", rec.callbacks)
	}
	if rec.unsafe != 1 {
		t.Fatalf("expected exactly one unsafe report, got %d", rec.unsafe)
	}
}

func TestUnsafeReportLogsAtDebug(t *testing.T) {
	inner := &fakeController{}
	log := &captureLogger{}
	wrapped := Wrap(inner, WithLogger(log))
	wrapped.SetDelegate(&recordingDelegate{})

	inner.emitRecord(results.Record{ID: "x"}, results.IndexPath{Section: 0, Row: 0}, results.ChangeDelete, results.NoIndexPath)

	if len(log.debugs) != 1 {
		t.Fatalf("expected one debug line, got %v", log.debugs)
	}
}

func TestOptionsIgnoreNilValues(t *testing.T) {
	inner := &fakeController{}
	wrapped := Wrap(inner, WithLogger(nil), WithRecorder(nil))
	// Defaults must survive nil options; emitting must not panic.
	inner.emitWill()
	inner.emitDid()
	if wrapped.pendingWillChange {
		t.Fatalf("bracket should be closed")
	}
}
