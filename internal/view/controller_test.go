package view

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"liveview/internal/infra/persistence/memory"
	"liveview/pkg/results"
)

type recordingDelegate struct {
	events []string
}

func (d *recordingDelegate) ControllerWillChangeContent(results.Controller) {
	d.events = append(d.events, "will")
}

func (d *recordingDelegate) ControllerDidChangeContent(results.Controller) {
	d.events = append(d.events, "did")
}

func (d *recordingDelegate) ControllerDidChangeRecord(_ results.Controller, record results.Record, path results.IndexPath, kind results.ChangeType, newPath results.IndexPath) {
	d.events = append(d.events, fmt.Sprintf("record %s %s %s->%s", record.ID, kind, path, newPath))
}

func (d *recordingDelegate) ControllerDidChangeSection(_ results.Controller, section results.SectionInfo, index int, kind results.ChangeType) {
	d.events = append(d.events, fmt.Sprintf("section %s %s @%d", section.Name(), kind, index))
}

type titleDelegate struct {
	recordingDelegate
}

func (d *titleDelegate) SectionIndexTitle(_ results.Controller, sectionName string) (string, bool) {
	if sectionName == "fruit" {
		return "FR", true
	}
	return "", false
}

func seedStore(t *testing.T, store results.RecordStore, records ...results.Record) {
	t.Helper()
	if _, err := store.RunInTransaction(context.Background(), func(tx results.Transaction) error {
		for _, record := range records {
			if _, err := tx.CreateRecord(record); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
}

func fetched(t *testing.T, store results.RecordStore) *Controller {
	t.Helper()
	ctrl := New(store)
	t.Cleanup(ctrl.Close)
	if err := ctrl.PerformFetch(context.Background()); err != nil {
		t.Fatalf("perform fetch: %v", err)
	}
	return ctrl
}

func assertEvents(t *testing.T, got, want []string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected events:\n got  %v\n want %v", got, want)
	}
}

func TestPerformFetchBuildsSortedLayout(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store,
		results.Record{ID: "r-banana", SectionKey: "fruit", SortKey: "banana", Title: "Banana"},
		results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple", Title: "Apple"},
		results.Record{ID: "r-carrot", SectionKey: "veg", SortKey: "carrot", Title: "Carrot"},
	)
	ctrl := fetched(t, store)

	sections := ctrl.Sections()
	if len(sections) != 2 {
		t.Fatalf("expected 2 sections got %d", len(sections))
	}
	if sections[0].Name() != "fruit" || sections[1].Name() != "veg" {
		t.Fatalf("sections out of order: %s, %s", sections[0].Name(), sections[1].Name())
	}
	if sections[0].NumRecords() != 2 {
		t.Fatalf("expected 2 fruit records got %d", sections[0].NumRecords())
	}
	rows := sections[0].Records()
	if rows[0].ID != "r-apple" || rows[1].ID != "r-banana" {
		t.Fatalf("rows out of order: %s, %s", rows[0].ID, rows[1].ID)
	}

	record, ok := ctrl.Record(results.IndexPath{Section: 1, Row: 0})
	if !ok || record.ID != "r-carrot" {
		t.Fatalf("unexpected record %+v ok=%v", record, ok)
	}
	if _, ok := ctrl.Record(results.IndexPath{Section: 1, Row: 5}); ok {
		t.Fatalf("out of range path must not resolve")
	}
	path, ok := ctrl.IndexPathForRecord("r-banana")
	if !ok || path != (results.IndexPath{Section: 0, Row: 1}) {
		t.Fatalf("unexpected path %s ok=%v", path, ok)
	}
	if _, ok := ctrl.IndexPathForRecord("missing"); ok {
		t.Fatalf("missing record must not resolve")
	}
	titles := ctrl.SectionIndexTitles()
	if !reflect.DeepEqual(titles, []string{"F", "V"}) {
		t.Fatalf("unexpected titles %v", titles)
	}
}

func TestCommitInsertsReportNewSectionAndRecord(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"})
	ctrl := fetched(t, store)
	delegate := &recordingDelegate{}
	ctrl.SetDelegate(delegate)

	seedStore(t, store, results.Record{ID: "r-carrot", SectionKey: "veg", SortKey: "carrot"})

	assertEvents(t, delegate.events, []string{
		"will",
		"section veg insert @1",
		"record r-carrot insert [-]->[1,0]",
		"did",
	})
}

func TestCommitUpdateInPlaceReportsUpdate(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store, results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple", Title: "Apple"})
	ctrl := fetched(t, store)
	delegate := &recordingDelegate{}
	ctrl.SetDelegate(delegate)

	if _, err := store.RunInTransaction(context.Background(), func(tx results.Transaction) error {
		_, err := tx.UpdateRecord("r-apple", func(record *results.Record) error {
			record.Title = "Green Apple"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	assertEvents(t, delegate.events, []string{
		"will",
		"record r-apple update [0,0]->[0,0]",
		"did",
	})
	record, _ := ctrl.Record(results.IndexPath{Section: 0, Row: 0})
	if record.Title != "Green Apple" {
		t.Fatalf("layout not refreshed: %q", record.Title)
	}
}

func TestCommitMoveAcrossSections(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store,
		results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"},
		results.Record{ID: "r-carrot", SectionKey: "veg", SortKey: "carrot"},
	)
	ctrl := fetched(t, store)
	delegate := &recordingDelegate{}
	ctrl.SetDelegate(delegate)

	if _, err := store.RunInTransaction(context.Background(), func(tx results.Transaction) error {
		_, err := tx.UpdateRecord("r-carrot", func(record *results.Record) error {
			record.SectionKey = "fruit"
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	assertEvents(t, delegate.events, []string{
		"will",
		"section veg delete @1",
		"record r-carrot move [1,0]->[0,1]",
		"did",
	})
}

func TestCommitDeleteEmptiesSection(t *testing.T) {
	store := memory.NewStore()
	seedStore(t, store,
		results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"},
		results.Record{ID: "r-carrot", SectionKey: "veg", SortKey: "carrot"},
	)
	ctrl := fetched(t, store)
	delegate := &recordingDelegate{}
	ctrl.SetDelegate(delegate)

	if _, err := store.RunInTransaction(context.Background(), func(tx results.Transaction) error {
		return tx.DeleteRecord("r-carrot")
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	assertEvents(t, delegate.events, []string{
		"will",
		"section veg delete @1",
		"record r-carrot delete [1,0]->[-]",
		"did",
	})
	if len(ctrl.Sections()) != 1 {
		t.Fatalf("expected single remaining section")
	}
}

func TestNilDelegateCommitsApplySilently(t *testing.T) {
	store := memory.NewStore()
	ctrl := fetched(t, store)

	seedStore(t, store, results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"})

	if _, ok := ctrl.IndexPathForRecord("r-apple"); !ok {
		t.Fatalf("layout must update without a delegate")
	}
}

func TestSectionIndexTitleProviderOverridesDefault(t *testing.T) {
	store := memory.NewStore()
	ctrl := fetched(t, store)
	delegate := &titleDelegate{}
	ctrl.SetDelegate(delegate)

	seedStore(t, store,
		results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"},
		results.Record{ID: "r-carrot", SectionKey: "veg", SortKey: "carrot"},
	)

	titles := ctrl.SectionIndexTitles()
	if !reflect.DeepEqual(titles, []string{"FR", "V"}) {
		t.Fatalf("unexpected titles %v", titles)
	}
}

// queryingTitleDelegate reads the controller back from inside its title
// callback, as a UI delegate legitimately may.
type queryingTitleDelegate struct {
	recordingDelegate
	ctrl    *Controller
	queries int
}

func (d *queryingTitleDelegate) SectionIndexTitle(_ results.Controller, sectionName string) (string, bool) {
	d.queries++
	d.ctrl.Sections()
	d.ctrl.IndexPathForRecord("r-apple")
	return strings.ToUpper(sectionName), true
}

func TestTitleProviderMayQueryControllerDuringCommit(t *testing.T) {
	store := memory.NewStore()
	ctrl := fetched(t, store)
	delegate := &queryingTitleDelegate{ctrl: ctrl}
	ctrl.SetDelegate(delegate)

	done := make(chan error, 1)
	go func() {
		_, err := store.RunInTransaction(context.Background(), func(tx results.Transaction) error {
			_, err := tx.CreateRecord(results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"})
			return err
		})
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("commit blocked while resolving section index titles")
	}

	if delegate.queries == 0 {
		t.Fatalf("title callback never ran")
	}
	titles := ctrl.SectionIndexTitles()
	if !reflect.DeepEqual(titles, []string{"FRUIT"}) {
		t.Fatalf("unexpected titles %v", titles)
	}
}

func TestCloseStopsCommitDelivery(t *testing.T) {
	store := memory.NewStore()
	ctrl := fetched(t, store)
	delegate := &recordingDelegate{}
	ctrl.SetDelegate(delegate)

	ctrl.Close()
	ctrl.Close()
	seedStore(t, store, results.Record{ID: "r-apple", SectionKey: "fruit", SortKey: "apple"})

	if len(delegate.events) != 0 {
		t.Fatalf("expected no events after close, got %v", delegate.events)
	}
}
