// Command viewwatch seeds a record store, attaches a safety-wrapped view
// controller, and prints every delegate callback as the store changes. It is
// a manual inspection tool for the change-tracking pipeline.
package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"liveview/internal/archive"
	"liveview/internal/observability"
	"liveview/internal/storage"
	"liveview/internal/view"
	"liveview/pkg/results"
	"liveview/pkg/safety"
)

var exitFunc = os.Exit

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "viewwatch:", err)
		exitFunc(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("viewwatch", flag.ContinueOnError)
	seed := fs.Int("seed", 6, "number of sample records to create")
	mutate := fs.Int("mutate", 3, "number of mutation rounds to apply")
	doArchive := fs.Bool("archive", false, "write a snapshot to the archive store after mutating")
	metricsAddr := fs.String("metrics", "", "serve /metrics and /debug/vars on this address and block")
	verbose := fs.Bool("v", false, "log unsafe-change reports at debug level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel(*verbose)}))
	ctx := context.Background()

	store, err := storage.Open()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var recorder safety.ObservationRecorder
	var registry *prometheus.Registry
	if *metricsAddr != "" {
		registry = prometheus.NewRegistry()
		recorder, err = observability.NewPrometheusRecorder(registry)
		if err != nil {
			return fmt.Errorf("metrics recorder: %w", err)
		}
	} else {
		recorder = observability.NewExpvarRecorder("")
	}

	inner := view.New(store)
	defer inner.Close()
	controller := safety.Wrap(inner, safety.WithLogger(logger), safety.WithRecorder(recorder))
	controller.SetDelegate(&printingDelegate{logger: logger})
	if err := controller.PerformFetch(ctx); err != nil {
		return fmt.Errorf("perform fetch: %w", err)
	}

	if err := seedRecords(ctx, store, *seed); err != nil {
		return fmt.Errorf("seed records: %w", err)
	}
	if err := mutateRecords(ctx, store, *mutate); err != nil {
		return fmt.Errorf("mutate records: %w", err)
	}
	printLayout(controller)

	if *doArchive {
		objects, err := archive.Open(ctx)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		exporter, ok := store.(archive.StateExporter)
		if !ok {
			return fmt.Errorf("store %T cannot export state", store)
		}
		info, err := archive.NewArchiver(objects, exporter, "").Archive(ctx)
		if err != nil {
			return fmt.Errorf("archive snapshot: %w", err)
		}
		logger.Info("snapshot archived", "key", info.Key, "bytes", info.Size)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.Handle("/debug/vars", expvar.Handler())
		logger.Info("serving metrics", "addr", *metricsAddr)
		server := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		return server.ListenAndServe()
	}
	return nil
}

func logLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

var sampleRecords = []results.Record{
	{ID: "apple", SectionKey: "produce", SortKey: "apple", Title: "Apple"},
	{ID: "banana", SectionKey: "produce", SortKey: "banana", Title: "Banana"},
	{ID: "carrot", SectionKey: "produce", SortKey: "carrot", Title: "Carrot"},
	{ID: "milk", SectionKey: "dairy", SortKey: "milk", Title: "Milk"},
	{ID: "yogurt", SectionKey: "dairy", SortKey: "yogurt", Title: "Yogurt"},
	{ID: "baguette", SectionKey: "bakery", SortKey: "baguette", Title: "Baguette"},
}

func seedRecords(ctx context.Context, store results.RecordStore, n int) error {
	if n > len(sampleRecords) {
		n = len(sampleRecords)
	}
	for _, record := range sampleRecords[:n] {
		if _, err := store.RunInTransaction(ctx, func(tx results.Transaction) error {
			if _, ok := tx.Snapshot().FindRecord(record.ID); ok {
				return nil
			}
			_, err := tx.CreateRecord(record)
			return err
		}); err != nil {
			return err
		}
	}
	return nil
}

// mutateRecords cycles through a rename, a cross-section move, and a delete so
// every change kind shows up in the callback stream.
func mutateRecords(ctx context.Context, store results.RecordStore, rounds int) error {
	mutations := []func(results.Transaction) error{
		func(tx results.Transaction) error {
			_, err := tx.UpdateRecord("apple", func(record *results.Record) error {
				record.Title = "Green Apple"
				return nil
			})
			return err
		},
		func(tx results.Transaction) error {
			_, err := tx.UpdateRecord("yogurt", func(record *results.Record) error {
				record.SectionKey = "produce"
				return nil
			})
			return err
		},
		func(tx results.Transaction) error {
			return tx.DeleteRecord("banana")
		},
	}
	for i := 0; i < rounds && i < len(mutations); i++ {
		if _, err := store.RunInTransaction(ctx, mutations[i]); err != nil {
			return err
		}
	}
	return nil
}

func printLayout(controller results.Controller) {
	for _, section := range controller.Sections() {
		fmt.Printf("%s (%s)\n", section.Name(), section.IndexTitle())
		for _, record := range section.Records() {
			fmt.Printf("  %s\n", record.Title)
		}
	}
}

// printingDelegate logs every callback and any unsafe-change report.
type printingDelegate struct {
	logger *slog.Logger
}

var (
	_ results.Delegate             = (*printingDelegate)(nil)
	_ results.UnsafeChangeObserver = (*printingDelegate)(nil)
)

func (d *printingDelegate) ControllerWillChangeContent(results.Controller) {
	d.logger.Info("will change content")
}

func (d *printingDelegate) ControllerDidChangeContent(results.Controller) {
	d.logger.Info("did change content")
}

func (d *printingDelegate) ControllerDidChangeRecord(_ results.Controller, record results.Record, path results.IndexPath, kind results.ChangeType, newPath results.IndexPath) {
	d.logger.Info("record changed", "id", record.ID, "kind", kind.String(), "from", path.String(), "to", newPath.String())
}

func (d *printingDelegate) ControllerDidChangeSection(_ results.Controller, section results.SectionInfo, index int, kind results.ChangeType) {
	d.logger.Info("section changed", "name", section.Name(), "kind", kind.String(), "index", index)
}

func (d *printingDelegate) ControllerDidMakeUnsafeChanges(results.Controller) {
	d.logger.Warn("unsafe changes detected")
}
