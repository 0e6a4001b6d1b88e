// Package safety interposes between a fetched-results controller and its
// application delegate. The wrapper forwards every standard change callback
// verbatim and additionally watches the will/did bracketing of each batch:
// a structural callback delivered outside a bracket means the store violated
// its notification contract, and applying that batch incrementally would
// corrupt the presentation layer's bookkeeping. Consumers that implement the
// optional results.UnsafeChangeObserver capability are told so they can fall
// back to a full reload.
package safety

import (
	"context"

	"liveview/pkg/results"
)

// Controller wraps a results.Controller by composition, registering itself as
// the wrapped controller's sole delegate. Query methods delegate to the
// wrapped controller, so the wrapper is a drop-in replacement.
//
// All callback methods are invoked synchronously on whatever goroutine the
// wrapped controller delivers from; the controller contract serializes them,
// so the single pending-flag field needs no lock.
type Controller struct {
	inner    results.Controller
	delegate results.Delegate

	// pendingWillChange is true between a forwarded will-change and its
	// matching did-change. Structural callbacks seen while false are unsafe.
	pendingWillChange bool

	logger   Logger
	recorder ObservationRecorder
}

var (
	_ results.Controller                = (*Controller)(nil)
	_ results.Delegate                  = (*Controller)(nil)
	_ results.SectionIndexTitleProvider = (*Controller)(nil)
)

// Option configures a wrapped controller.
type Option func(*Controller)

// WithLogger installs a logger for diagnostic output. The default discards
// everything, matching the silent side-channel contract of the unsafe signal.
func WithLogger(l Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRecorder installs an observation recorder counting forwarded callbacks
// and unsafe reports.
func WithRecorder(r ObservationRecorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// Wrap interposes a new safety controller between inner and its future
// delegate. Wrap registers the wrapper as inner's delegate; the application
// delegate is attached afterwards via SetDelegate.
func Wrap(inner results.Controller, opts ...Option) *Controller {
	c := &Controller{
		inner:    inner,
		logger:   noopLogger{},
		recorder: noopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	inner.SetDelegate(c)
	return c
}

// Inner returns the wrapped controller.
func (c *Controller) Inner() results.Controller { return c.inner }

// SetDelegate stores a non-owning reference to the application delegate. The
// wrapper stays registered with the wrapped controller; passing nil detaches
// the application delegate and turns forwarding into a no-op.
func (c *Controller) SetDelegate(d results.Delegate) { c.delegate = d }

// PerformFetch delegates to the wrapped controller.
func (c *Controller) PerformFetch(ctx context.Context) error { return c.inner.PerformFetch(ctx) }

// Sections delegates to the wrapped controller.
func (c *Controller) Sections() []results.SectionInfo { return c.inner.Sections() }

// Record delegates to the wrapped controller.
func (c *Controller) Record(path results.IndexPath) (results.Record, bool) {
	return c.inner.Record(path)
}

// IndexPathForRecord delegates to the wrapped controller.
func (c *Controller) IndexPathForRecord(id string) (results.IndexPath, bool) {
	return c.inner.IndexPathForRecord(id)
}

// SectionIndexTitles delegates to the wrapped controller.
func (c *Controller) SectionIndexTitles() []string { return c.inner.SectionIndexTitles() }

// ControllerWillChangeContent opens the bracket and forwards.
func (c *Controller) ControllerWillChangeContent(ctrl results.Controller) {
	c.pendingWillChange = true
	c.recorder.RecordCallback(CallbackWillChange)
	if d := c.delegate; d != nil {
		d.ControllerWillChangeContent(ctrl)
	}
}

// ControllerDidChangeContent forwards, then closes the bracket.
func (c *Controller) ControllerDidChangeContent(ctrl results.Controller) {
	c.recorder.RecordCallback(CallbackDidChange)
	if d := c.delegate; d != nil {
		d.ControllerDidChangeContent(ctrl)
	}
	c.pendingWillChange = false
}

// ControllerDidChangeRecord forwards the record change unmodified. If it
// arrived outside a bracket the unsafe signal is raised first; the callback
// is still forwarded so standard consumers keep receiving it.
func (c *Controller) ControllerDidChangeRecord(ctrl results.Controller, record results.Record, path results.IndexPath, kind results.ChangeType, newPath results.IndexPath) {
	if !c.pendingWillChange {
		c.reportUnsafe(ctrl)
	}
	c.recorder.RecordCallback(CallbackRecordChange)
	if d := c.delegate; d != nil {
		d.ControllerDidChangeRecord(ctrl, record, path, kind, newPath)
	}
}

// ControllerDidChangeSection behaves like ControllerDidChangeRecord for
// section-level changes.
func (c *Controller) ControllerDidChangeSection(ctrl results.Controller, section results.SectionInfo, index int, kind results.ChangeType) {
	if !c.pendingWillChange {
		c.reportUnsafe(ctrl)
	}
	c.recorder.RecordCallback(CallbackSectionChange)
	if d := c.delegate; d != nil {
		d.ControllerDidChangeSection(ctrl, section, index, kind)
	}
}

// SectionIndexTitle passes the title query through to the application
// delegate when it implements the capability. Title queries carry no
// structural meaning and do not participate in bracket tracking.
func (c *Controller) SectionIndexTitle(ctrl results.Controller, sectionName string) (string, bool) {
	c.recorder.RecordCallback(CallbackIndexTitle)
	if p, ok := c.delegate.(results.SectionIndexTitleProvider); ok {
		return p.SectionIndexTitle(ctrl, sectionName)
	}
	return "", false
}

// reportUnsafe raises the advisory signal once for the offending callback.
// Consumers without the capability receive nothing; there is no error path.
func (c *Controller) reportUnsafe(ctrl results.Controller) {
	c.recorder.RecordUnsafe()
	c.logger.Debug("structural change delivered outside will/did bracket")
	if obs, ok := c.delegate.(results.UnsafeChangeObserver); ok {
		obs.ControllerDidMakeUnsafeChanges(ctrl)
	}
}
