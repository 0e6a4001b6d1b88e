package safety

// Callback kind labels passed to ObservationRecorder implementations.
const (
	CallbackWillChange    = "will_change"
	CallbackDidChange     = "did_change"
	CallbackRecordChange  = "record_change"
	CallbackSectionChange = "section_change"
	CallbackIndexTitle    = "index_title"
)

// ObservationRecorder receives counts of forwarded callbacks and unsafe-batch
// reports. Implementations must be cheap: they are invoked inline on the
// notification path.
type ObservationRecorder interface {
	// RecordCallback counts one forwarded callback of the given kind.
	RecordCallback(kind string)
	// RecordUnsafe counts one unsafe-change report.
	RecordUnsafe()
}

type noopRecorder struct{}

func (noopRecorder) RecordCallback(string) {}
func (noopRecorder) RecordUnsafe()         {}
