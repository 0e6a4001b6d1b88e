package results

// Delegate is the required base capability set a consumer implements to
// receive structural change notifications. The controller guarantees the
// bracketing contract: every per-record or per-section callback occurs between
// a ControllerWillChangeContent and its matching ControllerDidChangeContent.
type Delegate interface {
	// ControllerWillChangeContent marks the start of a change batch.
	ControllerWillChangeContent(c Controller)
	// ControllerDidChangeContent marks the end of a change batch.
	ControllerDidChangeContent(c Controller)
	// ControllerDidChangeRecord reports one record-level change. The path is
	// the record's position before the change, newPath its position after;
	// either may be NoIndexPath depending on kind (inserts carry only
	// newPath, deletes only path, moves and updates both).
	ControllerDidChangeRecord(c Controller, record Record, path IndexPath, kind ChangeType, newPath IndexPath)
	// ControllerDidChangeSection reports a section appearing or disappearing
	// at index.
	ControllerDidChangeSection(c Controller, section SectionInfo, index int, kind ChangeType)
}

// SectionIndexTitleProvider is an optional delegate capability that overrides
// the abbreviated title shown for a section. Probed at runtime; when absent
// the controller derives a default title. Controllers must invoke it without
// holding internal locks, so implementations may query the controller.
type SectionIndexTitleProvider interface {
	// SectionIndexTitle returns the title for sectionName and true, or false
	// to fall back to the controller default.
	SectionIndexTitle(c Controller, sectionName string) (string, bool)
}

// UnsafeChangeObserver is an optional delegate capability. It is notified when
// a structural change was delivered outside a will/did bracket, meaning the
// incremental callbacks of that batch cannot be trusted and the receiver
// should discard pending updates and reload from the controller instead.
// Probed at runtime; consumers that do not implement it receive no signal.
type UnsafeChangeObserver interface {
	ControllerDidMakeUnsafeChanges(c Controller)
}
