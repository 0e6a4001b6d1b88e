package view

import "liveview/pkg/results"

var _ results.SectionInfo = Section{}

// Section is an immutable snapshot of one group of records.
type Section struct {
	name       string
	indexTitle string
	records    []results.Record
}

// Name returns the section key shared by every record in the section.
func (s Section) Name() string { return s.name }

// IndexTitle returns the short title used in a section index.
func (s Section) IndexTitle() string { return s.indexTitle }

// NumRecords returns the number of records in the section.
func (s Section) NumRecords() int { return len(s.records) }

// Records returns a copy of the section contents in row order.
func (s Section) Records() []results.Record {
	out := make([]results.Record, len(s.records))
	for i, record := range s.records {
		out[i] = record.Clone()
	}
	return out
}
