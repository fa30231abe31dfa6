package domain

import (
	m "auditscope.dev/pkg/auditscope/internal/model"
)

// Classify partitions change records into kept and dropped by the filter,
// keeping input order within each group. Totals sum the kept records only.
func Classify(records []m.ChangeRecord, filter *Filter) m.Classification {
	if filter == nil {
		filter = NewFilter(m.FilterRules{})
	}

	result := m.Classification{
		Kept:    []m.ChangeRecord{},
		Dropped: []m.ChangeRecord{},
	}

	for _, record := range records {
		if !filter.IsIncluded(string(record.Path)) {
			result.Dropped = append(result.Dropped, record)
			continue
		}

		result.Kept = append(result.Kept, record)
		result.Totals.Files++
		result.Totals.Additions += record.Additions
		result.Totals.Deletions += record.Deletions
	}

	return result
}
