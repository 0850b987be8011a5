package wq

import "slices"

// SelectIndicators drops rows whose indicator is not in the requested set.
// An empty or nil set retains everything.
func SelectIndicators(rows []Row, indicators []Indicator) []Row {
	if len(indicators) == 0 {
		return rows
	}

	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if slices.Contains(indicators, row.Indicator) {
			out = append(out, row)
		}
	}
	return out
}

// FilterFlags retains only rows whose QC flag is a member of tags.
func FilterFlags(rows []Row, tags []int) []Row {
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if slices.Contains(tags, row.Flag) {
			out = append(out, row)
		}
	}
	return out
}
