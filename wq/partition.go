package wq

import "fmt"

// Chunk is one contiguous slice of a partitioned table.
type Chunk[T any] struct {
	Name string
	Rows []T
}

// Partition splits rows into consecutive chunks of at most rowCount rows
// each, preserving row order. Chunks are named by logger, year and their
// 1-based inclusive row range, so boundaries are reproducible for a fixed
// input. Only the last chunk may be shorter than rowCount.
func Partition[T any](logger string, year int, rows []T, rowCount int) ([]Chunk[T], error) {
	if rowCount <= 0 {
		return nil, &ValidationError{Reason: fmt.Sprintf("row count must be positive, got %d", rowCount)}
	}

	var chunks []Chunk[T]
	for start := 0; start < len(rows); start += rowCount {
		end := min(start+rowCount, len(rows))
		chunks = append(chunks, Chunk[T]{
			Name: fmt.Sprintf("%s_%d_rows_%d_to_%d", logger, year, start+1, end),
			Rows: rows[start:end],
		})
	}
	return chunks, nil
}
