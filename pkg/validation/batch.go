package validation

import "fmt"

// Batch is an ordered slice of records. Batches bound memory and progress
// reporting granularity; the scheduler still works record by record.
type Batch struct {
	Index   int
	Records []Record
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}

// Split partitions records into batches of at most maxBatchSize, preserving order.
// It returns ceil(len(records)/maxBatchSize) batches; the last may be smaller.
func Split(records []Record, maxBatchSize int) ([]Batch, error) {
	if maxBatchSize < 1 {
		return nil, fmt.Errorf("%w: max batch size must be >= 1 (got %d)", ErrConfiguration, maxBatchSize)
	}

	count := (len(records) + maxBatchSize - 1) / maxBatchSize
	batches := make([]Batch, 0, count)
	for start := 0; start < len(records); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(records) {
			end = len(records)
		}
		// Full slice expression so appends on one batch cannot bleed into the next.
		batches = append(batches, Batch{
			Index:   len(batches),
			Records: records[start:end:end],
		})
	}

	return batches, nil
}

// Flatten concatenates batches in index order.
func Flatten(batches []Batch) []Record {
	total := 0
	for _, b := range batches {
		total += b.Len()
	}
	records := make([]Record, 0, total)
	for _, b := range batches {
		records = append(records, b.Records...)
	}
	return records
}
