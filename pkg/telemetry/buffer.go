package telemetry

import (
	"sort"
	"sync"
)

// Appender accepts captured records. Producers only ever see this side of a
// Buffer.
type Appender interface {
	Append(Record)
}

// Buffer is an append-only record log shared by concurrent producers. It is
// emptied only by DrainSorted.
type Buffer struct {
	mu      sync.Mutex
	records []Record
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Append adds a record. It is safe to call from any number of goroutines and
// holds the lock only for the slice append.
func (b *Buffer) Append(record Record) {
	b.mu.Lock()
	b.records = append(b.records, record)
	b.mu.Unlock()
}

// Len reports how many records are currently held.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// DrainSorted detaches every held record, leaves the buffer empty, and returns
// the records ordered by timestamp. Records with equal timestamps keep their
// capture order. Sorting happens after the lock is released.
func (b *Buffer) DrainSorted() []Record {
	b.mu.Lock()
	snapshot := b.records
	b.records = nil
	b.mu.Unlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].timestamp.Before(snapshot[j].timestamp)
	})
	return snapshot
}
