package health

import "sync"

// Capacity is the number of records retained by a Ring created with NewRing(0).
const Capacity = 100

// Ring retains the most recent collection events, evicting the oldest first.
type Ring struct {
	mu      sync.RWMutex
	records []Record
	start   int
	size    int
}

// NewRing creates a ring holding up to capacity records. A non-positive
// capacity selects Capacity.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Ring{records: make([]Record, capacity)}
}

// Add appends a record, dropping the oldest one when the ring is full.
func (r *Ring) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	capacity := len(r.records)
	if r.size < capacity {
		r.records[(r.start+r.size)%capacity] = rec
		r.size++
		return
	}
	r.records[r.start] = rec
	r.start = (r.start + 1) % capacity
}

// Records returns all retained records, oldest first.
func (r *Ring) Records() []Record {
	return r.Last(0)
}

// Last returns up to n of the most recent records, oldest first.
// n <= 0 returns everything.
func (r *Ring) Last(n int) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]Record, n)
	capacity := len(r.records)
	skip := r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.records[(r.start+skip+i)%capacity]
	}
	return out
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Cap returns the maximum number of retained records.
func (r *Ring) Cap() int {
	return len(r.records)
}
