package health

import "time"

// Status is the outcome of one collection attempt.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Record is one collection event.
type Record struct {
	Timestamp time.Time     `json:"timestamp"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Snapshot  string        `json:"snapshot,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// Success returns a record for a collection that wrote snapshot.
func Success(at time.Time, snapshot string, took time.Duration) Record {
	return Record{Timestamp: at, Status: StatusSuccess, Snapshot: snapshot, Duration: took}
}

// Failure returns a record for a failed collection.
func Failure(at time.Time, err error, took time.Duration) Record {
	r := Record{Timestamp: at, Status: StatusError, Duration: took}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
