// Package aio turns file operations into queued, prioritized,
// worker-executed requests with callback completion.
package aio

import (
	"sync/atomic"
	"time"
)

type Kind int

const (
	KindRead Kind = iota
	KindWrite
	KindCreate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindRead:
		return "read"
	case KindWrite:
		return "write"
	case KindCreate:
		return "create"
	case KindDelete:
		return "delete"
	}
	return "unknown"
}

type Status int32

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Callback delivers the completed (or failed) request to the
// submitter. Panics inside a callback are swallowed and logged; they
// never fail the request.
type Callback func(*Request)

// Request is one unit of asynchronous file work. It is created at
// submission and from then on mutated only by the worker executing it;
// everyone else reads through the atomic status.
type Request struct {
	ID         uint64
	Kind       Kind
	Filename   string
	BlockIndex int // -1 means the whole file
	Data       []byte
	Priority   int

	// outcome: exactly one of Result(+Completed) or Err(+Failed) once
	// the status is terminal
	Result []byte
	Err    error

	CreateTime time.Time
	StartTime  time.Time
	EndTime    time.Time

	status   int32
	callback Callback
}

func (r *Request) Status() Status {
	return Status(atomic.LoadInt32(&r.status))
}

func (r *Request) setStatus(s Status) {
	atomic.StoreInt32(&r.status, int32(s))
}

// claim transitions Pending -> Running, failing if another worker got
// there first.
func (r *Request) claim() bool {
	return atomic.CompareAndSwapInt32(&r.status,
		int32(StatusPending), int32(StatusRunning))
}

type ReqInfo struct {
	ID       uint64 `json:"request_id"`
	Kind     string `json:"io_type"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Priority int    `json:"priority"`
	Error    string `json:"error,omitempty"`
	Elapsed  string `json:"elapsed,omitempty"`
}

func (r *Request) info() ReqInfo {
	st := r.Status()
	info := ReqInfo{
		ID:       r.ID,
		Kind:     r.Kind.String(),
		Filename: r.Filename,
		Status:   st.String(),
		Priority: r.Priority,
	}
	if st.Terminal() {
		if r.Err != nil {
			info.Error = r.Err.Error()
		}
		info.Elapsed = r.EndTime.Sub(r.StartTime).String()
	}
	return info
}
