package ipc

import (
	"sync"
	"time"
)

// Pipe is a named bounded FIFO guarded by a monitor: one lock and two
// wait conditions (not-full, not-empty). Write blocks while full,
// Read blocks while empty; Close wakes all waiters, after which Write
// fails and Read drains whatever is left before reporting no data.
type Pipe struct {
	name     string
	mu       *sync.Mutex
	notFull  *CondVar
	notEmpty *CondVar
	buf      []interface{}
	capacity int
	closed   bool

	writeCount uint64
	readCount  uint64
}

type PipeStats struct {
	Name       string `json:"name"`
	Capacity   int    `json:"capacity"`
	Length     int    `json:"current_size"`
	WriteCount uint64 `json:"write_count"`
	ReadCount  uint64 `json:"read_count"`
	Closed     bool   `json:"closed"`
}

func MkPipe(name string, capacity int) *Pipe {
	mu := new(sync.Mutex)
	return &Pipe{
		name:     name,
		mu:       mu,
		notFull:  MkCondVarWith(name+".not_full", mu),
		notEmpty: MkCondVarWith(name+".not_empty", mu),
		capacity: capacity,
	}
}

// Write appends v, blocking while the pipe is full; d <= 0 blocks
// without a deadline. Returns false on timeout or closed pipe.
func (p *Pipe) Write(v interface{}, d time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	for len(p.buf) >= p.capacity {
		if !p.notFull.WaitTimeout(d) {
			return false
		}
		if p.closed {
			return false
		}
	}
	p.buf = append(p.buf, v)
	p.writeCount++
	p.notEmpty.Signal()
	return true
}

// Read pops the head, blocking while the pipe is empty; d <= 0 blocks
// without a deadline. Returns ok=false on timeout, or once a closed
// pipe has drained.
func (p *Pipe) Read(d time.Duration) (interface{}, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.buf) == 0 {
		if p.closed {
			return nil, false
		}
		if !p.notEmpty.WaitTimeout(d) {
			return nil, false
		}
	}
	v := p.buf[0]
	p.buf = p.buf[1:]
	p.readCount++
	p.notFull.Signal()
	return v, true
}

func (p *Pipe) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.notEmpty.Broadcast()
	p.notFull.Broadcast()
}

func (p *Pipe) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buf)
}

func (p *Pipe) Stats() PipeStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PipeStats{
		Name:       p.name,
		Capacity:   p.capacity,
		Length:     len(p.buf),
		WriteCount: p.writeCount,
		ReadCount:  p.readCount,
		Closed:     p.closed,
	}
}
