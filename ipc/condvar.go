// Package ipc provides the concurrency substrate: condition-variable
// monitors, bounded pipes, and their registries.
package ipc

import (
	"sync"
	"time"
)

// CondVar is a monitor: an explicit lock plus a wait condition with
// wait/signal/broadcast counters for introspection. Callers must hold
// the lock around Wait and Signal (monitor discipline).
//
// The stdlib sync.Cond has no timed wait, so the monitor keeps its own
// queue of waiter channels; a signal closes the head channel, a
// broadcast closes them all.
type CondVar struct {
	name    string
	mu      *sync.Mutex
	waiters []chan struct{}

	waitCount      uint64
	signalCount    uint64
	broadcastCount uint64
}

type CondStats struct {
	Name       string `json:"name"`
	Waits      uint64 `json:"wait_count"`
	Signals    uint64 `json:"signal_count"`
	Broadcasts uint64 `json:"broadcast_count"`
}

// MkCondVar builds a monitor owning a fresh lock.
func MkCondVar(name string) *CondVar {
	return MkCondVarWith(name, new(sync.Mutex))
}

// MkCondVarWith builds a monitor over a shared lock, so several
// conditions can guard one structure (the pipe uses two).
func MkCondVarWith(name string, mu *sync.Mutex) *CondVar {
	return &CondVar{name: name, mu: mu}
}

func (cv *CondVar) Acquire() {
	cv.mu.Lock()
}

func (cv *CondVar) Release() {
	cv.mu.Unlock()
}

// Wait atomically releases the lock, blocks until signaled, and
// reacquires the lock.
func (cv *CondVar) Wait() {
	cv.WaitTimeout(0)
}

// WaitTimeout is Wait with a deadline; d <= 0 waits forever. Returns
// false if the deadline elapsed without a signal.
func (cv *CondVar) WaitTimeout(d time.Duration) bool {
	ch := make(chan struct{})
	cv.waiters = append(cv.waiters, ch)
	cv.waitCount++
	cv.mu.Unlock()

	if d <= 0 {
		<-ch
		cv.mu.Lock()
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ch:
		cv.mu.Lock()
		return true
	case <-timer.C:
		cv.mu.Lock()
		// A signal may have picked this waiter between the timeout
		// firing and the lock reacquire; if so the wakeup counts.
		for i, w := range cv.waiters {
			if w == ch {
				cv.waiters = append(cv.waiters[:i], cv.waiters[i+1:]...)
				return false
			}
		}
		return true
	}
}

// Signal wakes one waiter in FIFO order.
func (cv *CondVar) Signal() {
	cv.signalCount++
	if len(cv.waiters) > 0 {
		close(cv.waiters[0])
		cv.waiters = cv.waiters[1:]
	}
}

// Broadcast wakes every waiter.
func (cv *CondVar) Broadcast() {
	cv.broadcastCount++
	for _, ch := range cv.waiters {
		close(ch)
	}
	cv.waiters = nil
}

func (cv *CondVar) Stats() CondStats {
	cv.mu.Lock()
	defer cv.mu.Unlock()
	return CondStats{
		Name:       cv.name,
		Waits:      cv.waitCount,
		Signals:    cv.signalCount,
		Broadcasts: cv.broadcastCount,
	}
}
