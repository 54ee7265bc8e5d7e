// Package sched implements the cooperative priority scheduler: three
// FIFO ready queues dispatched strictly High before Medium before Low,
// each task body running to completion before the next pick. There is
// no preemption; a high-priority arrival waits for the current task to
// finish.
package sched

import (
	"fmt"
	"sync"
	"time"

	"github.com/oslab/go-simfs/util"
)

type Priority int

const (
	High   Priority = 1
	Medium Priority = 2
	Low    Priority = 3
)

func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

type State int

const (
	StateNew State = iota
	StateReady
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Task is the closure a PCB carries.
type Task func(args ...interface{}) (interface{}, error)

// PCB is the scheduler's unit of bookkeeping. PCBs transition
// New -> Ready -> Running -> Terminated and are never reused.
type PCB struct {
	Pid        int
	Name       string
	Prio       Priority
	State      State
	CreateTime time.Time
	StartTime  time.Time
	EndTime    time.Time
	CPUTime    time.Duration
	Result     interface{}
	Err        error

	task Task
	args []interface{}
}

type ProcInfo struct {
	Pid      int    `json:"pid"`
	Name     string `json:"name"`
	Priority string `json:"priority"`
	State    string `json:"state"`
	CPUTime  string `json:"cpu_time"`
	Result   string `json:"result,omitempty"`
}

type QueueStatus struct {
	High           []int `json:"high"`
	Medium         []int `json:"medium"`
	Low            []int `json:"low"`
	Running        int   `json:"running"` // pid, or -1
	TotalScheduled int   `json:"total_scheduled"`
}

type Scheduler struct {
	mu   *sync.Mutex
	cond *sync.Cond

	queues  map[Priority][]*PCB
	procs   map[int]*PCB
	running *PCB

	pidCounter     int
	totalScheduled int
	started        bool
	stopped        bool
	done           chan struct{}
}

func MkScheduler() *Scheduler {
	mu := new(sync.Mutex)
	return &Scheduler{
		mu:   mu,
		cond: sync.NewCond(mu),
		queues: map[Priority][]*PCB{
			High:   nil,
			Medium: nil,
			Low:    nil,
		},
		procs:      make(map[int]*PCB),
		pidCounter: 1000,
		done:       make(chan struct{}),
	}
}

func (s *Scheduler) CreateProcess(name string, task Task, args []interface{}, prio Priority) *PCB {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pidCounter++
	pcb := &PCB{
		Pid:        s.pidCounter,
		Name:       name,
		Prio:       prio,
		State:      StateNew,
		CreateTime: time.Now(),
		task:       task,
		args:       args,
	}
	s.procs[pcb.Pid] = pcb
	util.DPrintf(1, "sched: create pid=%d name=%q prio=%v", pcb.Pid, name, prio)
	return pcb
}

// Submit appends the PCB to its class's ready queue and wakes the
// scheduler loop.
func (s *Scheduler) Submit(pcb *PCB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.procs[pcb.Pid]; !ok {
		s.procs[pcb.Pid] = pcb
	}
	pcb.State = StateReady
	s.queues[pcb.Prio] = append(s.queues[pcb.Prio], pcb)
	s.cond.Signal()
}

// selectNext pops the head of the highest non-empty priority class.
// Caller holds s.mu.
func (s *Scheduler) selectNext() *PCB {
	for _, prio := range []Priority{High, Medium, Low} {
		if q := s.queues[prio]; len(q) > 0 {
			s.queues[prio] = q[1:]
			return q[0]
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	go s.loop()
}

// Stop wakes the loop and waits for it to exit; the task in flight, if
// any, runs to completion first.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.cond.Broadcast()
	s.mu.Unlock()
	<-s.done
}

func (s *Scheduler) loop() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for !s.stopped && s.emptyQueues() {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		pcb := s.selectNext()
		s.totalScheduled++
		s.running = pcb
		s.mu.Unlock()

		s.run(pcb)

		s.mu.Lock()
		s.running = nil
		s.mu.Unlock()
	}
}

func (s *Scheduler) emptyQueues() bool {
	return len(s.queues[High]) == 0 && len(s.queues[Medium]) == 0 && len(s.queues[Low]) == 0
}

// run executes a task body to completion. Failures (including panics)
// land in the PCB result and never crash the loop. PCB fields are
// mutated under s.mu so status snapshots see consistent state; the
// task body itself runs unlocked.
func (s *Scheduler) run(pcb *PCB) {
	s.mu.Lock()
	pcb.State = StateRunning
	pcb.StartTime = time.Now()
	s.mu.Unlock()
	util.DPrintf(1, "sched: run pid=%d name=%q", pcb.Pid, pcb.Name)

	var result interface{}
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panic: %v", r)
			}
		}()
		result, err = pcb.task(pcb.args...)
	}()

	s.mu.Lock()
	pcb.Result = result
	pcb.Err = err
	pcb.EndTime = time.Now()
	pcb.CPUTime = pcb.EndTime.Sub(pcb.StartTime)
	pcb.State = StateTerminated
	s.mu.Unlock()
	util.DPrintf(1, "sched: done pid=%d cpu=%v err=%v", pcb.Pid, pcb.CPUTime, err)
}

func (s *Scheduler) QueueStatus() QueueStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	pids := func(q []*PCB) []int {
		out := make([]int, 0, len(q))
		for _, p := range q {
			out = append(out, p.Pid)
		}
		return out
	}
	running := -1
	if s.running != nil {
		running = s.running.Pid
	}
	return QueueStatus{
		High:           pids(s.queues[High]),
		Medium:         pids(s.queues[Medium]),
		Low:            pids(s.queues[Low]),
		Running:        running,
		TotalScheduled: s.totalScheduled,
	}
}

func (s *Scheduler) Processes() []ProcInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ProcInfo
	for _, p := range s.procs {
		info := ProcInfo{
			Pid:      p.Pid,
			Name:     p.Name,
			Priority: p.Prio.String(),
			State:    p.State.String(),
			CPUTime:  p.CPUTime.String(),
		}
		if p.Err != nil {
			info.Result = p.Err.Error()
		} else if p.Result != nil {
			info.Result = fmt.Sprintf("%.50v", p.Result)
		}
		out = append(out, info)
	}
	return out
}
