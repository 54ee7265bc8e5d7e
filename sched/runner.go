package sched

import (
	"time"

	"github.com/oslab/go-simfs/ipc"
)

// CommandRunner wraps file-level commands into PCBs: each command is
// submitted to the scheduler at a priority class, its body serialized
// under a shared monitor, and its outcome delivered through a bounded
// results pipe.
type CommandRunner struct {
	sched   *Scheduler
	results *ipc.Pipe
	gate    *ipc.CondVar
}

type CommandResult struct {
	Cmd    string      `json:"cmd"`
	Result interface{} `json:"result,omitempty"`
	Err    string      `json:"error,omitempty"`
	Time   time.Time   `json:"time"`
}

func MkCommandRunner(s *Scheduler, pipes *ipc.PipeManager, syncs *ipc.SyncManager) *CommandRunner {
	return &CommandRunner{
		sched:   s,
		results: pipes.CreatePipe("results", 100),
		gate:    syncs.CreateCond("fs_gate"),
	}
}

// Execute schedules fn as a process and returns its pid. The result is
// also written to the results pipe, dropped if the pipe stays full.
func (cr *CommandRunner) Execute(name string, prio Priority, fn func() (interface{}, error)) int {
	task := func(args ...interface{}) (interface{}, error) {
		cr.gate.Acquire()
		result, err := fn()
		cr.gate.Release()

		res := CommandResult{Cmd: name, Result: result, Time: time.Now()}
		if err != nil {
			res.Err = err.Error()
		}
		cr.results.Write(res, time.Second)
		return result, err
	}
	pcb := cr.sched.CreateProcess(name, task, nil, prio)
	cr.sched.Submit(pcb)
	return pcb.Pid
}

// Result pops the next command outcome from the results pipe.
func (cr *CommandRunner) Result(timeout time.Duration) (CommandResult, bool) {
	v, ok := cr.results.Read(timeout)
	if !ok {
		return CommandResult{}, false
	}
	return v.(CommandResult), true
}
