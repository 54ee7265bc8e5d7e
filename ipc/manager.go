package ipc

import "sync"

// PipeManager is a registry of named pipes.
type PipeManager struct {
	mu    sync.Mutex
	pipes map[string]*Pipe
}

func MkPipeManager() *PipeManager {
	return &PipeManager{pipes: make(map[string]*Pipe)}
}

// CreatePipe returns the existing pipe under name, or makes one.
func (pm *PipeManager) CreatePipe(name string, capacity int) *Pipe {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if p, ok := pm.pipes[name]; ok {
		return p
	}
	p := MkPipe(name, capacity)
	pm.pipes[name] = p
	return p
}

func (pm *PipeManager) GetPipe(name string) *Pipe {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.pipes[name]
}

// DeletePipe closes and unregisters a pipe.
func (pm *PipeManager) DeletePipe(name string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if p, ok := pm.pipes[name]; ok {
		p.Close()
		delete(pm.pipes, name)
	}
}

func (pm *PipeManager) List() []PipeStats {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	var out []PipeStats
	for _, p := range pm.pipes {
		out = append(out, p.Stats())
	}
	return out
}

// SyncManager is a registry of named condition variables and
// counting semaphores.
type SyncManager struct {
	mu    sync.Mutex
	conds map[string]*CondVar
	sems  map[string]*Semaphore
}

func MkSyncManager() *SyncManager {
	return &SyncManager{
		conds: make(map[string]*CondVar),
		sems:  make(map[string]*Semaphore),
	}
}

func (sm *SyncManager) CreateCond(name string) *CondVar {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if cv, ok := sm.conds[name]; ok {
		return cv
	}
	cv := MkCondVar(name)
	sm.conds[name] = cv
	return cv
}

func (sm *SyncManager) GetCond(name string) *CondVar {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.conds[name]
}

func (sm *SyncManager) CreateSemaphore(name string, count int) *Semaphore {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sems[name]; ok {
		return s
	}
	s := MkSemaphore(name, count)
	sm.sems[name] = s
	return s
}

func (sm *SyncManager) ListConds() []CondStats {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	var out []CondStats
	for _, cv := range sm.conds {
		out = append(out, cv.Stats())
	}
	return out
}

// Semaphore is a counting semaphore built on the monitor.
type Semaphore struct {
	cv    *CondVar
	count int
}

func MkSemaphore(name string, count int) *Semaphore {
	return &Semaphore{cv: MkCondVar(name), count: count}
}

func (s *Semaphore) Acquire() {
	s.cv.Acquire()
	defer s.cv.Release()
	for s.count == 0 {
		s.cv.Wait()
	}
	s.count--
}

func (s *Semaphore) Release() {
	s.cv.Acquire()
	defer s.cv.Release()
	s.count++
	s.cv.Signal()
}
