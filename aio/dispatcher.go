package aio

import (
	"container/heap"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oslab/go-simfs/buffer"
	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/fs"
	"github.com/oslab/go-simfs/inode"
	"github.com/oslab/go-simfs/util"
	"github.com/oslab/go-simfs/util/stats"
)

// permission bits for files created through the async layer
const fileDefaultPerm = inode.DefaultPerm

const (
	// how long the dispatch loop sleeps when the queue stays empty
	idleWait = 100 * time.Millisecond
	// polling interval for WaitFor
	pollWait = 50 * time.Millisecond

	DefaultWorkers = 4
)

// Dispatcher owns the request table and the priority queue. One
// dispatch goroutine pops submissions and hands them to a bounded pool
// of workers, each executing against the file system and the buffer
// cache.
type Dispatcher struct {
	fsys  *fs.FileSystem
	cache *buffer.Manager

	mu       sync.Mutex
	requests map[uint64]*Request
	queue    reqHeap
	nextID   uint64
	running  bool

	notify chan struct{}
	stop   chan struct{}
	work   chan *Request
	wg     sync.WaitGroup

	completed    stats.Counter
	failed       stats.Counter
	bytesRead    stats.Counter
	bytesWritten stats.Counter
	opStats      [4]stats.Op // indexed by Kind
}

func MkDispatcher(fsys *fs.FileSystem, cache *buffer.Manager, workers int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	d := &Dispatcher{
		fsys:     fsys,
		cache:    cache,
		requests: make(map[uint64]*Request),
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		work:     make(chan *Request, workers),
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Start launches the dispatch loop. Requests submitted before Start
// sit in the priority queue and drain in (priority, id) order.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	d.running = true
	d.wg.Add(1)
	go d.dispatchLoop()
	util.DPrintf(0, "aio: dispatcher started")
}

// Stop shuts down the dispatch loop and the workers; requests already
// handed to a worker run to completion.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()
	close(d.stop)
	d.wg.Wait()
	util.DPrintf(0, "aio: dispatcher stopped")
}

func (d *Dispatcher) submit(req *Request) uint64 {
	d.mu.Lock()
	d.nextID++
	req.ID = d.nextID
	req.CreateTime = time.Now()
	d.requests[req.ID] = req
	heap.Push(&d.queue, queued{priority: req.Priority, id: req.ID})
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
	util.DPrintf(1, "aio: submit %v id=%d file=%q prio=%d",
		req.Kind, req.ID, req.Filename, req.Priority)
	return req.ID
}

func (d *Dispatcher) SubmitRead(name string, blockIdx int, cb Callback, prio int) uint64 {
	return d.submit(&Request{
		Kind: KindRead, Filename: name, BlockIndex: blockIdx,
		callback: cb, Priority: prio,
	})
}

func (d *Dispatcher) SubmitWrite(name string, blockIdx int, data []byte, cb Callback, prio int) uint64 {
	return d.submit(&Request{
		Kind: KindWrite, Filename: name, BlockIndex: blockIdx, Data: data,
		callback: cb, Priority: prio,
	})
}

func (d *Dispatcher) SubmitCreate(name string, content []byte, cb Callback, prio int) uint64 {
	return d.submit(&Request{
		Kind: KindCreate, Filename: name, BlockIndex: -1, Data: content,
		callback: cb, Priority: prio,
	})
}

func (d *Dispatcher) SubmitDelete(name string, cb Callback, prio int) uint64 {
	return d.submit(&Request{
		Kind: KindDelete, Filename: name, BlockIndex: -1,
		callback: cb, Priority: prio,
	})
}

func (d *Dispatcher) pop() *Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.queue.Len() > 0 {
		item := heap.Pop(&d.queue).(queued)
		if req, ok := d.requests[item.id]; ok && req.Status() == StatusPending {
			return req
		}
	}
	return nil
}

func (d *Dispatcher) dispatchLoop() {
	defer d.wg.Done()
	defer close(d.work)
	for {
		req := d.pop()
		if req == nil {
			select {
			case <-d.notify:
			case <-time.After(idleWait):
			case <-d.stop:
				return
			}
			continue
		}
		select {
		case d.work <- req:
		case <-d.stop:
			return
		}
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for req := range d.work {
		d.execute(req)
	}
}

func (d *Dispatcher) execute(req *Request) {
	if !req.claim() {
		return
	}
	req.StartTime = time.Now()

	var err error
	switch req.Kind {
	case KindRead:
		err = d.doRead(req)
	case KindWrite:
		err = d.doWrite(req)
	case KindCreate:
		err = d.doCreate(req)
	case KindDelete:
		err = d.doDelete(req)
	}

	req.EndTime = time.Now()
	d.opStats[req.Kind].Record(req.StartTime)
	if err != nil {
		req.Err = err
		req.setStatus(StatusFailed)
		d.failed.Inc()
		util.DPrintf(1, "aio: request %d failed: %v", req.ID, err)
	} else {
		req.setStatus(StatusCompleted)
		d.completed.Inc()
	}

	if req.callback != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					util.DPrintf(0, "aio: callback for request %d panicked: %v", req.ID, r)
				}
			}()
			req.callback(req)
		}()
	}
}

// doRead walks the file's blocks through the buffer cache, holding an
// advisory reference so the file cannot be deleted out from under the
// read (other readers proceed freely).
func (d *Dispatcher) doRead(req *Request) error {
	if err := d.fsys.Acquire(req.Filename); err != nil {
		return err
	}
	defer d.fsys.Release(req.Filename)

	blks, size, err := d.fsys.BlockList(req.Filename)
	if err != nil {
		return err
	}
	if req.BlockIndex >= 0 {
		if req.BlockIndex >= len(blks) {
			return fmt.Errorf("%w: %d (file has %d blocks)",
				fs.ErrIndexRange, req.BlockIndex, len(blks))
		}
		_, data, err := d.cache.Load(req.Filename, blks[req.BlockIndex])
		if err != nil {
			return err
		}
		req.Result = data
		d.bytesRead.Add(uint64(len(data)))
		return nil
	}

	content := make([]byte, 0, len(blks)*int(common.BlockSize))
	for _, bn := range blks {
		_, data, err := d.cache.Load(req.Filename, bn)
		if err != nil {
			return err
		}
		content = append(content, data...)
	}
	if uint32(len(content)) > size {
		content = content[:size]
	}
	req.Result = content
	d.bytesRead.Add(uint64(len(content)))
	return nil
}

// doWrite writes one block through the cache (delayed write), or
// overwrites the whole file: invalidate stale pages, delegate the
// physical write to the inode/bitmap layer, then pre-warm the cache
// with the new blocks.
func (d *Dispatcher) doWrite(req *Request) error {
	if req.BlockIndex >= 0 {
		if err := d.fsys.Acquire(req.Filename); err != nil {
			return err
		}
		defer d.fsys.Release(req.Filename)

		blks, _, err := d.fsys.BlockList(req.Filename)
		if err != nil {
			return err
		}
		if req.BlockIndex >= len(blks) {
			return fmt.Errorf("%w: %d (file has %d blocks)",
				fs.ErrIndexRange, req.BlockIndex, len(blks))
		}
		if err := d.cache.Write(req.Filename, blks[req.BlockIndex], req.Data); err != nil {
			return err
		}
		newSize := uint32(req.BlockIndex)*uint32(common.BlockSize) + uint32(len(req.Data))
		if err := d.fsys.GrowSize(req.Filename, newSize); err != nil {
			return err
		}
		d.bytesWritten.Add(uint64(len(req.Data)))
		return nil
	}

	if err := d.cache.InvalidateFile(req.Filename); err != nil {
		return err
	}
	if err := d.fsys.Write(req.Filename, req.Data); err != nil {
		return err
	}
	d.bytesWritten.Add(uint64(len(req.Data)))
	return d.prewarm(req.Filename)
}

// doCreate creates the file and pre-warms the cache with its blocks.
func (d *Dispatcher) doCreate(req *Request) error {
	if err := d.fsys.Create(req.Filename, req.Data, fileDefaultPerm); err != nil {
		return err
	}
	d.bytesWritten.Add(uint64(len(req.Data)))
	return d.prewarm(req.Filename)
}

// doDelete drops the file's cached pages before freeing its blocks, so
// no page keeps caching a block that may be reallocated.
func (d *Dispatcher) doDelete(req *Request) error {
	if err := d.cache.InvalidateFile(req.Filename); err != nil {
		return err
	}
	return d.fsys.Delete(req.Filename)
}

func (d *Dispatcher) prewarm(name string) error {
	blks, _, err := d.fsys.BlockList(name)
	if err != nil {
		return err
	}
	for _, bn := range blks {
		if _, _, err := d.cache.Load(name, bn); err != nil {
			return err
		}
	}
	return nil
}

// WaitFor polls the request until it reaches a terminal status or the
// timeout elapses; true only on Completed.
func (d *Dispatcher) WaitFor(id uint64, timeout time.Duration) bool {
	d.mu.Lock()
	req, ok := d.requests[id]
	d.mu.Unlock()
	if !ok {
		return false
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if st := req.Status(); st.Terminal() {
			return st == StatusCompleted
		}
		time.Sleep(pollWait)
	}
	return req.Status() == StatusCompleted
}

func (d *Dispatcher) RequestStatus(id uint64) (ReqInfo, bool) {
	d.mu.Lock()
	req, ok := d.requests[id]
	d.mu.Unlock()
	if !ok {
		return ReqInfo{}, false
	}
	return req.info(), true
}

// RequestResult returns the payload of a completed read.
func (d *Dispatcher) RequestResult(id uint64) ([]byte, error) {
	d.mu.Lock()
	req, ok := d.requests[id]
	d.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: request %d", fs.ErrNotFound, id)
	}
	switch req.Status() {
	case StatusCompleted:
		return req.Result, nil
	case StatusFailed:
		return nil, req.Err
	default:
		return nil, fmt.Errorf("request %d not finished", id)
	}
}

// Pending lists requests that have not reached a terminal status.
func (d *Dispatcher) Pending() []ReqInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []ReqInfo
	for _, req := range d.requests {
		if !req.Status().Terminal() {
			out = append(out, req.info())
		}
	}
	return out
}

type Stats struct {
	Total        int    `json:"total_requests"`
	Completed    uint64 `json:"completed"`
	Failed       uint64 `json:"failed"`
	BytesRead    uint64 `json:"total_bytes_read"`
	BytesWritten uint64 `json:"total_bytes_written"`
}

func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	total := len(d.requests)
	d.mu.Unlock()
	return Stats{
		Total:        total,
		Completed:    d.completed.Load(),
		Failed:       d.failed.Load(),
		BytesRead:    d.bytesRead.Load(),
		BytesWritten: d.bytesWritten.Load(),
	}
}

// WriteOpStats dumps per-operation latency counters as a table.
func (d *Dispatcher) WriteOpStats(w io.Writer) {
	names := []string{
		KindRead.String(), KindWrite.String(),
		KindCreate.String(), KindDelete.String(),
	}
	stats.WriteTable(names, d.opStats[:], w)
}
