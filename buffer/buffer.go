// Package buffer implements the fixed-capacity LRU page pool between
// the file system and the block store. Writes are delayed: a written
// page is only marked dirty and reaches the store on eviction or an
// explicit flush.
package buffer

import (
	"container/list"
	"sync"
	"time"

	"github.com/oslab/go-simfs/blockdev"
	"github.com/oslab/go-simfs/common"
	"github.com/oslab/go-simfs/util"
	"github.com/oslab/go-simfs/util/stats"
)

const NPages = 16

// Page is one cache slot. A page is either free (invalid) or caches
// exactly one (filename, block) pair; at most one valid page maps to a
// given pair at any time.
type Page struct {
	ID          int
	Bnum        common.Bnum
	Filename    string
	Data        []byte
	Valid       bool
	Dirty       bool
	LoadTime    time.Time
	AccessTime  time.Time
	AccessCount uint64

	elem *list.Element // position in the recency list, nil when free
}

func (p *Page) clear() {
	p.Valid = false
	p.Dirty = false
	p.Bnum = common.NilBnum
	p.Filename = ""
	p.Data = make([]byte, common.BlockSize)
	p.AccessCount = 0
	p.elem = nil
}

type Manager struct {
	mu    *sync.Mutex
	store blockdev.Store
	pages []*Page
	lru   *list.List // front = least recently used

	hits       stats.Counter
	misses     stats.Counter
	writebacks stats.Counter
}

// MkManager builds a pool of npages free pages over the given store.
// The store reference is handed in by the file system owner.
func MkManager(store blockdev.Store, npages int) *Manager {
	mgr := &Manager{
		mu:    new(sync.Mutex),
		store: store,
		lru:   list.New(),
	}
	for i := 0; i < npages; i++ {
		p := &Page{ID: i}
		p.clear()
		mgr.pages = append(mgr.pages, p)
	}
	return mgr
}

func (mgr *Manager) findPage(filename string, bn common.Bnum) *Page {
	for _, p := range mgr.pages {
		if p.Valid && p.Bnum == bn && p.Filename == filename {
			return p
		}
	}
	return nil
}

func (mgr *Manager) freePage() *Page {
	for _, p := range mgr.pages {
		if !p.Valid {
			return p
		}
	}
	return nil
}

// touch moves a page to the most-recently-used position, inserting it
// if it is not on the recency list yet. Insertion order breaks ties,
// so equally-recent pages evict oldest-first.
func (mgr *Manager) touch(p *Page) {
	if p.elem != nil {
		mgr.lru.MoveToBack(p.elem)
	} else {
		p.elem = mgr.lru.PushBack(p)
	}
}

// evict writes a dirty victim back to the store, then clears its
// identity and validity.
func (mgr *Manager) evict(p *Page) error {
	if !p.Valid {
		return nil
	}
	if p.Dirty {
		util.DPrintf(1, "buffer: write back page %d -> block %d", p.ID, p.Bnum)
		if err := mgr.store.WriteBlock(p.Bnum, p.Data); err != nil {
			return err
		}
		mgr.writebacks.Inc()
	}
	if p.elem != nil {
		mgr.lru.Remove(p.elem)
	}
	p.clear()
	return nil
}

// load implements the cache lookup with mgr.mu held.
func (mgr *Manager) load(filename string, bn common.Bnum) (*Page, error) {
	if p := mgr.findPage(filename, bn); p != nil {
		mgr.hits.Inc()
		p.AccessTime = time.Now()
		p.AccessCount++
		mgr.touch(p)
		util.DPrintf(5, "buffer: hit page %d, block %d", p.ID, bn)
		return p, nil
	}

	mgr.misses.Inc()
	p := mgr.freePage()
	if p == nil {
		victim := mgr.lru.Front().Value.(*Page)
		util.DPrintf(1, "buffer: evict page %d (block %d)", victim.ID, victim.Bnum)
		if err := mgr.evict(victim); err != nil {
			return nil, err
		}
		p = victim
	}

	data, err := mgr.store.ReadBlock(bn)
	if err != nil {
		return nil, err
	}
	p.Bnum = bn
	p.Filename = filename
	p.Data = data
	p.Valid = true
	p.Dirty = false
	now := time.Now()
	p.LoadTime = now
	p.AccessTime = now
	p.AccessCount = 1
	mgr.touch(p)
	util.DPrintf(5, "buffer: load block %d -> page %d", bn, p.ID)
	return p, nil
}

// Load returns the page id and data for (filename, bn), pulling the
// block through from the store on a miss and evicting the
// least-recently-used page when the pool is full.
func (mgr *Manager) Load(filename string, bn common.Bnum) (int, []byte, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	p, err := mgr.load(filename, bn)
	if err != nil {
		return -1, nil, err
	}
	// callers get a copy; the page buffer stays private to the pool
	return p.ID, append([]byte(nil), p.Data...), nil
}

// Write overwrites the cached page and marks it dirty; the store is
// not touched until eviction or flush (delayed write).
func (mgr *Manager) Write(filename string, bn common.Bnum, data []byte) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	p, err := mgr.load(filename, bn)
	if err != nil {
		return err
	}
	blk := make([]byte, common.BlockSize)
	copy(blk, data)
	p.Data = blk
	p.Dirty = true
	p.AccessTime = time.Now()
	util.DPrintf(5, "buffer: dirty page %d, block %d", p.ID, bn)
	return nil
}

// FlushAll writes every dirty page back without evicting. Calling it
// twice in a row performs no write-backs the second time.
func (mgr *Manager) FlushAll() error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, p := range mgr.pages {
		if p.Valid && p.Dirty {
			if err := mgr.store.WriteBlock(p.Bnum, p.Data); err != nil {
				return err
			}
			p.Dirty = false
			mgr.writebacks.Inc()
		}
	}
	return nil
}

// FlushFile writes back the dirty pages owned by one file.
func (mgr *Manager) FlushFile(filename string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, p := range mgr.pages {
		if p.Valid && p.Dirty && p.Filename == filename {
			if err := mgr.store.WriteBlock(p.Bnum, p.Data); err != nil {
				return err
			}
			p.Dirty = false
			mgr.writebacks.Inc()
		}
	}
	return nil
}

// InvalidateFile writes back and evicts every page owned by the file.
// Called before delete or whole-file overwrite so no stale pages
// survive the remapping of blocks.
func (mgr *Manager) InvalidateFile(filename string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	for _, p := range mgr.pages {
		if p.Valid && p.Filename == filename {
			if err := mgr.evict(p); err != nil {
				return err
			}
		}
	}
	return nil
}
