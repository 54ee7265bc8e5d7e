package buffer

import (
	"time"
)

// PageStatus is the externally visible state of one cache slot.
type PageStatus struct {
	ID          int    `json:"id"`
	Valid       bool   `json:"valid"`
	Dirty       bool   `json:"dirty"`
	Block       int32  `json:"block"`
	Filename    string `json:"filename,omitempty"`
	AccessCount uint64 `json:"access_count"`
	AgeMs       int64  `json:"age_ms"`
	IdleMs      int64  `json:"idle_ms"`
	LruPosition int    `json:"lru_position"` // 0 = next eviction victim, -1 = free
}

// CacheStats summarizes pool behavior since startup.
type CacheStats struct {
	Pages      int     `json:"pages"`
	Valid      int     `json:"valid"`
	Dirty      int     `json:"dirty"`
	Hits       uint64  `json:"hits"`
	Misses     uint64  `json:"misses"`
	Writebacks uint64  `json:"writebacks"`
	HitRate    float64 `json:"hit_rate"`
}

// Status returns a consistent snapshot of every page, ordered by slot id.
func (mgr *Manager) Status() []PageStatus {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	pos := make(map[int]int, mgr.lru.Len())
	i := 0
	for e := mgr.lru.Front(); e != nil; e = e.Next() {
		pos[e.Value.(*Page).ID] = i
		i++
	}

	now := time.Now()
	out := make([]PageStatus, 0, len(mgr.pages))
	for _, p := range mgr.pages {
		ps := PageStatus{
			ID:          p.ID,
			Valid:       p.Valid,
			Dirty:       p.Dirty,
			Block:       int32(p.Bnum),
			Filename:    p.Filename,
			AccessCount: p.AccessCount,
			LruPosition: -1,
		}
		if p.Valid {
			ps.AgeMs = now.Sub(p.LoadTime).Milliseconds()
			ps.IdleMs = now.Sub(p.AccessTime).Milliseconds()
			if lp, ok := pos[p.ID]; ok {
				ps.LruPosition = lp
			}
		}
		out = append(out, ps)
	}
	return out
}

// Stats reports hit/miss/write-back counters and current occupancy.
func (mgr *Manager) Stats() CacheStats {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	st := CacheStats{
		Pages:      len(mgr.pages),
		Hits:       mgr.hits.Load(),
		Misses:     mgr.misses.Load(),
		Writebacks: mgr.writebacks.Load(),
	}
	for _, p := range mgr.pages {
		if p.Valid {
			st.Valid++
			if p.Dirty {
				st.Dirty++
			}
		}
	}
	if total := st.Hits + st.Misses; total > 0 {
		st.HitRate = float64(st.Hits) / float64(total)
	}
	return st
}
