package orchestrator

import "sync"

// recentSet remembers the last few session ids handed to resolution. The
// oldest id is evicted once the set is full.
type recentSet struct {
	mu    sync.Mutex
	limit int
	order []uint64
	seen  map[uint64]struct{}
}

func newRecentSet(limit int) *recentSet {
	if limit <= 0 {
		limit = 50
	}
	return &recentSet{limit: limit, seen: make(map[uint64]struct{}, limit)}
}

func (r *recentSet) Has(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[id]
	return ok
}

func (r *recentSet) Add(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return
	}
	if len(r.order) >= r.limit {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, oldest)
	}
	r.order = append(r.order, id)
	r.seen[id] = struct{}{}
}

func (r *recentSet) Remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; !ok {
		return
	}
	delete(r.seen, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *recentSet) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
