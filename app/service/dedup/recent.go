package dedup

import "sync"

// RecentIDs is a bounded set of gateway message ids. The oldest id is evicted
// once the capacity is reached.
type RecentIDs struct {
	mu    sync.Mutex
	limit int
	order []string
	set   map[string]struct{}
}

func NewRecentIDs(limit int) *RecentIDs {
	if limit < 1 {
		limit = 1
	}

	return &RecentIDs{
		limit: limit,
		order: make([]string, 0, limit),
		set:   make(map[string]struct{}, limit),
	}
}

// Add records id and reports whether it was already present.
func (r *RecentIDs) Add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.set[id]; ok {
		return true
	}

	if len(r.order) >= r.limit {
		delete(r.set, r.order[0])
		r.order = r.order[1:]
	}

	r.order = append(r.order, id)
	r.set[id] = struct{}{}

	return false
}

func (r *RecentIDs) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.set[id]
	return ok
}

func (r *RecentIDs) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.order)
}
