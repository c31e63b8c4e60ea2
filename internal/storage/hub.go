package storage

import "sync"

const (
	tableExpenses = "expenses"
	tableSettings = "settings"
)

// changeHub tracks a version per table and wakes subscribers after each
// committed write. Wake-ups coalesce: a subscriber that has not consumed the
// previous signal gets a single pending one.
type changeHub struct {
	mu       sync.Mutex
	versions map[string]uint64
	subs     map[string]map[uint64]chan struct{}
	nextID   uint64
}

func newChangeHub() *changeHub {
	return &changeHub{
		versions: make(map[string]uint64),
		subs:     make(map[string]map[uint64]chan struct{}),
	}
}

func (h *changeHub) subscribe(table string) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan struct{}, 1)
	if h.subs[table] == nil {
		h.subs[table] = make(map[uint64]chan struct{})
	}
	h.subs[table][id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[table], id)
	}
}

func (h *changeHub) publish(table string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.versions[table]++
	for _, ch := range h.subs[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *changeHub) version(table string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.versions[table]
}

func (h *changeHub) subscribers(table string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[table])
}
