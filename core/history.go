package core

import "sync"

const defaultHandoffHistoryCapacity = 100

// handoffHistory is a fixed-capacity ring buffer of completed granted
// windows, newest first on read. The driver appends from the host loop
// thread while Recent may be called from anywhere, hence the mutex.
type handoffHistory struct {
	mu    sync.Mutex
	items []HandoffRecord
	head  int
	count int
}

func newHandoffHistory(capacity int) handoffHistory {
	if capacity < 1 {
		capacity = defaultHandoffHistoryCapacity
	}
	return handoffHistory{items: make([]HandoffRecord, capacity)}
}

func (h *handoffHistory) Add(record HandoffRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

func (h *handoffHistory) Recent(limit int) []HandoffRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]HandoffRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *handoffHistory) Last() (HandoffRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return HandoffRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}
