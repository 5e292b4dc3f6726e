package web

import (
	"sync"

	"proclens/models"
)

// History is the append-only chat log for the life of the process
type History struct {
	mu      sync.Mutex
	entries []models.QueryAnswer
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Append(entry models.QueryAnswer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, entry)
}

// All returns a copy in the order entries were added
func (h *History) All() []models.QueryAnswer {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.QueryAnswer, len(h.entries))
	copy(out, h.entries)
	return out
}

// NewestFirst returns a copy, most recent entry first
func (h *History) NewestFirst() []models.QueryAnswer {
	out := h.All()
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
