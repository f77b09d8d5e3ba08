package navigation

import "sync"

// History is the address boundary: the browser's session history or
// anything that behaves like it.
type History interface {
	// Current returns the address being shown.
	Current() string
	// Push adds path after the current entry, dropping any forward entries.
	Push(path string)
	// Replace overwrites the current entry.
	Replace(path string)
}

// MemoryHistory is an in-process History with back and forward, used for
// server-held sessions and tests.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []string
	cursor  int
}

// NewMemoryHistory starts a history at initial, or at "/" when empty.
func NewMemoryHistory(initial string) *MemoryHistory {
	if initial == "" {
		initial = "/"
	}
	return &MemoryHistory{entries: []string{initial}}
}

func (h *MemoryHistory) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.cursor]
}

func (h *MemoryHistory) Push(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.cursor+1], path)
	h.cursor++
}

func (h *MemoryHistory) Replace(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.cursor] = path
}

// Back moves the cursor one entry back and returns the address now shown.
func (h *MemoryHistory) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return h.entries[0], false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Forward moves the cursor one entry forward.
func (h *MemoryHistory) Forward() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == len(h.entries)-1 {
		return h.entries[h.cursor], false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Entries returns a copy of the history and the cursor position.
func (h *MemoryHistory) Entries() ([]string, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...), h.cursor
}
