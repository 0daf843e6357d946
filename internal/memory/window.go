package memory

import (
	"sync"
	"time"
)

// Window is the in-process short-term layer: a bounded per-owner list of
// recent turns with a TTL. Expired turns are evicted lazily on access;
// there is no background sweep goroutine.
type Window struct {
	mu    sync.Mutex
	size  int
	ttl   time.Duration
	turns map[string][]Turn
	now   func() time.Time // test seam
}

// NewWindow creates a window holding up to size turns per owner, each
// living at most ttl. Size and ttl must be positive.
func NewWindow(size int, ttl time.Duration) *Window {
	if size <= 0 {
		size = 30
	}
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &Window{
		size:  size,
		ttl:   ttl,
		turns: make(map[string][]Turn),
		now:   time.Now,
	}
}

// Append adds a turn for the owner, evicting the oldest if full.
func (w *Window) Append(owner, role, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.evictLocked(owner)
	list = append(list, Turn{
		Owner:     owner,
		Role:      role,
		Content:   content,
		CreatedAt: w.now(),
	})
	if len(list) > w.size {
		list = list[len(list)-w.size:]
	}
	w.turns[owner] = list
}

// Recent returns the owner's live turns, oldest first.
func (w *Window) Recent(owner string) []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.evictLocked(owner)
	out := make([]Turn, len(list))
	copy(out, list)
	return out
}

// Clear drops the owner's window.
func (w *Window) Clear(owner string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.turns, owner)
}

// evictLocked drops expired turns for owner and returns the live slice.
// Turns are appended in time order, so the live suffix is contiguous.
func (w *Window) evictLocked(owner string) []Turn {
	list := w.turns[owner]
	cutoff := w.now().Add(-w.ttl)
	start := 0
	for start < len(list) && list[start].CreatedAt.Before(cutoff) {
		start++
	}
	if start > 0 {
		list = list[start:]
		if len(list) == 0 {
			delete(w.turns, owner)
			return nil
		}
		w.turns[owner] = list
	}
	return list
}
