package automod

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// WindowStore keeps the sliding window of recent message timestamps per key.
type WindowStore interface {
	// Observe appends now to the window of key, prunes every timestamp t with
	// now-t >= timeframe and returns how many survive.
	Observe(ctx context.Context, key string, now time.Time, timeframe time.Duration) (int, error)
}

// WindowKey builds the (user, guild) key of a spam window.
func WindowKey(guildID, userID string) string {
	return guildID + "/" + userID
}

type window struct {
	mu     sync.Mutex
	stamps []time.Time
	// removed is set under mu once Sweep dropped the window from the store
	removed bool
}

// prune drops expired timestamps and keeps at most limit of the newest ones.
func (w *window) prune(now time.Time, timeframe time.Duration, limit int) {
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if now.Sub(t) < timeframe {
			kept = append(kept, t)
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[len(kept)-limit:]
	}
	w.stamps = kept
}

// MemoryWindowStore keeps windows in process memory. Both the number of
// windows (LRU capacity) and the timestamps per window (limit) are bounded.
type MemoryWindowStore struct {
	windows *lru.Cache[string, *window]
	limit   int
}

var _ WindowStore = (*MemoryWindowStore)(nil)

// NewMemoryWindowStore creates a store holding at most capacity windows of at
// most limit timestamps each. A limit of threshold+1 is enough to tell whether
// a window exceeds threshold.
func NewMemoryWindowStore(capacity, limit int) (*MemoryWindowStore, error) {
	cache, err := lru.New[string, *window](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryWindowStore{
		windows: cache,
		limit:   limit,
	}, nil
}

func (s *MemoryWindowStore) get(key string) *window {
	if w, ok := s.windows.Get(key); ok {
		return w
	}
	w := &window{}
	if prev, ok, _ := s.windows.PeekOrAdd(key, w); ok {
		return prev
	}
	return w
}

func (s *MemoryWindowStore) Observe(ctx context.Context, key string, now time.Time, timeframe time.Duration) (int, error) {
	for {
		// a window swept between get and lock is gone; start over with a fresh one
		if n, ok := s.observe(s.get(key), now, timeframe); ok {
			return n, nil
		}
	}
}

func (s *MemoryWindowStore) observe(w *window, now time.Time, timeframe time.Duration) (int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.removed {
		return 0, false
	}
	w.stamps = append(w.stamps, now)
	w.prune(now, timeframe, s.limit)
	return len(w.stamps), true
}

// Sweep prunes every window and drops the ones left empty, returning how many
// were dropped.
func (s *MemoryWindowStore) Sweep(now time.Time, timeframe time.Duration) int {
	removed := 0
	for _, key := range s.windows.Keys() {
		w, ok := s.windows.Peek(key)
		if !ok {
			continue
		}
		w.mu.Lock()
		w.prune(now, timeframe, s.limit)
		// the key may have been evicted and refilled since Peek
		if cur, ok := s.windows.Peek(key); ok && cur == w && len(w.stamps) == 0 {
			w.removed = true
			s.windows.Remove(key)
			removed++
		}
		w.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked windows.
func (s *MemoryWindowStore) Len() int {
	return s.windows.Len()
}
