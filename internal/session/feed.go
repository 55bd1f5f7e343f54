package session

import (
	"sync"
	"time"

	"github.com/DoyleJ11/seabattle-client/pkg/types"
)

// Feed is the bounded, human-readable event log shown next to the boards.
// Sequence numbers start at 1 and keep counting after old entries fall off.
type Feed struct {
	mu      sync.Mutex
	entries []types.LogEntry
	last    int
	size    int
	now     func() time.Time
}

func NewFeed(size int, now func() time.Time) *Feed {
	if size <= 0 {
		size = 200
	}
	if now == nil {
		now = time.Now
	}
	return &Feed{size: size, now: now}
}

func (f *Feed) Add(kind, text string) types.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last++
	e := types.LogEntry{Seq: f.last, Time: f.now(), Kind: kind, Text: text}
	f.entries = append(f.entries, e)
	if over := len(f.entries) - f.size; over > 0 {
		f.entries = append(f.entries[:0:0], f.entries[over:]...)
	}
	return e
}

// Since returns the retained entries after seq and the cursor for the next call.
func (f *Feed) Since(seq int) ([]types.LogEntry, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.LogEntry
	for _, e := range f.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out, f.last
}
