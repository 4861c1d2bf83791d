package cluster

import (
	"context"
	"fmt"
	"sync"
)

// catchUpLookback is how far below the highest seen Seq each refresh re-reads.
// Sequence numbers are taken at insert time, so a concurrent writer can commit
// a lower Seq after a higher one was already loaded.
const catchUpLookback = 64

// EntrySource loads stored (embedding, theme id) pairs with Seq > afterSeq,
// ordered by Seq.
type EntrySource interface {
	ThemeEntriesSince(ctx context.Context, afterSeq int64) ([]Entry, error)
}

// Index keeps the committed corpus in memory. Every Snapshot first pulls the
// entries committed since the previous one, including those written by other
// processes, so matching always sees the current store.
type Index struct {
	source EntrySource

	mu      sync.Mutex
	entries []Entry
	seen    map[int64]struct{}
	lastSeq int64
}

func NewIndex(source EntrySource) *Index {
	return &Index{source: source, seen: make(map[int64]struct{})}
}

// Snapshot catches up with the source and returns the committed entries in
// load order. The returned slice must not be modified.
func (x *Index) Snapshot(ctx context.Context) ([]Entry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.source != nil {
		after := max(0, x.lastSeq-catchUpLookback)
		fresh, err := x.source.ThemeEntriesSince(ctx, after)
		if err != nil {
			return nil, fmt.Errorf("load theme entries: %w", err)
		}
		for _, entry := range fresh {
			if _, ok := x.seen[entry.Seq]; ok {
				continue
			}
			x.seen[entry.Seq] = struct{}{}
			x.entries = append(x.entries, entry)
			x.lastSeq = max(x.lastSeq, entry.Seq)
		}
	}
	return x.entries[:len(x.entries):len(x.entries)], nil
}
