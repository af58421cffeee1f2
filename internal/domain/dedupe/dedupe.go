// Package dedupe suppresses repeated deliveries of one upstream event.
//
// The realtime feed sends the same event more than once when a character
// matches several subscription filters. Fingerprints are remembered in a
// bounded LRU so memory stays flat on an unbounded stream.
package dedupe

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMaxSize = 4096

// Deduper records seen event fingerprints.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

type lruDeduper struct {
	maxSize int
	seen    *lru.Cache[string, struct{}]
}

// NewLRUDeduper creates a bounded deduper with configuration options.
func NewLRUDeduper(opts ...Option) Deduper {
	d := &lruDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	// New only fails for a non-positive size, which WithMaxSize rules out.
	d.seen, _ = lru.New[string, struct{}](d.maxSize)
	return d
}

func (d *lruDeduper) SeenAndRecord(_ context.Context, id string) bool {
	seen, _ := d.seen.ContainsOrAdd(id, struct{}{})
	return seen
}

func (d *lruDeduper) Unrecord(_ context.Context, id string) {
	d.seen.Remove(id)
}

func (d *lruDeduper) Size() int64 {
	return int64(d.seen.Len())
}
