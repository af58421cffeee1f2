// Package weapons holds the set of item ids that count as weapons.
package weapons

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/okian/blurber/pkg/logger"
	"github.com/okian/blurber/pkg/metrics"
)

// Fetcher loads the current weapon ids from an external directory.
type Fetcher interface {
	FetchWeaponIDs(ctx context.Context) ([]uint64, error)
}

// Set is a read-mostly set of weapon item ids. Readers see an immutable
// snapshot that is swapped atomically on reload.
type Set struct {
	ids atomic.Pointer[map[uint64]struct{}]
}

// NewSet creates a set holding ids.
func NewSet(ids ...uint64) *Set {
	s := &Set{}
	s.Replace(ids)
	return s
}

// Contains reports whether itemID is a weapon.
func (s *Set) Contains(itemID uint64) bool {
	_, ok := (*s.ids.Load())[itemID]
	return ok
}

// Len returns the number of weapon ids.
func (s *Set) Len() int { return len(*s.ids.Load()) }

// Replace swaps the whole set.
func (s *Set) Replace(ids []uint64) {
	m := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	s.ids.Store(&m)
	metrics.UpdateWeaponSetSize(len(m))
}

// Parse reads one id per line. Blank lines and lines starting with # are
// skipped.
func Parse(r io.Reader) ([]uint64, error) {
	var ids []uint64
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := strconv.ParseUint(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		ids = append(ids, id)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read weapon ids: %w", err)
	}
	return ids, nil
}

// LoadFile replaces the set with the ids in path.
func (s *Set) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open weapons file: %w", err)
	}
	defer f.Close()

	ids, err := Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	s.Replace(ids)
	return nil
}

// Refresh replaces the set with what f returns. On error the previous
// snapshot is kept.
func (s *Set) Refresh(ctx context.Context, f Fetcher) error {
	ids, err := f.FetchWeaponIDs(ctx)
	if err != nil {
		return fmt.Errorf("fetch weapon ids: %w", err)
	}
	s.Replace(ids)
	return nil
}

// Keep refreshes the set from f every interval until ctx ends.
func (s *Set) Keep(ctx context.Context, f Fetcher, interval time.Duration) {
	log := logger.Get().Named("weapons")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx, f); err != nil {
				log.Warn(ctx, "weapon refresh failed", logger.Error(err))
				continue
			}
			log.Debug(ctx, "weapon set refreshed", logger.Int("size", s.Len()))
		}
	}
}
