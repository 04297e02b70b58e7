package potlai

import (
	"context"
	"sync"
	"time"
)

// TranslateBatch translates entries and returns them in input order, each in
// a terminal status. A failing entry gets the error sentinel and never stops
// the others.
func (s *Session) TranslateBatch(ctx context.Context, entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	if len(out) == 0 {
		return out
	}

	var mu sync.Mutex
	done := 0
	work := func(i int) {
		s.translateEntry(ctx, &out[i])
		if s.o.progress != nil {
			mu.Lock()
			done++
			s.o.progress(done, len(out))
			mu.Unlock()
		}
	}

	start := time.Now()
	switch s.o.dispatch {
	case DispatchChunked:
		for _, r := range chunkRanges(len(out), s.o.batchSize) {
			runGroup(r[0], r[1], 0, work)
		}
	default:
		runGroup(0, len(out), s.o.maxConcurrent, work)
	}

	s.log.Info().
		Int("entries", len(out)).
		Str("dispatch", string(s.o.dispatch)).
		Dur("elapsed", time.Since(start)).
		Msg("batch finished")
	return out
}

// chunkRanges splits [0, n) into consecutive [start, end) ranges of at most
// size elements.
func chunkRanges(n, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	ranges := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// runGroup runs work for every index in [start, end) concurrently, with at
// most limit in flight when limit > 0, and waits for all of them.
func runGroup(start, end, limit int, work func(i int)) {
	var wg sync.WaitGroup
	var sem chan struct{}
	if limit > 0 {
		sem = make(chan struct{}, limit)
	}

	for i := start; i < end; i++ {
		if sem != nil {
			sem <- struct{}{}
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if sem != nil {
				defer func() { <-sem }()
			}
			work(i)
		}(i)
	}
	wg.Wait()
}
