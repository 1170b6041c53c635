package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store/memstore"
)

// flakyCounters fails the first n increments
type flakyCounters struct {
	mu       sync.Mutex
	failures int
	calls    int
	seq      int64
}

func (f *flakyCounters) Next(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("connection reset")
	}
	f.seq++
	return f.seq, nil
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "TK-0001", Format(1))
	assert.Equal(t, "TK-0042", Format(42))
	assert.Equal(t, "TK-12345", Format(12345))
}

func TestNext_ConcurrentCallersGetUniqueIncreasingIDs(t *testing.T) {
	s := memstore.New()
	alloc := NewAllocator(s.Counters)

	const n = 200
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := alloc.Next(context.Background())
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	sort.Strings(ids)
	assert.Equal(t, "TK-0001", ids[0])
	assert.Equal(t, Format(n), ids[n-1])
}

func TestNext_RetriesTransientFailures(t *testing.T) {
	counters := &flakyCounters{failures: 2}
	alloc := NewAllocator(counters, WithRetry(5, time.Millisecond))

	id, err := alloc.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TK-0001", id)
	assert.Equal(t, 3, counters.calls)
}

func TestNext_ExhaustedNeverFabricates(t *testing.T) {
	counters := &flakyCounters{failures: 100}
	alloc := NewAllocator(counters, WithRetry(3, time.Millisecond))

	id, err := alloc.Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Empty(t, id)
	assert.Equal(t, 3, counters.calls)
}

func TestNext_StopsOnContextCancel(t *testing.T) {
	counters := &flakyCounters{failures: 100}
	alloc := NewAllocator(counters, WithRetry(5, time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := alloc.Next(ctx)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNext_MemoryCounterOutage(t *testing.T) {
	s := memstore.New()
	counters := s.Counters.(*memstore.Counters)
	counters.Fail = func(string) error { return errors.New("store offline") }

	_, err := NewAllocator(counters, WithRetry(2, 0)).Next(context.Background())
	assert.ErrorIs(t, err, ErrExhausted)

	counters.Fail = nil
	id, err := NewAllocator(counters).Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TK-0001", id)
}
