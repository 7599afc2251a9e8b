package mediagroup

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type albumCollector struct {
	mu     sync.Mutex
	albums []Album
}

func (c *albumCollector) add(a Album) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.albums = append(c.albums, a)
}

func (c *albumCollector) snapshot() []Album {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Album(nil), c.albums...)
}

func TestAggregatorFlushesOnce(t *testing.T) {
	collector := &albumCollector{}
	agg := New(Options{Debounce: 30 * time.Millisecond, OnFlush: collector.add})

	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1", FileID: "a"})
	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1", FileID: "b"})
	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1", FileID: "c"})

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)

	album := collector.snapshot()[0]
	assert.Equal(t, int64(1), album.ChatID)
	assert.Equal(t, int64(7), album.UserID)
	assert.Equal(t, []string{"a", "b", "c"}, album.FileIDs)

	// No second flush for the same group.
	time.Sleep(80 * time.Millisecond)
	assert.Len(t, collector.snapshot(), 1)
}

func TestAggregatorDebounceExtends(t *testing.T) {
	collector := &albumCollector{}
	agg := New(Options{Debounce: 60 * time.Millisecond, OnFlush: collector.add})

	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1", FileID: "a"})
	time.Sleep(35 * time.Millisecond)
	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1", FileID: "b"})
	time.Sleep(35 * time.Millisecond)

	// The second photo reset the timer, so nothing has flushed yet.
	assert.Empty(t, collector.snapshot())

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, collector.snapshot()[0].FileIDs)
}

func TestAggregatorSeparatesGroups(t *testing.T) {
	collector := &albumCollector{}
	agg := New(Options{Debounce: 30 * time.Millisecond, OnFlush: collector.add})

	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1", FileID: "a"})
	agg.Add(Item{ChatID: 2, UserID: 7, MediaGroupID: "g1", FileID: "b"})

	require.Eventually(t, func() bool {
		return len(collector.snapshot()) == 2
	}, time.Second, 10*time.Millisecond)

	for _, album := range collector.snapshot() {
		assert.Len(t, album.FileIDs, 1)
	}
}

func TestAggregatorIgnoresIncompleteItems(t *testing.T) {
	collector := &albumCollector{}
	agg := New(Options{Debounce: 20 * time.Millisecond, OnFlush: collector.add})

	agg.Add(Item{ChatID: 1, UserID: 7, FileID: "a"})
	agg.Add(Item{ChatID: 1, UserID: 7, MediaGroupID: "g1"})

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, collector.snapshot())
}
