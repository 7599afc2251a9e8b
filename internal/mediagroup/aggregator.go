package mediagroup

import (
	"fmt"
	"sync"
	"time"
)

// Item is one photo out of a Telegram media group (album).
type Item struct {
	ChatID       int64
	UserID       int64
	MediaGroupID string
	FileID       string
}

// Album is a completed media group: every photo the user sent in one burst.
// The handler picks one of the candidates as the reference face.
type Album struct {
	ChatID  int64
	UserID  int64
	FileIDs []string
}

type Options struct {
	Debounce time.Duration
	OnFlush  func(Album)
}

// Aggregator collects album photos, which Telegram delivers as individual
// updates, and flushes the whole album once no new photo arrives within the
// debounce window.
type Aggregator struct {
	mu       sync.Mutex
	debounce time.Duration
	onFlush  func(Album)
	pending  map[string]*pendingAlbum
}

type pendingAlbum struct {
	album Album
	timer *time.Timer
}

func New(opts Options) *Aggregator {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 1200 * time.Millisecond
	}

	return &Aggregator{
		debounce: debounce,
		onFlush:  opts.OnFlush,
		pending:  make(map[string]*pendingAlbum),
	}
}

func (a *Aggregator) Add(item Item) {
	if item.MediaGroupID == "" || item.FileID == "" {
		return
	}

	key := fmt.Sprintf("%d:%s", item.ChatID, item.MediaGroupID)

	a.mu.Lock()
	defer a.mu.Unlock()

	pa, ok := a.pending[key]
	if !ok {
		pa = &pendingAlbum{
			album: Album{
				ChatID:  item.ChatID,
				UserID:  item.UserID,
				FileIDs: []string{item.FileID},
			},
		}
		a.pending[key] = pa
	} else {
		pa.album.FileIDs = append(pa.album.FileIDs, item.FileID)
	}

	if pa.timer != nil {
		pa.timer.Stop()
	}
	pa.timer = time.AfterFunc(a.debounce, func() {
		a.flush(key)
	})
}

func (a *Aggregator) flush(key string) {
	a.mu.Lock()
	pa, ok := a.pending[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, key)
	album := pa.album
	onFlush := a.onFlush
	a.mu.Unlock()

	if onFlush != nil {
		onFlush(album)
	}
}
