// Package feed implements the live-query primitive of the diary app: a
// per-user broadcaster of full collection snapshots.
//
// THE SNAPSHOT MODEL:
// Subscribers never receive diffs or individual change events. Every
// delivery is the user's ENTIRE entry list, freshly loaded, replacing
// whatever the subscriber held before. That makes the consumer trivially
// correct — its state is always "the last snapshot received" — and it makes
// dropping intermediate snapshots safe, since a newer snapshot subsumes an
// older one entirely.
//
// WHO USES THIS:
//   - the SSE handler: each connected client is one subscriber
//   - the entry service: publishes after every successful save/delete
//
// CONCURRENCY:
// A plain mutex around a map of subscriber channels. Channels have capacity
// 1 and publishes are latest-wins: if a subscriber hasn't drained the
// previous snapshot yet, we replace it rather than block the publisher.
// A slow SSE consumer can therefore skip intermediate states but always
// converges on the current one.
package feed

import (
	"sync"

	"github.com/mshiraki/hibi/internal/model"
)

// Feed broadcasts entry-collection snapshots to per-user subscribers.
// The zero value is not usable; call New.
type Feed struct {
	mu   sync.Mutex
	subs map[string]map[int]chan []model.Entry // userID → subscriber id → channel
	next int
}

func New() *Feed {
	return &Feed{
		subs: make(map[string]map[int]chan []model.Entry),
	}
}

// Subscribe registers interest in userID's collection and returns the
// delivery channel plus a cancel function.
//
// The cancel function is idempotent and closes the channel, so a consumer
// ranging over it terminates cleanly. Deterministic release matters here:
// an SSE handler defers cancel() so a disconnecting browser can never leak
// a subscriber entry.
//
// Note Subscribe does NOT deliver an initial snapshot itself — the caller
// loads the current collection and treats it as snapshot zero. Keeping the
// feed free of storage concerns means it never returns errors.
func (f *Feed) Subscribe(userID string) (<-chan []model.Entry, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan []model.Entry, 1)
	if f.subs[userID] == nil {
		f.subs[userID] = make(map[int]chan []model.Entry)
	}
	id := f.next
	f.next++
	f.subs[userID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs[userID], id)
			if len(f.subs[userID]) == 0 {
				delete(f.subs, userID)
			}
			close(ch)
		})
	}

	return ch, cancel
}

// Publish delivers a snapshot to every current subscriber of userID.
//
// LATEST-WINS DELIVERY:
// The non-blocking send pattern below (try send; on full buffer, drain one
// and retry) keeps publishers from ever waiting on consumers. Because each
// channel holds at most one pending snapshot, what a consumer reads next is
// always the newest state it hasn't seen.
func (f *Feed) Publish(userID string, entries []model.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs[userID] {
		select {
		case ch <- entries:
		default:
			// Buffer full: discard the stale pending snapshot, then deliver.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- entries:
			default:
			}
		}
	}
}

// SubscriberCount reports how many subscribers userID currently has.
// Used by tests and the /healthz-style logging in the server.
func (f *Feed) SubscriberCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[userID])
}
