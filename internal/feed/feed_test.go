package feed

import (
	"testing"
	"time"

	"github.com/mshiraki/hibi/internal/model"
)

func snapshot(ids ...string) []model.Entry {
	entries := make([]model.Entry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, model.Entry{ID: id})
	}
	return entries
}

func TestSubscribePublish(t *testing.T) {
	f := New()

	ch, cancel := f.Subscribe("u1")
	defer cancel()

	f.Publish("u1", snapshot("a", "b"))

	select {
	case got := <-ch:
		if len(got) != 2 || got[0].ID != "a" {
			t.Errorf("received snapshot %v, want [a b]", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestPublish_ScopedToUser(t *testing.T) {
	f := New()

	ch1, cancel1 := f.Subscribe("u1")
	defer cancel1()
	ch2, cancel2 := f.Subscribe("u2")
	defer cancel2()

	f.Publish("u1", snapshot("a"))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("u1 subscriber did not receive its snapshot")
	}

	select {
	case got := <-ch2:
		t.Errorf("u2 subscriber received u1's snapshot: %v", got)
	default:
	}
}

func TestPublish_LatestWins(t *testing.T) {
	f := New()

	ch, cancel := f.Subscribe("u1")
	defer cancel()

	// Three publishes with nobody reading: only the newest should remain.
	f.Publish("u1", snapshot("v1"))
	f.Publish("u1", snapshot("v2"))
	f.Publish("u1", snapshot("v3"))

	select {
	case got := <-ch:
		if len(got) != 1 || got[0].ID != "v3" {
			t.Errorf("pending snapshot = %v, want the newest (v3)", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestCancel_ReleasesSubscription(t *testing.T) {
	f := New()

	ch, cancel := f.Subscribe("u1")
	if f.SubscriberCount("u1") != 1 {
		t.Fatalf("SubscriberCount = %d, want 1", f.SubscriberCount("u1"))
	}

	cancel()

	if f.SubscriberCount("u1") != 0 {
		t.Errorf("SubscriberCount after cancel = %d, want 0", f.SubscriberCount("u1"))
	}

	// The channel is closed so consumers ranging over it terminate.
	if _, ok := <-ch; ok {
		t.Error("channel still open after cancel")
	}

	// Cancel is idempotent — a second call must not panic.
	cancel()

	// Publishing to a user with no subscribers is a no-op, not a panic.
	f.Publish("u1", snapshot("a"))
}
