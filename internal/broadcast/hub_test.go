package broadcast

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
)

type fakeConsumer struct {
	id    string
	codec string

	mu       sync.Mutex
	offerErr error
	received [][]byte
	closed   int
}

func newFakeConsumer(id, codec string) *fakeConsumer {
	return &fakeConsumer{id: id, codec: codec}
}

func (f *fakeConsumer) ID() string    { return f.id }
func (f *fakeConsumer) Codec() string { return f.codec }

func (f *fakeConsumer) Offer(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offerErr != nil {
		return f.offerErr
	}
	f.received = append(f.received, append([]byte(nil), data...))
	return nil
}

func (f *fakeConsumer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeConsumer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offerErr = err
}

func (f *fakeConsumer) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.received...)
}

func (f *fakeConsumer) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func TestHubAddRejectsDuplicateID(t *testing.T) {
	hub := NewHub(nil)
	if err := hub.Add(newFakeConsumer("a", wire.CodecJSON)); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := hub.Add(newFakeConsumer("a", wire.CodecJSON)); !errors.Is(err, ErrDuplicateConsumer) {
		t.Fatalf("duplicate Add error = %v", err)
	}
	if hub.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", hub.Len())
	}
	if !hub.Remove("a") || hub.Remove("a") {
		t.Fatalf("Remove should succeed exactly once")
	}
}

func TestHubBroadcastUsesEachConsumersCodec(t *testing.T) {
	hub := NewHub(nil)
	js := newFakeConsumer("json", wire.CodecJSON)
	mp := newFakeConsumer("msgpack", wire.CodecMsgPack)
	for _, c := range []*fakeConsumer{js, mp} {
		if err := hub.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	msg := wire.UpdateMessage(wire.Update{Tick: 9, Azimuth: 45, Aircraft: []wire.Contact{}})
	res := hub.Broadcast(context.Background(), msg)
	if res != (Result{Delivered: 2}) {
		t.Fatalf("Broadcast result = %+v", res)
	}

	for _, tc := range []struct {
		consumer *fakeConsumer
		codec    wire.Codec
	}{{js, wire.JSON}, {mp, wire.MsgPack}} {
		got := tc.consumer.messages()
		if len(got) != 1 {
			t.Fatalf("%s received %d messages", tc.consumer.id, len(got))
		}
		typ, u, err := wire.Decode[wire.Update](tc.codec, got[0])
		if err != nil {
			t.Fatalf("%s decode: %v", tc.consumer.id, err)
		}
		if typ != wire.TypeUpdate || u.Tick != 9 || u.Azimuth != 45 {
			t.Fatalf("%s decoded %q %+v", tc.consumer.id, typ, u)
		}
	}
}

func TestHubBroadcastSkipsBusyAndDropsFailed(t *testing.T) {
	hub := NewHub(nil)
	ok := newFakeConsumer("ok", wire.CodecJSON)
	busy := newFakeConsumer("busy", wire.CodecJSON)
	busy.setErr(ErrConsumerBusy)
	gone := newFakeConsumer("gone", wire.CodecJSON)
	gone.setErr(ErrConsumerClosed)
	broken := newFakeConsumer("broken", wire.CodecMsgPack)
	broken.setErr(errors.New("write: broken pipe"))
	for _, c := range []*fakeConsumer{ok, busy, gone, broken} {
		if err := hub.Add(c); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	res := hub.Broadcast(context.Background(), wire.UpdateMessage(wire.Update{Aircraft: []wire.Contact{}}))
	if res != (Result{Delivered: 1, Skipped: 1, Dropped: 2}) {
		t.Fatalf("Broadcast result = %+v", res)
	}
	if got := hub.IDs(); len(got) != 2 || got[0] != "busy" || got[1] != "ok" {
		t.Fatalf("remaining consumers = %v", got)
	}
	if gone.closeCount() != 1 || broken.closeCount() != 1 || busy.closeCount() != 0 {
		t.Fatalf("close counts gone=%d broken=%d busy=%d", gone.closeCount(), broken.closeCount(), busy.closeCount())
	}

	// The busy consumer receives the next tick once it drains.
	busy.setErr(nil)
	res = hub.Broadcast(context.Background(), wire.UpdateMessage(wire.Update{Tick: 2, Aircraft: []wire.Contact{}}))
	if res != (Result{Delivered: 2}) {
		t.Fatalf("second Broadcast result = %+v", res)
	}
	if len(busy.messages()) != 1 {
		t.Fatalf("busy consumer should have one message after draining")
	}
}

func TestHubBroadcastDropsUnknownCodec(t *testing.T) {
	hub := NewHub(nil)
	odd := newFakeConsumer("odd", "xml")
	if err := hub.Add(odd); err != nil {
		t.Fatalf("Add: %v", err)
	}
	res := hub.Broadcast(context.Background(), wire.ErrorMessage("x"))
	if res.Dropped != 1 || hub.Len() != 0 || odd.closeCount() != 1 {
		t.Fatalf("result %+v len %d closed %d", res, hub.Len(), odd.closeCount())
	}
}

func TestHubBroadcastWithNoConsumers(t *testing.T) {
	if res := NewHub(nil).Broadcast(context.Background(), wire.ErrorMessage("x")); res != (Result{}) {
		t.Fatalf("empty hub result = %+v", res)
	}
}

func TestHubCloseAll(t *testing.T) {
	hub := NewHub(nil)
	a, b := newFakeConsumer("a", wire.CodecJSON), newFakeConsumer("b", wire.CodecJSON)
	_ = hub.Add(a)
	_ = hub.Add(b)
	hub.CloseAll()
	if hub.Len() != 0 || a.closeCount() != 1 || b.closeCount() != 1 {
		t.Fatalf("CloseAll left len=%d a=%d b=%d", hub.Len(), a.closeCount(), b.closeCount())
	}
}

func TestHubConcurrentAddAndBroadcast(t *testing.T) {
	hub := NewHub(nil)
	msg := wire.UpdateMessage(wire.Update{Aircraft: []wire.Contact{}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		id := string(rune('a' + i))
		go func() {
			defer wg.Done()
			c := newFakeConsumer(id, wire.CodecJSON)
			_ = hub.Add(c)
			hub.Remove(id)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(context.Background(), msg)
		}()
	}
	wg.Wait()
	if hub.Len() != 0 {
		t.Fatalf("Len() = %d after all removals", hub.Len())
	}
}
