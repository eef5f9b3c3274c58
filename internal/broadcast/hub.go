// Package broadcast fans world frames out to stream consumers and drives the
// periodic sweep loop.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
)

var (
	// ErrConsumerBusy is returned by Offer when the consumer still has an
	// undelivered message. The consumer is skipped for that tick.
	ErrConsumerBusy = errors.New("consumer busy")
	// ErrConsumerClosed is returned by Offer once the consumer has gone away.
	ErrConsumerClosed = errors.New("consumer closed")
	// ErrDuplicateConsumer is returned when a consumer ID is already registered.
	ErrDuplicateConsumer = errors.New("consumer already registered")
)

// Consumer is one attached stream. Offer must never block.
type Consumer interface {
	ID() string
	Codec() string
	Offer(data []byte) error
	Close() error
}

// Result summarises one fan-out.
type Result struct {
	Delivered int
	Skipped   int
	Dropped   int
}

// Hub is the set of registered consumers.
type Hub struct {
	mu        sync.RWMutex
	consumers map[string]Consumer

	log logging.Logger
}

// NewHub returns an empty hub. A nil logger disables logging.
func NewHub(log logging.Logger) *Hub {
	if log == nil {
		log = logging.Noop()
	}
	return &Hub{consumers: make(map[string]Consumer), log: log}
}

// Add registers c.
func (h *Hub) Add(c Consumer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.consumers[c.ID()]; exists {
		return fmt.Errorf("%s: %w", c.ID(), ErrDuplicateConsumer)
	}
	h.consumers[c.ID()] = c
	return nil
}

// Remove unregisters the consumer with the given ID and reports whether it was
// present. The consumer is not closed.
func (h *Hub) Remove(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.consumers[id]; !ok {
		return false
	}
	delete(h.consumers, id)
	return true
}

// Len returns the number of registered consumers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.consumers)
}

// IDs returns the registered consumer IDs in sorted order.
func (h *Hub) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.consumers))
	for id := range h.consumers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Send encodes msg with the consumer's codec and offers it once.
func Send(c Consumer, msg wire.Message) error {
	codec, err := wire.Lookup(c.Codec())
	if err != nil {
		return err
	}
	data, err := codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}
	return c.Offer(data)
}

// Broadcast offers msg to every registered consumer. The message is encoded
// once per codec in use. Busy consumers are skipped; consumers that fail for
// any other reason are removed and closed.
func (h *Hub) Broadcast(ctx context.Context, msg wire.Message) Result {
	h.mu.RLock()
	targets := make([]Consumer, 0, len(h.consumers))
	for _, c := range h.consumers {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var res Result
	if len(targets) == 0 {
		return res
	}

	encoded := make(map[string][]byte, 2)
	failed := make(map[string]error, 2)
	var drop []Consumer

	for _, c := range targets {
		name := c.Codec()
		data, ok := encoded[name]
		if !ok {
			if err, bad := failed[name]; bad {
				h.log.Debug(ctx, "skipping consumer with unusable codec",
					logging.String("consumer_id", c.ID()), logging.Err(err))
				drop = append(drop, c)
				continue
			}
			codec, err := wire.Lookup(name)
			if err == nil {
				data, err = codec.Marshal(msg)
			}
			if err != nil {
				failed[name] = err
				h.log.Error(ctx, "encode broadcast message",
					logging.String("codec", name), logging.String("type", msg.Type), logging.Err(err))
				drop = append(drop, c)
				continue
			}
			encoded[name] = data
		}

		switch err := c.Offer(data); {
		case err == nil:
			res.Delivered++
		case errors.Is(err, ErrConsumerBusy):
			res.Skipped++
		default:
			if !errors.Is(err, ErrConsumerClosed) {
				h.log.Warn(ctx, "consumer offer failed",
					logging.String("consumer_id", c.ID()), logging.Err(err))
			}
			drop = append(drop, c)
		}
	}

	for _, c := range drop {
		if h.Remove(c.ID()) {
			res.Dropped++
			_ = c.Close()
			h.log.Info(ctx, "consumer removed", logging.String("consumer_id", c.ID()))
		}
	}
	return res
}

// CloseAll closes and removes every registered consumer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	consumers := h.consumers
	h.consumers = make(map[string]Consumer)
	h.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
}
