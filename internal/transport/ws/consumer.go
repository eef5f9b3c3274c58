package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/alikendir0/backend-simulated-radar-simulator/internal/broadcast"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/logging"
	"github.com/alikendir0/backend-simulated-radar-simulator/internal/wire"
)

const replyQueueSize = 8

// consumer adapts one websocket connection to broadcast.Consumer. Updates go
// through a single-slot mailbox so a slow client misses ticks instead of
// queueing them; inspect replies have their own small queue.
type consumer struct {
	id    string
	conn  *websocket.Conn
	codec wire.Codec

	mailbox chan []byte
	replies chan []byte
	done    chan struct{}
	once    sync.Once

	limiter *rate.Limiter
	log     logging.Logger
}

func newConsumer(id string, conn *websocket.Conn, codec wire.Codec, limiter *rate.Limiter, log logging.Logger) *consumer {
	return &consumer{
		id:      id,
		conn:    conn,
		codec:   codec,
		mailbox: make(chan []byte, 1),
		replies: make(chan []byte, replyQueueSize),
		done:    make(chan struct{}),
		limiter: limiter,
		log:     log,
	}
}

func (c *consumer) ID() string    { return c.id }
func (c *consumer) Codec() string { return c.codec.Name() }

// Offer never blocks.
func (c *consumer) Offer(data []byte) error {
	select {
	case <-c.done:
		return broadcast.ErrConsumerClosed
	default:
	}
	select {
	case c.mailbox <- data:
		return nil
	default:
		return broadcast.ErrConsumerBusy
	}
}

func (c *consumer) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *consumer) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *consumer) frameType() int {
	if c.codec.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// reply queues a direct answer to this consumer. It reports false when the
// reply queue is full or the consumer is gone.
func (c *consumer) reply(msg wire.Message) bool {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		c.log.Error(context.Background(), "encode reply", logging.String("type", msg.Type), logging.Err(err))
		return false
	}
	select {
	case <-c.done:
		return false
	case c.replies <- data:
		return true
	default:
		return false
	}
}

// writeLoop is the only goroutine writing to the connection.
func (c *consumer) writeLoop(writeWait, pingPeriod time.Duration) error {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	write := func(kind int, data []byte) error {
		if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}
		return c.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return nil
		case data := <-c.replies:
			if err := write(c.frameType(), data); err != nil {
				return err
			}
		case data := <-c.mailbox:
			if err := write(c.frameType(), data); err != nil {
				return err
			}
		case <-ping.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// readLoop handles inbound requests until the connection fails.
func (c *consumer) readLoop(ctx context.Context, pongWait time.Duration, maxMessage int64, handle func(context.Context, *consumer, []byte)) error {
	c.conn.SetReadLimit(maxMessage)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil
			}
			return err
		}
		handle(ctx, c, data)
	}
}
