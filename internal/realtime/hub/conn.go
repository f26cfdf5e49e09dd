package hub

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"artisanchat/internal/domain/user"
)

var ErrConnectionClosed = errors.New("hub: connection closed")

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

// Transport is the wire beneath a connection. The hub owns the single writer
// goroutine, so implementations never see concurrent writes.
type Transport interface {
	WriteMessage(data []byte) error
	Ping() error
	Close() error
}

var connIDCounter int64

// Conn is one client connection bound to an authenticated identity. Outbound
// frames go through a buffered channel drained by a dedicated write loop, so
// fan-out never blocks on a slow client and per-connection order is the
// enqueue order.
type Conn struct {
	id        int64
	identity  user.ID
	transport Transport
	logger    *slog.Logger
	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	createdAt time.Time
}

func NewConn(identity user.ID, transport Transport, logger *slog.Logger) *Conn {
	c := &Conn{
		id:        atomic.AddInt64(&connIDCounter, 1),
		identity:  identity,
		transport: transport,
		logger:    logger,
		sendCh:    make(chan []byte, sendBuffer),
		closeCh:   make(chan struct{}),
		createdAt: time.Now(),
	}
	go c.writeLoop()
	return c
}

func (c *Conn) ID() int64 {
	return c.id
}

func (c *Conn) Identity() user.ID {
	return c.identity
}

// Send enqueues a frame. A full buffer drops the connection rather than
// stalling the broadcaster.
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	select {
	case c.sendCh <- data:
		return nil
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
		if c.logger != nil {
			c.logger.Warn("send buffer full, dropping connection", "conn_id", c.id, "identity", c.identity)
		}
		c.Close()
		return ErrConnectionClosed
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case data := <-c.sendCh:
			if err := c.transport.WriteMessage(data); err != nil {
				if c.logger != nil {
					c.logger.Debug("write failed", "conn_id", c.id, "error", err)
				}
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.transport.Ping(); err != nil {
				c.Close()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		_ = c.transport.Close()
	})
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}
