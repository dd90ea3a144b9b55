package channel

import (
	"sync"

	"github.com/gorilla/websocket"

	"recruitai/interview/internal/metrics"
	"recruitai/interview/internal/models"
)

// outboundQueueSize bounds each role's send queue. When it fills, the
// drop policy in Send applies.
const outboundQueueSize = 64

// Client wraps one role's websocket connection. Messages are delivered in
// the order they are enqueued; a dedicated write pump keeps the engine
// from ever blocking on a slow socket.
type Client struct {
	Role models.Role

	conn *websocket.Conn
	out  chan models.Envelope
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	hook func(models.Message)
}

func NewClient(role models.Role, conn *websocket.Conn) *Client {
	c := &Client{
		Role: role,
		conn: conn,
		out:  make(chan models.Envelope, outboundQueueSize),
		done: make(chan struct{}),
	}
	if conn != nil {
		go c.writePump()
	}
	return c
}

// SetSendHook replaces the websocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.Message)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send enqueues a message for delivery. Under back-pressure, non-critical
// turn signals are dropped; transcript updates and terminal notifications
// always go out.
func (c *Client) Send(msg models.Message) {
	c.mu.Lock()
	hook := c.hook
	c.mu.Unlock()
	if hook != nil {
		hook(msg)
		return
	}

	env, err := models.EncodeMessage(msg)
	if err != nil {
		return
	}

	if models.Droppable(msg) {
		select {
		case c.out <- env:
		case <-c.done:
		default:
			metrics.DroppedSignals.WithLabelValues(string(msg.Kind())).Inc()
		}
		return
	}

	select {
	case c.out <- env:
	case <-c.done:
	}
}

// Close shuts the connection down; pending queued messages are flushed
// best-effort by the write pump before it exits.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Done is closed once the client is shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) writePump() {
	defer c.conn.Close()
	for {
		select {
		case env := <-c.out:
			if err := c.conn.WriteJSON(env); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			// Drain what is already queued, then close the socket.
			for {
				select {
				case env := <-c.out:
					if err := c.conn.WriteJSON(env); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
