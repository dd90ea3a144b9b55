package channel

import (
	"sync"

	"recruitai/interview/internal/models"
)

// Session holds the live channels for one interview session: the
// candidate's, and in hybrid mode the manager's. At most one channel per
// role is active at a time; attaching a new one closes its predecessor so
// a reconnect resumes instead of duplicating state.
type Session struct {
	mu      sync.RWMutex
	clients map[models.Role]*Client
}

func NewSession() *Session {
	return &Session{clients: make(map[models.Role]*Client)}
}

// Attach registers a role's channel, returning the replaced one (already
// closed) if the role was connected elsewhere.
func (s *Session) Attach(c *Client) *Client {
	s.mu.Lock()
	prev := s.clients[c.Role]
	s.clients[c.Role] = c
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	return prev
}

// Detach removes a client if it is still the role's current channel. A
// stale detach from an already-replaced connection is a no-op.
func (s *Session) Detach(c *Client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clients[c.Role] != c {
		return false
	}
	delete(s.clients, c.Role)
	return true
}

// Get returns the role's current channel, if any.
func (s *Session) Get(role models.Role) (*Client, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[role]
	return c, ok
}

// Send delivers a message to one role. Returns false when the role has no
// live channel.
func (s *Session) Send(role models.Role, msg models.Message) bool {
	c, ok := s.Get(role)
	if !ok {
		return false
	}
	c.Send(msg)
	return true
}

// Broadcast delivers a candidate-facing message to every connected role;
// in hybrid mode the manager mirrors all candidate traffic.
func (s *Session) Broadcast(msg models.Message) {
	s.mu.RLock()
	clients := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

// CloseAll shuts down every channel for the session.
func (s *Session) CloseAll() {
	s.mu.Lock()
	clients := s.clients
	s.clients = make(map[models.Role]*Client)
	s.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}
