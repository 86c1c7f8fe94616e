package core

import "time"

// Session is an authenticated client registered under a unique username.
type Session struct {
	Username string
	JoinedAt time.Time

	client *Client
}

// Client returns the delivery handle. The registry never closes it.
func (s *Session) Client() *Client {
	return s.client
}

// Deliver queues ev on the session's client.
func (s *Session) Deliver(ev *Event) bool {
	return s.client.Deliver(ev)
}
