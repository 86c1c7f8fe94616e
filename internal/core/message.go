package core

import "time"

// Message is the domain model for a chat message.
type Message struct {
	From      string
	Text      string
	CreatedAt time.Time
}
