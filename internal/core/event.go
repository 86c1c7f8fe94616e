package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventAuthAccepted confirms the connection is now bound to User.
	EventAuthAccepted EventKind = iota
	// EventAuthRejected reports a failed authentication attempt.
	EventAuthRejected
	// EventChat carries a broadcast chat message.
	EventChat
	// EventRoster carries the full list of online users.
	EventRoster
	// EventNotice is a free-form message for a single connection.
	EventNotice
)

func (k EventKind) String() string {
	switch k {
	case EventAuthAccepted:
		return "auth_accepted"
	case EventAuthRejected:
		return "auth_rejected"
	case EventChat:
		return "chat"
	case EventRoster:
		return "roster"
	case EventNotice:
		return "notice"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	User    string
	Token   string
	Users   []string // EventRoster
	Message Message
	Text    string     // EventNotice
	Error   *CoreError // EventAuthRejected
}

// NoticeEvent builds an EventNotice.
func NoticeEvent(text string) *Event {
	return &Event{Kind: EventNotice, Text: text}
}

// RejectedEvent builds an EventAuthRejected with the given reason code.
func RejectedEvent(code, msg string) *Event {
	return &Event{Kind: EventAuthRejected, Error: coreError(code, msg)}
}
