package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeLogin    = "login"
	InboundTypeRegister = "register"
	InboundTypeChat     = "chat"
	InboundTypeLogout   = "logout"

	OutboundTypeAuthAccepted = "auth_accepted"
	OutboundTypeAuthRejected = "auth_rejected"
	OutboundTypeChat         = "chat"
	OutboundTypeRoster       = "roster"
	OutboundTypeNotice       = "notice"
)

// LoginData authenticates an existing account. Token may replace Secret when
// the server issues resume tokens.
type LoginData struct {
	Username string `json:"username"`
	Secret   string `json:"secret,omitempty"`
	Token    string `json:"token,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// RegisterData creates an account and logs into it.
type RegisterData struct {
	Username string `json:"username"`
	Secret   string `json:"secret"`
	Protocol int    `json:"protocol,omitempty"`
}

// ChatData is a chat line from the client.
type ChatData struct {
	Text string `json:"text"`
}

// LogoutData carries nothing; it exists so every inbound type has a data shape.
type LogoutData struct{}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// AuthAccepted confirms the identity bound to the connection.
type AuthAccepted struct {
	Username string `json:"username"`
	Token    string `json:"token,omitempty"`
}

// AuthRejected explains why an authentication attempt failed.
type AuthRejected struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ChatMessage is a broadcast chat line. TS is unix milliseconds.
type ChatMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
	TS     int64  `json:"ts"`
}

// Roster is the full list of online users.
type Roster struct {
	Users []string `json:"users"`
}

// Notice is a human-readable message for a single connection.
type Notice struct {
	Text string `json:"text"`
}
