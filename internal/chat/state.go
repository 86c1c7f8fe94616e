package chat

// State is the lifecycle position of one connection.
type State int

const (
	StateConnecting State = iota
	StateAuthenticating
	StateOnline
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOnline:
		return "online"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
