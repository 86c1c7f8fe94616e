package core

import (
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lite/internal/metrics"
)

// Broadcaster fans events out to registered sessions. Delivery to each
// recipient is an independent non-blocking enqueue; a recipient that cannot
// accept is killed and the others are unaffected.
type Broadcaster struct {
	registry *Registry
	echo     bool
	log      *zerolog.Logger
}

// BroadcasterOption configures a Broadcaster.
type BroadcasterOption func(*Broadcaster)

// WithEcho controls whether a sender receives its own chat messages.
func WithEcho(echo bool) BroadcasterOption {
	return func(b *Broadcaster) { b.echo = echo }
}

// WithLogger sets the logger used for delivery diagnostics.
func WithLogger(logger *zerolog.Logger) BroadcasterOption {
	return func(b *Broadcaster) {
		if logger != nil {
			b.log = logger
		}
	}
}

// NewBroadcaster attaches a broadcaster to reg. Roster changes in reg are
// fanned out by the returned broadcaster. Echo is on by default.
func NewBroadcaster(reg *Registry, opts ...BroadcasterOption) *Broadcaster {
	nop := zerolog.Nop()
	b := &Broadcaster{
		registry: reg,
		echo:     true,
		log:      &nop,
	}
	for _, opt := range opts {
		opt(b)
	}
	reg.setRosterFunc(b.roster)
	return b
}

// Chat delivers msg to every online session and returns how many accepted it.
// Calls from one goroutine reach each recipient in call order.
func (b *Broadcaster) Chat(msg Message) int {
	ev := &Event{Kind: EventChat, User: msg.From, Message: msg}

	delivered := 0
	b.registry.forEach(func(sess *Session) {
		if !b.echo && sess.Username == msg.From {
			return
		}
		if b.deliver(sess, ev) {
			delivered++
		}
	})
	metrics.MessagesBroadcast.Inc()
	return delivered
}

func (b *Broadcaster) roster(users []string, sessions []*Session) {
	ev := &Event{Kind: EventRoster, Users: users}
	for _, sess := range sessions {
		b.deliver(sess, ev)
	}
}

func (b *Broadcaster) deliver(sess *Session, ev *Event) bool {
	if sess.Deliver(ev) {
		return true
	}
	metrics.DeliveriesDropped.WithLabelValues(ev.Kind.String()).Inc()
	b.log.Debug().
		Str("username", sess.Username).
		Str("event", ev.Kind.String()).
		Msg("delivery failed, recipient dropped")
	return false
}
