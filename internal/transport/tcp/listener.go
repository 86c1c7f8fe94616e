package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lite/internal/chat"
	"github.com/vovakirdan/wirechat-lite/internal/metrics"
	"github.com/vovakirdan/wirechat-lite/internal/proto"
)

const (
	transportName = "tcp"
	refuseTimeout = time.Second
	noticeFull    = "server is full, try again later"
)

// Handler serves one accepted connection until it ends.
type Handler interface {
	Serve(ctx context.Context, conn chat.Conn)
}

// Options tunes a Listener.
type Options struct {
	// MaxConnections caps concurrently served connections; <= 0 means no cap.
	MaxConnections int
	MaxFrameSize   int
	// ShutdownTimeout bounds how long Serve waits for handlers after ctx ends
	// before force-closing their connections.
	ShutdownTimeout time.Duration
}

// Listener accepts TCP connections and hands each to a Handler on a bounded
// worker pool.
type Listener struct {
	ln      net.Listener
	handler Handler
	opts    Options
	tracker *chat.Tracker
	log     *zerolog.Logger
}

// Listen binds addr and returns a listener ready to Serve.
func Listen(addr string, handler Handler, opts Options, logger *zerolog.Logger) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return NewListener(ln, handler, opts, logger), nil
}

// NewListener wraps an existing net.Listener.
func NewListener(ln net.Listener, handler Handler, opts Options, logger *zerolog.Logger) *Listener {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Listener{
		ln:      ln,
		handler: handler,
		opts:    opts,
		tracker: chat.NewTracker(),
		log:     logger,
	}
}

// Addr is the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve accepts until ctx ends, then closes the listener, lets handlers
// finish within ShutdownTimeout and force-closes the rest. It returns nil on
// a ctx-driven stop.
func (l *Listener) Serve(ctx context.Context) error {
	pool, err := ants.NewPool(l.opts.MaxConnections,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			l.log.Error().Interface("panic", v).Msg("connection handler panicked")
		}),
	)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = 5 * time.Millisecond
	retry.MaxInterval = time.Second
	retry.MaxElapsedTime = 0
	retry.Reset()

	l.log.Info().Str("addr", l.ln.Addr().String()).Msg("tcp listener started")
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				l.tracker.CloseAll()
				l.drain(pool)
				return fmt.Errorf("accept: %w", err)
			}

			metrics.AcceptErrors.Inc()
			wait := retry.NextBackOff()
			l.log.Warn().Err(err).Dur("retry_in", wait).Msg("accept failed")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
			}
			continue
		}
		retry.Reset()
		l.dispatch(ctx, pool, nc)
	}

	l.log.Info().Int("connections", l.tracker.Len()).Msg("tcp listener stopping")
	l.drain(pool)
	return nil
}

func (l *Listener) dispatch(ctx context.Context, pool *ants.Pool, nc net.Conn) {
	c := newConn(nc, l.opts.MaxFrameSize)
	release := l.tracker.Track(c)

	err := pool.Submit(func() {
		defer release()
		defer c.Close()

		active := metrics.ConnectionsActive.WithLabelValues(transportName)
		active.Inc()
		defer active.Dec()

		l.handler.Serve(ctx, c)
	})
	if err == nil {
		return
	}

	release()
	reason := "overload"
	if errors.Is(err, ants.ErrPoolClosed) {
		reason = "closed"
	}
	metrics.ConnectionsRejected.WithLabelValues(reason).Inc()
	l.log.Warn().Err(err).Str("remote", c.RemoteAddr()).Msg("refusing connection")
	go refuse(c, noticeFull)
}

func (l *Listener) drain(pool *ants.Pool) {
	if forced := l.tracker.Drain(l.opts.ShutdownTimeout); forced > 0 {
		l.log.Warn().Int("connections", forced).Msg("force-closed connections after shutdown timeout")
	}
	if err := pool.ReleaseTimeout(l.opts.ShutdownTimeout); err != nil {
		l.log.Debug().Err(err).Msg("release worker pool")
	}
}

// refuse tells the peer why it is being dropped and closes the connection.
func refuse(c *conn, text string) {
	defer c.Close()
	frame, err := proto.Encode(proto.Outbound{Type: proto.OutboundTypeNotice, Data: proto.Notice{Text: text}})
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), refuseTimeout)
	defer cancel()
	_ = c.WriteFrame(ctx, frame)
}
