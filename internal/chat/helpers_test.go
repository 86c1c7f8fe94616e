package chat

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wirechat-lite/internal/auth"
	"github.com/vovakirdan/wirechat-lite/internal/core"
	"github.com/vovakirdan/wirechat-lite/internal/proto"
)

const waitTimeout = 3 * time.Second

// pipeConn is an in-memory Conn. A nil frame pushed to in reads as an
// oversized frame.
type pipeConn struct {
	in      chan []byte
	out     chan []byte
	closed  chan struct{}
	stalled atomic.Bool

	closeOnce  sync.Once
	hangupOnce sync.Once
}

func newPipeConn() *pipeConn {
	return &pipeConn{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (p *pipeConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-p.in:
		if !ok {
			return nil, io.EOF
		}
		if frame == nil {
			return nil, proto.ErrFrameTooLarge
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		return nil, net.ErrClosed
	}
}

func (p *pipeConn) WriteFrame(ctx context.Context, frame []byte) error {
	if p.stalled.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closed:
			return net.ErrClosed
		}
	}
	select {
	case p.out <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return net.ErrClosed
	}
}

func (p *pipeConn) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) RemoteAddr() string { return "pipe" }

// hangup simulates the peer dropping the connection.
func (p *pipeConn) hangup() {
	p.hangupOnce.Do(func() { close(p.in) })
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type peer struct {
	t    *testing.T
	conn *pipeConn
	done chan struct{}
}

func (p *peer) send(typ string, data any) {
	p.t.Helper()
	frame, err := json.Marshal(map[string]any{"type": typ, "data": data})
	require.NoError(p.t, err)
	p.conn.in <- frame
}

func (p *peer) sendRaw(frame string) {
	p.conn.in <- []byte(frame)
}

// next returns the next frame, whatever its type.
func (p *peer) next() envelope {
	p.t.Helper()
	select {
	case frame := <-p.conn.out:
		var env envelope
		require.NoError(p.t, json.Unmarshal(frame, &env))
		return env
	case <-time.After(waitTimeout):
		p.t.Fatalf("no frame received")
		return envelope{}
	}
}

// expect requires the next frame to have type typ and decodes its data.
func (p *peer) expect(typ string, into any) {
	p.t.Helper()
	env := p.next()
	require.Equal(p.t, typ, env.Type, "unexpected frame %s", env.Data)
	if into != nil {
		require.NoError(p.t, json.Unmarshal(env.Data, into))
	}
}

// expectUntil skips frames until one of type typ arrives.
func (p *peer) expectUntil(typ string, into any) {
	p.t.Helper()
	for {
		env := p.next()
		if env.Type != typ {
			continue
		}
		if into != nil {
			require.NoError(p.t, json.Unmarshal(env.Data, into))
		}
		return
	}
}

func (p *peer) expectNothing(d time.Duration) {
	p.t.Helper()
	select {
	case frame := <-p.conn.out:
		p.t.Fatalf("unexpected frame %s", frame)
	case <-time.After(d):
	}
}

func (p *peer) expectRoster(users ...string) {
	p.t.Helper()
	var roster proto.Roster
	p.expect(proto.OutboundTypeRoster, &roster)
	require.Equal(p.t, users, roster.Users)
}

func (p *peer) expectRejected(reason string) {
	p.t.Helper()
	var rejected proto.AuthRejected
	p.expect(proto.OutboundTypeAuthRejected, &rejected)
	require.Equal(p.t, reason, rejected.Reason)
	require.NotEmpty(p.t, rejected.Message)
}

func (p *peer) expectNotice() string {
	p.t.Helper()
	var notice proto.Notice
	p.expect(proto.OutboundTypeNotice, &notice)
	require.NotEmpty(p.t, notice.Text)
	return notice.Text
}

func (p *peer) waitClosed() {
	p.t.Helper()
	select {
	case <-p.done:
	case <-time.After(waitTimeout):
		p.t.Fatalf("connection was not closed")
	}
}

type harness struct {
	t        *testing.T
	handler  *Handler
	registry *core.Registry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func newHarness(t *testing.T, gateway Gateway, mutate func(*Options)) *harness {
	t.Helper()

	registry := core.NewRegistry()
	broadcaster := core.NewBroadcaster(registry)

	opts := DefaultOptions()
	opts.AuthTimeout = 2 * time.Second
	opts.WriteTimeout = time.Second
	if mutate != nil {
		mutate(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	hs := &harness{
		t:        t,
		handler:  NewHandler(gateway, registry, broadcaster, opts, nil),
		registry: registry,
		ctx:      ctx,
		cancel:   cancel,
	}
	t.Cleanup(func() {
		cancel()
		hs.wg.Wait()
	})
	return hs
}

func (hs *harness) connect() *peer {
	conn := newPipeConn()
	p := &peer{t: hs.t, conn: conn, done: make(chan struct{})}

	hs.wg.Add(1)
	go func() {
		defer hs.wg.Done()
		defer close(p.done)
		hs.handler.Serve(hs.ctx, conn)
	}()
	return p
}

// online logs username in and consumes the acceptance and the first roster.
func (hs *harness) online(username, secret string) *peer {
	hs.t.Helper()
	p := hs.connect()
	p.send(proto.InboundTypeLogin, proto.LoginData{Username: username, Secret: secret})

	var accepted proto.AuthAccepted
	p.expect(proto.OutboundTypeAuthAccepted, &accepted)
	require.Equal(hs.t, username, accepted.Username)
	p.expect(proto.OutboundTypeRoster, nil)
	return p
}

// memGateway is an in-memory credential store.
type memGateway struct {
	mu    sync.Mutex
	users map[string]string
}

func newMemGateway(pairs ...string) *memGateway {
	g := &memGateway{users: make(map[string]string)}
	for i := 0; i+1 < len(pairs); i += 2 {
		g.users[pairs[i]] = pairs[i+1]
	}
	return g
}

func (g *memGateway) Verify(_ context.Context, username, secret string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	stored, ok := g.users[username]
	return ok && stored == secret, nil
}

func (g *memGateway) Create(_ context.Context, username, secret string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.users[username]; ok {
		return auth.ErrUserExists
	}
	g.users[username] = secret
	return nil
}
