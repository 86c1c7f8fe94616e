package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lite/internal/chat"
	"github.com/vovakirdan/wirechat-lite/internal/metrics"
)

const transportName = "ws"

// ConnHandler serves one upgraded connection until it ends.
type ConnHandler interface {
	Serve(ctx context.Context, conn chat.Conn)
}

// WSHandler upgrades HTTP connections and hands them to the chat handler.
type WSHandler struct {
	handler      ConnHandler
	maxFrameSize int
	tracker      *chat.Tracker
	baseCtx      context.Context
	cancel       context.CancelFunc
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(handler ConnHandler, maxFrameSize int, logger *zerolog.Logger) *WSHandler {
	ctx, cancel := context.WithCancel(context.Background())
	return &WSHandler{
		handler:      handler,
		maxFrameSize: maxFrameSize,
		tracker:      chat.NewTracker(),
		baseCtx:      ctx,
		cancel:       cancel,
		log:          logger,
	}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	if h.baseCtx.Err() != nil {
		stdhttp.Error(w, "server is shutting down", stdhttp.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	if h.maxFrameSize > 0 {
		conn.SetReadLimit(int64(h.maxFrameSize))
	}

	wc := newWSConn(conn, r.RemoteAddr)
	release := h.tracker.Track(wc)
	defer release()

	active := metrics.ConnectionsActive.WithLabelValues(transportName)
	active.Inc()
	defer active.Dec()

	// hijacked connections outlive the request context
	h.handler.Serve(h.baseCtx, wc)
}

// Shutdown ends every websocket session and waits up to grace for them.
// It returns how many had to be force-closed.
func (h *WSHandler) Shutdown(grace time.Duration) int {
	h.cancel()
	return h.tracker.Drain(grace)
}

// wsConn adapts a websocket to chat.Conn. Reads run on their own goroutine
// with a background context, since cancelling a coder/websocket Read closes
// the connection and the handler still needs to write its goodbye.
type wsConn struct {
	c    *websocket.Conn
	addr string

	frames  chan []byte
	readEOF chan struct{}
	readErr error

	closed    chan struct{}
	closeOnce sync.Once
}

func newWSConn(c *websocket.Conn, addr string) *wsConn {
	w := &wsConn{
		c:       c,
		addr:    addr,
		frames:  make(chan []byte),
		readEOF: make(chan struct{}),
		closed:  make(chan struct{}),
	}
	go w.readLoop()
	return w
}

func (w *wsConn) readLoop() {
	defer close(w.readEOF)
	for {
		_, data, err := w.c.Read(context.Background())
		if err != nil {
			w.readErr = mapReadError(err)
			return
		}
		select {
		case w.frames <- data:
		case <-w.closed:
			w.readErr = net.ErrClosed
			return
		}
	}
}

func (w *wsConn) ReadFrame(ctx context.Context) ([]byte, error) {
	select {
	case frame := <-w.frames:
		return frame, nil
	case <-w.readEOF:
		return nil, w.readErr
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *wsConn) WriteFrame(ctx context.Context, frame []byte) error {
	return w.c.Write(ctx, websocket.MessageText, frame)
}

func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		err = w.c.Close(websocket.StatusNormalClosure, "closing")
	})
	return err
}

func (w *wsConn) RemoteAddr() string {
	return w.addr
}

// mapReadError turns a clean close into io.EOF. An oversized message is
// fatal on websocket because the library closes the connection itself.
func mapReadError(err error) error {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return io.EOF
	case websocket.StatusMessageTooBig:
		return fmt.Errorf("websocket message too big: %w", err)
	}
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return err
}
