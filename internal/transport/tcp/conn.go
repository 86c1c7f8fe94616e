package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/wirechat-lite/internal/proto"
)

var aLongTimeAgo = time.Unix(1, 0)

// conn adapts a net.Conn carrying newline-delimited JSON to chat.Conn.
type conn struct {
	nc     net.Conn
	reader *proto.LineReader

	closeOnce sync.Once
	closeErr  error
}

func newConn(nc net.Conn, maxFrameSize int) *conn {
	return &conn{
		nc:     nc,
		reader: proto.NewLineReader(nc, maxFrameSize),
	}
}

// ReadFrame blocks until a frame arrives. Ending ctx interrupts the read by
// moving the read deadline into the past.
func (c *conn) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.nc.SetReadDeadline(time.Time{}); err != nil {
		return nil, err
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		_ = c.nc.SetReadDeadline(aLongTimeAgo)
		close(fired)
	})

	frame, err := c.reader.ReadFrame()
	if !stop() {
		<-fired
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

func (c *conn) WriteFrame(ctx context.Context, frame []byte) error {
	deadline, _ := ctx.Deadline()
	if err := c.nc.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return proto.WriteLine(c.nc, frame)
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

func (c *conn) RemoteAddr() string {
	if addr := c.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
