package chat

//go:generate mockgen -destination=mocks/mock_chat.go -package=mocks github.com/vovakirdan/wirechat-lite/internal/chat Gateway,TokenAuthority

import (
	"context"

	"github.com/vovakirdan/wirechat-lite/internal/auth"
)

// Conn is one client transport as seen by the Handler. ReadFrame is called
// only by the read loop and WriteFrame only by the writer, so implementations
// need not synchronise the two directions.
type Conn interface {
	// ReadFrame blocks until a whole frame arrives, ctx ends or the
	// transport fails. A clean close by the peer is reported as io.EOF and
	// an oversized frame as proto.ErrFrameTooLarge.
	ReadFrame(ctx context.Context) ([]byte, error)
	// WriteFrame sends one encoded frame.
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
	RemoteAddr() string
}

// Gateway is the credential store the handshake consults.
type Gateway interface {
	// Verify reports whether secret is valid for username.
	Verify(ctx context.Context, username, secret string) (bool, error)
	// Create registers a new account; auth.ErrUserExists when taken.
	Create(ctx context.Context, username, secret string) error
}

// TokenAuthority issues and checks resume tokens. Optional.
type TokenAuthority interface {
	IssueToken(username string) (string, error)
	VerifyToken(token string) (string, error)
}

var (
	_ Gateway        = (*auth.Service)(nil)
	_ TokenAuthority = (*auth.Service)(nil)
)
