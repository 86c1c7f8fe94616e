package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-lite/internal/auth"
	"github.com/vovakirdan/wirechat-lite/internal/core"
	"github.com/vovakirdan/wirechat-lite/internal/metrics"
	"github.com/vovakirdan/wirechat-lite/internal/proto"
	"github.com/vovakirdan/wirechat-lite/internal/utils"
)

var (
	errLogout          = errors.New("logout")
	errTooManyAttempts = errors.New("too many failed authentication attempts")
)

const (
	actionLogin    = "login"
	actionRegister = "register"
	resultAccepted = "accepted"

	noticeShuttingDown = "server is shutting down"
	rateWindow         = time.Minute
)

// Options tunes a Handler. Zero values disable the matching bound.
type Options struct {
	// AuthTimeout bounds the whole handshake, not each read.
	AuthTimeout        time.Duration
	WriteTimeout       time.Duration
	GatewayTimeout     time.Duration
	MaxMessageLength   int
	OutboxSize         int
	RateLimitPerMinute int
	MaxAuthAttempts    int
	// Tokens enables token login and token issue on accept when non-nil.
	Tokens TokenAuthority
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		AuthTimeout:        30 * time.Second,
		WriteTimeout:       5 * time.Second,
		GatewayTimeout:     5 * time.Second,
		MaxMessageLength:   1000,
		OutboxSize:         64,
		RateLimitPerMinute: 120,
		MaxAuthAttempts:    5,
	}
}

// Handler runs the per-connection state machine: handshake, online chat and
// cleanup. One Handler serves every connection of every transport.
type Handler struct {
	gateway     Gateway
	registry    *core.Registry
	broadcaster *core.Broadcaster
	opts        Options
	log         *zerolog.Logger
	now         func() time.Time
}

// NewHandler wires a handler to the registry and broadcaster it publishes to.
func NewHandler(gateway Gateway, registry *core.Registry, broadcaster *core.Broadcaster, opts Options, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{
		gateway:     gateway,
		registry:    registry,
		broadcaster: broadcaster,
		opts:        opts,
		log:         logger,
		now:         time.Now,
	}
}

// Serve owns conn until the connection ends and closes it before returning.
// Cancelling ctx is a server shutdown: the client gets a notice and is
// deregistered.
func (h *Handler) Serve(ctx context.Context, conn Conn) {
	client := core.NewClient(utils.NewID(), conn.RemoteAddr(), h.opts.OutboxSize)
	logger := h.log.With().Str("conn_id", client.ID).Str("remote", client.Addr).Logger()

	c := &connection{
		h:       h,
		conn:    conn,
		client:  client,
		log:     &logger,
		state:   StateConnecting,
		limiter: newRateLimiter(h.opts.RateLimitPerMinute, rateWindow),
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writeLoop()
		// a dead writer ends the read side too
		cancel()
	}()

	logger.Debug().Msg("connection opened")
	cause := c.run(readCtx)
	c.finish(ctx, cause)

	client.Close()
	if !waitFor(writerDone, h.opts.WriteTimeout) {
		logger.Debug().Msg("writer did not flush in time")
	}
	_ = conn.Close()
	<-writerDone
	logger.Debug().Str("cause", describeCause(cause, client.Err())).Msg("connection closed")
}

type connection struct {
	h        *Handler
	conn     Conn
	client   *core.Client
	log      *zerolog.Logger
	state    State
	username string
	limiter  *rateLimiter
}

func (c *connection) run(ctx context.Context) error {
	if err := c.handshake(ctx); err != nil {
		return err
	}
	return c.online(ctx)
}

func (c *connection) handshake(ctx context.Context) error {
	if timeout := c.h.opts.AuthTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	failures := 0
	for {
		if limit := c.h.opts.MaxAuthAttempts; limit > 0 && failures >= limit {
			c.notice("too many failed attempts")
			return errTooManyAttempts
		}

		frame, err := c.conn.ReadFrame(ctx)
		if err != nil {
			switch {
			case errors.Is(err, proto.ErrFrameTooLarge):
				c.notice("frame too large")
			case errors.Is(err, context.DeadlineExceeded):
				c.notice("authentication timed out")
			}
			return err
		}

		req, err := proto.Decode(frame)
		if err != nil {
			c.notice(err.Error())
			return err
		}

		switch r := req.(type) {
		case *proto.LoginData:
			c.state = StateAuthenticating
			if c.login(ctx, r) {
				return nil
			}
			failures++
		case *proto.RegisterData:
			c.state = StateAuthenticating
			if c.register(ctx, r) {
				return nil
			}
			failures++
		case *proto.ChatData:
			c.notice("log in before sending messages")
		case *proto.LogoutData:
			return errLogout
		}
	}
}

func (c *connection) login(ctx context.Context, r *proto.LoginData) bool {
	username := auth.NormalizeUsername(r.Username)
	if !c.checkProtocol(actionLogin, r.Protocol) {
		return false
	}
	if username == "" {
		c.reject(actionLogin, core.ErrCodeInvalidRequest, "username is required")
		return false
	}

	var (
		ok  bool
		err error
	)
	switch {
	case r.Token != "":
		tokens := c.h.opts.Tokens
		if tokens == nil {
			c.reject(actionLogin, core.ErrCodeInvalidRequest, "token login is not enabled")
			return false
		}
		name, errToken := tokens.VerifyToken(r.Token)
		ok = errToken == nil && name == username
	case r.Secret == "":
		c.reject(actionLogin, core.ErrCodeInvalidRequest, "secret is required")
		return false
	default:
		gctx, cancel := c.gatewayContext(ctx)
		ok, err = c.h.gateway.Verify(gctx, username, r.Secret)
		cancel()
	}

	if err != nil {
		c.log.Warn().Err(err).Str("username", username).Msg("credential check failed")
		c.reject(actionLogin, core.ErrCodeUnavailable, "authentication service unavailable")
		return false
	}
	if !ok {
		c.reject(actionLogin, core.ErrCodeInvalidCredentials, "invalid username or secret")
		return false
	}
	return c.join(actionLogin, username)
}

func (c *connection) register(ctx context.Context, r *proto.RegisterData) bool {
	username := auth.NormalizeUsername(r.Username)
	if !c.checkProtocol(actionRegister, r.Protocol) {
		return false
	}
	if err := auth.ValidateCredentials(username, r.Secret); err != nil {
		c.reject(actionRegister, core.ErrCodeInvalidRequest, err.Error())
		return false
	}

	gctx, cancel := c.gatewayContext(ctx)
	err := c.h.gateway.Create(gctx, username, r.Secret)
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserExists):
		c.reject(actionRegister, core.ErrCodeUsernameTaken, "username is already registered")
		return false
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword):
		c.reject(actionRegister, core.ErrCodeInvalidRequest, err.Error())
		return false
	default:
		c.log.Warn().Err(err).Str("username", username).Msg("account creation failed")
		c.reject(actionRegister, core.ErrCodeUnavailable, "authentication service unavailable")
		return false
	}
	return c.join(actionRegister, username)
}

// join binds the connection to username. The acceptance is queued ahead of
// the roster broadcast by the registry.
func (c *connection) join(action, username string) bool {
	welcome := &core.Event{Kind: core.EventAuthAccepted, User: username}
	if tokens := c.h.opts.Tokens; tokens != nil {
		token, err := tokens.IssueToken(username)
		if err != nil {
			c.log.Warn().Err(err).Str("username", username).Msg("issue token")
		} else {
			welcome.Token = token
		}
	}

	if _, err := c.h.registry.TryRegister(username, c.client, welcome); err != nil {
		if errors.Is(err, core.ErrUsernameTaken) {
			c.reject(action, core.ErrCodeAlreadyOnline, "user is already online")
			return false
		}
		c.log.Error().Err(err).Str("username", username).Msg("register session")
		c.reject(action, core.ErrCodeUnavailable, "could not start session")
		return false
	}

	c.username = username
	c.state = StateOnline
	metrics.AuthAttempts.WithLabelValues(action, resultAccepted).Inc()
	c.log.Info().Str("username", username).Str("action", action).Msg("user online")
	return true
}

func (c *connection) online(ctx context.Context) error {
	for {
		frame, err := c.conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, proto.ErrFrameTooLarge) {
				c.notice("frame too large, dropped")
				continue
			}
			return err
		}

		req, err := proto.Decode(frame)
		if err != nil {
			c.notice(err.Error())
			continue
		}

		switch r := req.(type) {
		case *proto.ChatData:
			c.chat(r)
		case *proto.LogoutData:
			return errLogout
		case *proto.LoginData, *proto.RegisterData:
			c.notice(fmt.Sprintf("already logged in as %s", c.username))
		}
	}
}

func (c *connection) chat(r *proto.ChatData) {
	if strings.TrimSpace(r.Text) == "" {
		c.notice("empty message dropped")
		return
	}
	if limit := c.h.opts.MaxMessageLength; limit > 0 && utf8.RuneCountInString(r.Text) > limit {
		c.notice(fmt.Sprintf("message too long, limit is %d characters", limit))
		return
	}
	now := c.h.now()
	if !c.limiter.allow(now) {
		c.notice("rate limit exceeded, message dropped")
		return
	}

	c.h.broadcaster.Chat(core.Message{From: c.username, Text: r.Text, CreatedAt: now})
}

// finish runs once the read side is done. parent is the server context.
func (c *connection) finish(parent context.Context, cause error) {
	if parent.Err() != nil && c.client.Err() == nil {
		c.notice(noticeShuttingDown)
	}
	if c.state == StateOnline {
		c.h.registry.Deregister(c.username)
		c.log.Info().Str("username", c.username).Str("cause", describeCause(cause, c.client.Err())).Msg("user offline")
	}
	c.state = StateClosed
}

func (c *connection) gatewayContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.h.opts.GatewayTimeout > 0 {
		return context.WithTimeout(ctx, c.h.opts.GatewayTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *connection) checkProtocol(action string, version int) bool {
	if version == 0 || version == proto.ProtocolVersion {
		return true
	}
	c.reject(action, core.ErrCodeUnsupportedVersion,
		fmt.Sprintf("protocol version %d is not supported, server speaks %d", version, proto.ProtocolVersion))
	return false
}

func (c *connection) reject(action, code, msg string) {
	metrics.AuthAttempts.WithLabelValues(action, code).Inc()
	c.log.Debug().Str("action", action).Str("reason", code).Msg("auth rejected")
	c.client.Deliver(core.RejectedEvent(code, msg))
}

func (c *connection) notice(text string) {
	c.client.Deliver(core.NoticeEvent(text))
}

func (c *connection) writeLoop() {
	events := c.client.Events()
	for {
		select {
		case event := <-events:
			if err := c.write(event); err != nil {
				c.client.Kill(err)
				return
			}
		case <-c.client.Done():
			if !errors.Is(c.client.Err(), core.ErrClientClosed) {
				return
			}
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued after a normal close.
func (c *connection) flush() {
	events := c.client.Events()
	for {
		select {
		case event := <-events:
			if err := c.write(event); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *connection) write(event *core.Event) error {
	frame, err := proto.Encode(outboundFromEvent(event))
	if err != nil {
		c.log.Error().Err(err).Str("event", event.Kind.String()).Msg("encode event")
		return nil
	}

	ctx := context.Background()
	if c.h.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.h.opts.WriteTimeout)
		defer cancel()
	}
	if err := c.conn.WriteFrame(ctx, frame); err != nil {
		c.log.Debug().Err(err).Str("event", event.Kind.String()).Msg("write event")
		return err
	}
	return nil
}

func waitFor(done <-chan struct{}, timeout time.Duration) bool {
	if timeout <= 0 {
		<-done
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func describeCause(cause, clientErr error) string {
	switch {
	case errors.Is(clientErr, core.ErrSlowConsumer):
		return "slow consumer"
	case clientErr != nil && !errors.Is(clientErr, core.ErrClientClosed):
		return "write failed: " + clientErr.Error()
	case errors.Is(cause, errLogout):
		return "logout"
	case errors.Is(cause, io.EOF):
		return "peer closed"
	case errors.Is(cause, context.DeadlineExceeded):
		return "auth timeout"
	case errors.Is(cause, context.Canceled):
		return "shutdown"
	case cause == nil:
		return "unknown"
	default:
		return cause.Error()
	}
}
