package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrProtocol marks frames that cannot be decoded into a known request.
var ErrProtocol = errors.New("protocol error")

// Request is a decoded client frame: *LoginData, *RegisterData, *ChatData or *LogoutData.
type Request interface {
	RequestType() string
}

func (*LoginData) RequestType() string    { return InboundTypeLogin }
func (*RegisterData) RequestType() string { return InboundTypeRegister }
func (*ChatData) RequestType() string     { return InboundTypeChat }
func (*LogoutData) RequestType() string   { return InboundTypeLogout }

// Decode parses one frame. It rejects unknown types, unknown fields,
// mistyped values and trailing data instead of coercing them.
func Decode(frame []byte) (Request, error) {
	var env Inbound
	if err := strictUnmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProtocol, err)
	}

	var req Request
	switch env.Type {
	case InboundTypeLogin:
		req = &LoginData{}
	case InboundTypeRegister:
		req = &RegisterData{}
	case InboundTypeChat:
		req = &ChatData{}
	case InboundTypeLogout:
		req = &LogoutData{}
	case "":
		return nil, fmt.Errorf("%w: missing message type", ErrProtocol)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrProtocol, env.Type)
	}

	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		if env.Type == InboundTypeLogout {
			return req, nil
		}
		return nil, fmt.Errorf("%w: %s requires data", ErrProtocol, env.Type)
	}
	if err := strictUnmarshal(env.Data, req); err != nil {
		return nil, fmt.Errorf("%w: %s data: %v", ErrProtocol, env.Type, err)
	}
	return req, nil
}

// Encode serialises an outbound envelope without a trailing delimiter.
func Encode(out Outbound) ([]byte, error) {
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", out.Type, err)
	}
	return data, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after object")
	}
	return nil
}
