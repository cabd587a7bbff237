// Package identityclient is the gateway's side of the broker RPC surface
// in spec §6: it packages each auth HTTP body into the identity service's
// command envelope, sends it as a NATS request, and decodes the reply.
package identityclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

var ErrUpstreamUnavailable = errors.New("identity service unavailable")

type envelope struct {
	Command string `json:"command"`
	Payload any    `json:"payload"`
}

type reply struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   string          `json:"kind,omitempty"`
}

// Error kinds mirrored from the identity service's broker reply (spec §7).
const (
	KindValidation = "Validation"
	KindConflict   = "Conflict"
	KindInvalidKey = "InvalidKey"
)

type Client struct {
	nc      *nats.Conn
	subject string
}

func NewClient(nc *nats.Conn, subject string) *Client {
	return &Client{nc: nc, subject: subject}
}

// RequestError carries a message and kind the identity service chose to
// surface (validation/conflict/invalid-key); the gateway maps Kind
// straight to an HTTP status per spec §7.
type RequestError struct {
	Message string
	Kind    string
}

func (e *RequestError) Error() string { return e.Message }

func (c *Client) call(ctx context.Context, command string, payload, out any) error {
	data, err := json.Marshal(envelope{Command: command, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	msg, err := c.nc.RequestWithContext(ctx, c.subject, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	var r reply
	if err := json.Unmarshal(msg.Data, &r); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}

	if r.Error != "" {
		return &RequestError{Message: r.Error, Kind: r.Kind}
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(r.Result, out)
}

type SignUpRequest struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.call(ctx, "sign-up", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (c *Client) SignIn(ctx context.Context, req SignInRequest) (*TokenResponse, error) {
	out := new(TokenResponse)
	if err := c.call(ctx, "sign-in", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

type ValidationResult struct {
	IsValid    bool   `json:"is_valid"`
	IsVerified bool   `json:"is_verified"`
	Message    string `json:"message"`
}

// RefreshToken's reply is shaped like *either* TokenResponse or
// ValidationResult depending on success (spec §6). RefreshReply holds
// both shapes: access_token/refresh_token are set on success,
// is_valid/message on failure, and the fields of the other shape stay
// empty and are omitted when the reply is re-encoded.
type RefreshReply struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IsValid      *bool  `json:"is_valid,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (c *Client) RefreshToken(ctx context.Context, token string) (*RefreshReply, error) {
	out := new(RefreshReply)
	if err := c.call(ctx, "refresh-token", map[string]string{"token": token}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ValidateToken(ctx context.Context, token string) (*ValidationResult, error) {
	out := new(ValidationResult)
	if err := c.call(ctx, "validate-token", map[string]string{"token": token}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) VerifyUser(ctx context.Context, key string) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.call(ctx, "verify-user", map[string]string{"key": key}, out); err != nil {
		return nil, err
	}
	return out, nil
}
