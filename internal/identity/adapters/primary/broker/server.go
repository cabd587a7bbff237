// Package broker adapts the identity service's primary port to the broker
// RPC surface in spec §6: request/reply over a named queue, one subject,
// discriminated by a command field, JSON payload shaped like the gateway's
// HTTP bodies. Subscribers join a NATS queue group so replicas of this
// service load-share a single logical queue, approximating the
// durable-queued delivery spec §6 describes without requiring a JetStream
// pull-consumer round trip for every synchronous call.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/wrenhollow/aegis/internal/identity/core/domain"
	"github.com/wrenhollow/aegis/internal/identity/core/ports"
)

const (
	CommandSignUp        = "sign-up"
	CommandSignIn        = "sign-in"
	CommandRefreshToken  = "refresh-token"
	CommandValidateToken = "validate-token"
	CommandVerifyUser    = "verify-user"
)

// Envelope is the wire shape of every request: a command discriminator and
// a JSON payload matching the HTTP body shape for that operation.
type Envelope struct {
	Command string          `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// Reply always carries either a populated result or an error string; never
// both. Token-flow failures (§7) are not transported as NATS errors — they
// arrive as a populated ValidationResult with IsValid=false, same as the
// HTTP boundary. Kind distinguishes Validation (400) from Conflict (409)
// failures so the gateway doesn't have to pattern-match message text.
type Reply struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Kind   string `json:"kind,omitempty"`
}

type signUpPayload struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type signInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPayload struct {
	Token string `json:"token"`
}

type verifyPayload struct {
	Key string `json:"key"`
}

// Server subscribes to the RPC subject under a queue group and dispatches
// each request to the identity service.
type Server struct {
	service ports.IdentityService
	nc      *nats.Conn
	subject string
	queue   string
	sub     *nats.Subscription
}

func NewServer(nc *nats.Conn, subject, queue string, service ports.IdentityService) *Server {
	return &Server{service: service, nc: nc, subject: subject, queue: queue}
}

// Start registers the queue-group subscription. Each message is handled in
// its own goroutine so one slow RPC doesn't block the subscription's
// delivery channel.
func (s *Server) Start() error {
	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, func(msg *nats.Msg) {
		go s.handle(msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	return nil
}

func (s *Server) Stop() error {
	if s.sub == nil {
		return nil
	}
	return s.sub.Drain()
}

func (s *Server) handle(msg *nats.Msg) {
	ctx := context.Background()

	var env Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		s.reply(msg, Reply{Error: "malformed request"})
		return
	}

	var (
		result any
		err    error
	)

	switch env.Command {
	case CommandSignUp:
		result, err = s.signUp(ctx, env.Payload)
	case CommandSignIn:
		result, err = s.signIn(ctx, env.Payload)
	case CommandRefreshToken:
		result, err = s.refreshToken(ctx, env.Payload)
	case CommandValidateToken:
		result, err = s.validateToken(ctx, env.Payload)
	case CommandVerifyUser:
		result, err = s.verifyUser(ctx, env.Payload)
	default:
		err = fmt.Errorf("unknown command %q", env.Command)
	}

	if err != nil {
		slog.Error("identity rpc failed", "command", env.Command, "error", err)
		message, kind := mapDomainError(err)
		s.reply(msg, Reply{Error: message, Kind: kind})
		return
	}

	s.reply(msg, Reply{Result: result})
}

func (s *Server) reply(msg *nats.Msg, r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		slog.Error("marshal rpc reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		slog.Error("respond rpc", "error", err)
	}
}

func (s *Server) signUp(ctx context.Context, raw json.RawMessage) (*ports.StatusResponse, error) {
	var p signUpPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode sign-up payload: %w", err)
	}
	return s.service.SignUp(ctx, ports.SignUpCmd{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Password:  p.Password,
	})
}

func (s *Server) signIn(ctx context.Context, raw json.RawMessage) (*ports.TokenResponse, error) {
	var p signInPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode sign-in payload: %w", err)
	}
	return s.service.SignIn(ctx, ports.SignInCmd{Email: p.Email, Password: p.Password})
}

func (s *Server) refreshToken(ctx context.Context, raw json.RawMessage) (any, error) {
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode refresh payload: %w", err)
	}
	tokens, invalid, err := s.service.RefreshToken(ctx, p.Token)
	if err != nil {
		return nil, err
	}
	if invalid != nil {
		return invalid, nil
	}
	return tokens, nil
}

func (s *Server) validateToken(ctx context.Context, raw json.RawMessage) (*ports.ValidationResult, error) {
	var p tokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode validate payload: %w", err)
	}
	return s.service.ValidateToken(ctx, p.Token)
}

func (s *Server) verifyUser(ctx context.Context, raw json.RawMessage) (*ports.StatusResponse, error) {
	var p verifyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode verify payload: %w", err)
	}
	return s.service.VerifyUser(ctx, p.Key)
}

// Kinds mirror spec §7's enumerated error kinds that cross the protocol
// boundary as data rather than as transport failures.
const (
	KindValidation = "Validation"
	KindConflict   = "Conflict"
	KindInvalidKey = "InvalidKey"
)

// mapDomainError keeps internal failure detail out of the reply; only
// recognized validation/conflict sentinels are surfaced verbatim, each
// tagged with the error kind spec §7 defines so the gateway can pick an
// HTTP status without parsing message text.
func mapDomainError(err error) (message, kind string) {
	switch {
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return "User with such email already exists", KindConflict
	case errors.Is(err, domain.ErrUserNotFound):
		return "no such user", KindConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "bad password", KindConflict
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrInvalidName), errors.Is(err, domain.ErrWeakPassword):
		return err.Error(), KindValidation
	case errors.Is(err, domain.ErrInvalidKey):
		return "invalid verification key", KindInvalidKey
	default:
		return "identity service unavailable", ""
	}
}
