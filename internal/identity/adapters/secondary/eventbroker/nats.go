// Package eventbroker publishes the identity service's async side-channel
// events (spec §9: "process-wide state is limited to..." — this is not
// part of the synchronous broker RPC surface in §6, which lives in
// adapters/primary/broker instead). Retained from the durable JetStream
// publishing pattern this codebase already used for inter-service events.
package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	StreamName     = "IDENTITY"
	SubjectPattern = "identity.>"
)

type NatsBroker struct {
	js jetstream.JetStream
}

// NewNatsBroker connects to conn (shared with the primary RPC adapter) and
// idempotently ensures the IDENTITY stream exists.
func NewNatsBroker(ctx context.Context, nc *nats.Conn) (*NatsBroker, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	createCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(createCtx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{js: js}, nil
}

type UserRegisteredEvent struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (n *NatsBroker) PublishUserRegistered(ctx context.Context, userID, email string) error {
	data, err := json.Marshal(UserRegisteredEvent{UserID: userID, Email: email})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = n.js.Publish(ctx, "identity.user.registered", data)
	if err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}
