// Package audit records security-relevant authentication events and ships
// them to a sink (log, AMQP) without blocking the request path.
package audit

import (
	"context"
	"time"
)

// Kind names an event type.
type Kind string

const (
	KindUserRegistered     Kind = "user.registered"
	KindLoginFailed        Kind = "user.login_failed"
	KindTokenRotated       Kind = "token.rotated"
	KindTokenRevoked       Kind = "token.revoked"
	KindTokenReuseDetected Kind = "token.reuse_detected"
)

// Event is one audit record. It never carries secrets.
type Event struct {
	Kind    Kind      `json:"kind"`
	UserID  string    `json:"user_id,omitempty"`
	TokenID string    `json:"token_id,omitempty"`
	Email   string    `json:"email,omitempty"`
	At      time.Time `json:"at"`
}

// Recorder accepts events from the services.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Sink delivers events somewhere durable or visible.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

func UserRegistered(userID string, at time.Time) Event {
	return Event{Kind: KindUserRegistered, UserID: userID, At: at}
}

func LoginFailed(email string, at time.Time) Event {
	return Event{Kind: KindLoginFailed, Email: email, At: at}
}

func TokenRotated(userID, tokenID string, at time.Time) Event {
	return Event{Kind: KindTokenRotated, UserID: userID, TokenID: tokenID, At: at}
}

func TokenRevoked(userID, tokenID string, at time.Time) Event {
	return Event{Kind: KindTokenRevoked, UserID: userID, TokenID: tokenID, At: at}
}

// TokenReuseDetected is emitted when a rotated refresh secret is presented
// again, which usually means it leaked.
func TokenReuseDetected(userID, tokenID string, at time.Time) Event {
	return Event{Kind: KindTokenReuseDetected, UserID: userID, TokenID: tokenID, At: at}
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) {}

// Nop returns a Recorder that drops everything.
func Nop() Recorder { return nopRecorder{} }
