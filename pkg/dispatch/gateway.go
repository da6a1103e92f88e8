package dispatch

import (
	"context"
	"fmt"
)

// Conversation is one entry of a gateway listing.
type Conversation struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	IsGroup      bool     `json:"isGroup"`
	Participants []string `json:"participants,omitempty"`
}

// SentMessage identifies a message accepted by the remote platform.
type SentMessage struct {
	ID string `json:"id"`
}

// OutgoingFile is a binary ready to be sent. Filename is always derived by
// the classifier, never taken from the caller.
type OutgoingFile struct {
	Data      []byte
	Filename  string
	MediaType string
}

// SessionGateway is the messaging session the dispatcher drives.
type SessionGateway interface {
	IsReady() bool
	ListConversations(ctx context.Context) ([]Conversation, error)
	SendText(ctx context.Context, platformID string, text string) (SentMessage, error)
	SendBinary(ctx context.Context, platformID string, file OutgoingFile, caption string) (SentMessage, error)
}

// RegistrationChecker is implemented by gateways that can tell whether a
// number exists on the platform.
type RegistrationChecker interface {
	CheckRegistered(ctx context.Context, platformID string) (bool, error)
}

// Serialize returns a gateway that lets at most one call through at a time.
// Waiting callers give up when their context ends.
func Serialize(gw SessionGateway) SessionGateway {
	s := &serialGateway{next: gw, slot: make(chan struct{}, 1)}
	if rc, ok := gw.(RegistrationChecker); ok {
		return &serialCheckingGateway{serialGateway: s, checker: rc}
	}
	return s
}

type serialGateway struct {
	next SessionGateway
	slot chan struct{}
}

func (s *serialGateway) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *serialGateway) release() {
	<-s.slot
}

func (s *serialGateway) IsReady() bool {
	return s.next.IsReady()
}

func (s *serialGateway) ListConversations(ctx context.Context) ([]Conversation, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return s.next.ListConversations(ctx)
}

func (s *serialGateway) SendText(ctx context.Context, platformID string, text string) (SentMessage, error) {
	if err := s.acquire(ctx); err != nil {
		return SentMessage{}, err
	}
	defer s.release()
	return s.next.SendText(ctx, platformID, text)
}

func (s *serialGateway) SendBinary(ctx context.Context, platformID string, file OutgoingFile, caption string) (SentMessage, error) {
	if err := s.acquire(ctx); err != nil {
		return SentMessage{}, err
	}
	defer s.release()
	return s.next.SendBinary(ctx, platformID, file, caption)
}

type serialCheckingGateway struct {
	*serialGateway
	checker RegistrationChecker
}

func (s *serialCheckingGateway) CheckRegistered(ctx context.Context, platformID string) (bool, error) {
	if err := s.acquire(ctx); err != nil {
		return false, err
	}
	defer s.release()
	return s.checker.CheckRegistered(ctx, platformID)
}

// await runs fn and returns early when ctx ends, so a gateway that ignores
// its context cannot hold the caller past the deadline.
func await[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- result{err: newError(Internal, fmt.Sprintf("gateway panic: %v", rec), nil)}
			}
		}()
		v, err := fn()
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
