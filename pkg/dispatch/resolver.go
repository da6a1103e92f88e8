package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/rivo/uniseg"
	"github.com/sirupsen/logrus"
)

// HandleVariant tells a conversation confirmed by the gateway listing apart
// from an optimistic one built after an unsuccessful bootstrap.
type HandleVariant string

const (
	Resolved    HandleVariant = "resolved"
	Synthesized HandleVariant = "synthesized"
)

const (
	DefaultBootstrapText = "👋"
	DefaultSettleDelay   = 2 * time.Second
	maxSettleDelay       = 10 * time.Second
)

// ConversationHandle is a read only view of one remote conversation, built
// fresh on every resolution.
type ConversationHandle struct {
	Variant HandleVariant
	Address CanonicalAddress
	Name    string
	IsGroup bool
}

func (h ConversationHandle) Exists() bool {
	return h.Variant == Resolved
}

type ResolverConfig struct {
	BootstrapText string
	SettleDelay   time.Duration
}

// Resolver finds the conversation behind an address, bootstrapping
// individual chats that are not listed yet.
type Resolver struct {
	gateway       SessionGateway
	bootstrapText string
	settleDelay   time.Duration
	log           logrus.FieldLogger
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewResolver(gw SessionGateway, cfg ResolverConfig, logger logrus.FieldLogger) (*Resolver, error) {
	if gw == nil {
		return nil, errors.New("session gateway is required")
	}

	text := cfg.BootstrapText
	if text == "" {
		text = DefaultBootstrapText
	}
	if uniseg.GraphemeClusterCount(text) != 1 {
		return nil, errors.New("bootstrap text must be a single character")
	}

	delay := cfg.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	if delay > maxSettleDelay {
		return nil, errors.New("bootstrap settle delay must not exceed " + maxSettleDelay.String())
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Resolver{
		gateway:       gw,
		bootstrapText: text,
		settleDelay:   delay,
		log:           logger,
		sleep:         sleepContext,
	}, nil
}

// Resolve returns the conversation for addr. raw is the destination as the
// caller wrote it and names a synthesized handle.
func (r *Resolver) Resolve(ctx context.Context, addr CanonicalAddress, raw string) (ConversationHandle, error) {
	if !r.gateway.IsReady() {
		return ConversationHandle{}, newError(SessionNotReady, "whatsapp session is not ready", nil)
	}

	conv, found, err := r.lookup(ctx, addr)
	if err != nil {
		return ConversationHandle{}, classifyGatewayError(ctx, SessionNotReady, "listing conversations failed", err)
	}
	if found {
		return resolvedHandle(addr, conv), nil
	}

	if addr.IsGroup() {
		return ConversationHandle{}, newError(RecipientNotFound, "group "+addr.PlatformID+" not found among the session conversations", nil)
	}

	return r.bootstrap(ctx, addr, raw)
}

func (r *Resolver) bootstrap(ctx context.Context, addr CanonicalAddress, raw string) (ConversationHandle, error) {
	entry := r.log.WithField("chat_id", addr.PlatformID)

	if checker, ok := r.gateway.(RegistrationChecker); ok {
		registered, err := await(ctx, func() (bool, error) {
			return checker.CheckRegistered(ctx, addr.PlatformID)
		})
		switch {
		case err != nil && ctx.Err() != nil:
			return ConversationHandle{}, newError(Timeout, "registration check interrupted", err)
		case err != nil:
			entry.WithError(err).Warn("Registration check failed, continuing with bootstrap")
		case !registered:
			return ConversationHandle{}, newError(RecipientNotFound, addr.Digits+" is not registered on whatsapp", nil)
		}
	}

	entry.Info("Conversation not listed, sending bootstrap message")
	_, err := await(ctx, func() (SentMessage, error) {
		return r.gateway.SendText(ctx, addr.PlatformID, r.bootstrapText)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ConversationHandle{}, newError(Timeout, "bootstrap message interrupted", err)
		}
		entry.WithError(err).Warn("Bootstrap message failed, using synthesized conversation")
		return synthesizedHandle(addr, raw), nil
	}

	if err := r.sleep(ctx, r.settleDelay); err != nil {
		return ConversationHandle{}, newError(Timeout, "waiting for conversation to appear", err)
	}

	conv, found, err := r.lookup(ctx, addr)
	if err != nil {
		if ctx.Err() != nil {
			return ConversationHandle{}, newError(Timeout, "listing conversations interrupted", err)
		}
		entry.WithError(err).Warn("Listing after bootstrap failed, using synthesized conversation")
		return synthesizedHandle(addr, raw), nil
	}
	if found {
		return resolvedHandle(addr, conv), nil
	}

	entry.Warn("Conversation still not listed after bootstrap, using synthesized conversation")
	return synthesizedHandle(addr, raw), nil
}

func (r *Resolver) lookup(ctx context.Context, addr CanonicalAddress) (Conversation, bool, error) {
	convs, err := await(ctx, func() ([]Conversation, error) {
		return r.gateway.ListConversations(ctx)
	})
	if err != nil {
		return Conversation{}, false, err
	}
	for _, conv := range convs {
		if conv.ID == addr.PlatformID {
			return conv, true, nil
		}
	}
	return Conversation{}, false, nil
}

func resolvedHandle(addr CanonicalAddress, conv Conversation) ConversationHandle {
	name := conv.Name
	if name == "" {
		name = addr.Digits
	}
	return ConversationHandle{
		Variant: Resolved,
		Address: addr,
		Name:    name,
		IsGroup: addr.IsGroup(),
	}
}

func synthesizedHandle(addr CanonicalAddress, raw string) ConversationHandle {
	name := raw
	if name == "" {
		name = addr.Digits
	}
	return ConversationHandle{
		Variant: Synthesized,
		Address: addr,
		Name:    name,
		IsGroup: false,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
