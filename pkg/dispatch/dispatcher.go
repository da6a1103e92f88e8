// Package dispatch delivers a text or binary payload to a WhatsApp group or
// contact through a single messaging session.
//
// A dispatch runs four steps in a fixed order: the destination is
// normalized, the conversation is resolved on the session (bootstrapping
// individual chats that are not listed yet), the payload is classified and
// exactly one send is issued. Every failure ends up in the returned Outcome.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultTimeout = 30 * time.Second

type Config struct {
	CountryCode   string
	BootstrapText string
	SettleDelay   time.Duration
	// Timeout bounds a dispatch when the caller context has no earlier deadline.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		CountryCode:   DefaultCountryCode,
		BootstrapText: DefaultBootstrapText,
		SettleDelay:   DefaultSettleDelay,
		Timeout:       DefaultTimeout,
	}
}

type Dispatcher struct {
	normalizer Normalizer
	resolver   *Resolver
	gateway    SessionGateway
	timeout    time.Duration
	log        logrus.FieldLogger
	now        func() time.Time
}

func NewDispatcher(gw SessionGateway, cfg Config, logger logrus.FieldLogger) (*Dispatcher, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	resolver, err := NewResolver(gw, ResolverConfig{
		BootstrapText: cfg.BootstrapText,
		SettleDelay:   cfg.SettleDelay,
	}, logger)
	if err != nil {
		return nil, err
	}

	cc := Digits(cfg.CountryCode)
	if cfg.CountryCode != "" && (cc != cfg.CountryCode || len(cc) > 3) {
		return nil, errors.New("country code must be 1 to 3 digits")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Dispatcher{
		normalizer: Normalizer{CountryCode: cc},
		resolver:   resolver,
		gateway:    gw,
		timeout:    timeout,
		log:        logger,
		now:        time.Now,
	}, nil
}

// Gateway returns the session the dispatcher sends through.
func (d *Dispatcher) Gateway() SessionGateway {
	return d.gateway
}

// Normalize exposes the dispatcher's normalizer to callers that only need
// to compute a platform id.
func (d *Dispatcher) Normalize(raw string) (CanonicalAddress, error) {
	return d.normalizer.Normalize(raw)
}

// Dispatch delivers payload to destination. It never panics and reports
// every failure through the returned Outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, destination string, payload Payload) (out Outcome) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	entry := d.log.WithField("destination", destination)
	started := d.now()

	defer func() {
		if rec := recover(); rec != nil {
			entry.WithField("panic", rec).Error("Dispatch panicked")
			out = failedOutcome(destination, nil, newError(Internal, fmt.Sprintf("unexpected failure: %v", rec), nil), d.now())
		}
	}()

	addr, err := d.normalizer.Normalize(destination)
	if err != nil {
		entry.WithError(err).Warn("Destination rejected")
		return failedOutcome(destination, nil, err, d.now())
	}
	entry = entry.WithField("chat_id", addr.PlatformID)

	handle, err := d.resolver.Resolve(ctx, addr, destination)
	if err != nil {
		entry.WithError(err).WithField("kind", KindOf(err)).Warn("Conversation not resolved")
		return failedOutcome(destination, &addr, err, d.now())
	}

	strategy, err := Classify(payload)
	if err != nil {
		entry.WithError(err).Warn("Payload rejected")
		return failedOutcome(destination, &addr, err, d.now())
	}

	msg, err := d.send(ctx, handle, strategy, payload)
	completed := d.now()
	if err != nil {
		entry.WithError(err).WithField("kind", KindOf(err)).Error("Delivery failed")
		return failedOutcome(destination, &addr, err, completed)
	}

	entry.WithFields(logrus.Fields{
		"message_id":  msg.ID,
		"strategy":    strategy,
		"synthesized": handle.Variant == Synthesized,
		"duration_ms": completed.Sub(started).Milliseconds(),
	}).Info("Message delivered")

	return deliveredOutcome(destination, handle, msg, completed)
}

func (d *Dispatcher) send(ctx context.Context, handle ConversationHandle, strategy Strategy, payload Payload) (SentMessage, error) {
	platformID := handle.Address.PlatformID

	var (
		msg SentMessage
		err error
	)
	switch strategy {
	case StrategySendBinary:
		file := OutgoingFileFor(*payload.Binary)
		msg, err = await(ctx, func() (SentMessage, error) {
			return d.gateway.SendBinary(ctx, platformID, file, payload.Text)
		})
	case StrategySendText:
		msg, err = await(ctx, func() (SentMessage, error) {
			return d.gateway.SendText(ctx, platformID, payload.Text)
		})
	default:
		return SentMessage{}, newError(Internal, "unknown delivery strategy "+string(strategy), nil)
	}

	if err != nil {
		return SentMessage{}, classifyGatewayError(ctx, DeliveryFailed, "sending to "+platformID+" failed", err)
	}
	if msg.ID == "" {
		return SentMessage{}, newError(DeliveryFailed, "gateway accepted the message without an id", nil)
	}
	return msg, nil
}
