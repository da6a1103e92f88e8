// Package outcome fans dispatch outcomes out to the activity journal and,
// when configured, to a message broker.
package outcome

import (
	"time"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

type EventType string

const (
	EventDispatchDelivered EventType = "dispatch.delivered"
	EventDispatchFailed    EventType = "dispatch.failed"
	EventReportSent        EventType = "report.sent"
	EventReportFailed      EventType = "report.failed"
)

// Event is one published outcome. Source names the entry point that
// produced it, Data carries entry point specific fields such as the CNPJ.
type Event struct {
	Type      EventType              `json:"event_type"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Outcome   dispatch.Outcome       `json:"outcome"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// NewDispatchEvent wraps the outcome of a direct send.
func NewDispatchEvent(source string, out dispatch.Outcome) Event {
	typ := EventDispatchDelivered
	if !out.Success {
		typ = EventDispatchFailed
	}
	return Event{Type: typ, Source: source, Timestamp: time.Now().UTC(), Outcome: out}
}

// NewReportEvent wraps the outcome of a report delivery for a company.
func NewReportEvent(source string, out dispatch.Outcome, data map[string]interface{}) Event {
	typ := EventReportSent
	if !out.Success {
		typ = EventReportFailed
	}
	return Event{Type: typ, Source: source, Timestamp: time.Now().UTC(), Outcome: out, Data: data}
}

// Fields flattens the event for structured logs.
func (e Event) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"event":       string(e.Type),
		"source":      e.Source,
		"destination": e.Outcome.Destination,
	}
	if e.Outcome.ChatID != "" {
		fields["chatId"] = e.Outcome.ChatID
	}
	if e.Outcome.MessageID != "" {
		fields["messageId"] = e.Outcome.MessageID
	}
	if e.Outcome.ChatName != "" {
		fields["chatName"] = e.Outcome.ChatName
	}
	if e.Outcome.Synthesized {
		fields["synthesized"] = true
	}
	if e.Outcome.Error != nil {
		fields["errorKind"] = string(e.Outcome.Error.Kind)
		fields["error"] = e.Outcome.Error.Message
	}
	for k, v := range e.Data {
		fields[k] = v
	}
	return fields
}
