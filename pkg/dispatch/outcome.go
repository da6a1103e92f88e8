package dispatch

import (
	"net/http"
	"time"
)

// TimestampLayout is RFC 3339 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Outcome is the single result of a dispatch call.
type Outcome struct {
	Success     bool          `json:"success"`
	MessageID   string        `json:"messageId,omitempty"`
	ChatName    string        `json:"chatName,omitempty"`
	ChatID      string        `json:"chatId,omitempty"`
	IsGroup     *bool         `json:"isGroup,omitempty"`
	Synthesized bool          `json:"synthesized,omitempty"`
	Destination string        `json:"destination"`
	Timestamp   string        `json:"timestamp"`
	Error       *OutcomeError `json:"error,omitempty"`
}

type OutcomeError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// HTTPStatus is 200 for a delivered message, the kind's status otherwise.
func (o Outcome) HTTPStatus() int {
	if o.Success {
		return http.StatusOK
	}
	if o.Error == nil {
		return http.StatusInternalServerError
	}
	return o.Error.Kind.HTTPStatus()
}

// Err returns the failure as an *Error, nil on success.
func (o Outcome) Err() error {
	if o.Success || o.Error == nil {
		return nil
	}
	return newError(o.Error.Kind, o.Error.Message, nil)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func failedOutcome(destination string, addr *CanonicalAddress, err error, at time.Time) Outcome {
	out := Outcome{
		Success:     false,
		Destination: destination,
		Timestamp:   formatTimestamp(at),
		Error:       &OutcomeError{Kind: KindOf(err), Message: err.Error()},
	}
	if addr != nil {
		out.ChatID = addr.PlatformID
		isGroup := addr.IsGroup()
		out.IsGroup = &isGroup
	}
	return out
}

func deliveredOutcome(destination string, handle ConversationHandle, msg SentMessage, at time.Time) Outcome {
	isGroup := handle.IsGroup
	return Outcome{
		Success:     true,
		MessageID:   msg.ID,
		ChatName:    handle.Name,
		ChatID:      handle.Address.PlatformID,
		IsGroup:     &isGroup,
		Synthesized: handle.Variant == Synthesized,
		Destination: destination,
		Timestamp:   formatTimestamp(at),
	}
}
