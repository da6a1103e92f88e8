package whatsapp

import (
	"context"
	"strings"
	"time"

	"github.com/forPelevin/gomoji"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

const (
	DefaultStatusCommand = "!status"
	StatusReply          = "✅ Bot ERP está online!"

	commandReplyTimeout = 15 * time.Second
)

func messageText(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if text := msg.GetConversation(); text != "" {
		return text
	}
	return msg.GetExtendedTextMessage().GetText()
}

// isCommand matches a command ignoring case, surrounding space and emoji.
func isCommand(text string, command string) bool {
	if command == "" {
		return false
	}
	clean := strings.TrimSpace(gomoji.RemoveEmojis(text))
	return strings.EqualFold(clean, command)
}

func (s *Session) handleMessage(evt *events.Message) {
	id, ok := FromJID(evt.Info.Chat)
	if !ok {
		return
	}

	conv := dispatch.Conversation{ID: id, IsGroup: evt.Info.IsGroup}
	if !evt.Info.IsGroup && !evt.Info.IsFromMe {
		conv.Name = evt.Info.PushName
	}
	s.remember(conv)

	if !evt.Info.IsGroup || evt.Info.IsFromMe {
		return
	}
	if !isCommand(messageText(evt.Message), s.cfg.StatusCommand) {
		return
	}

	// Event handlers run on the client's event loop; reply off it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandReplyTimeout)
		defer cancel()
		if _, err := s.SendText(ctx, id, StatusReply); err != nil {
			s.log.WithError(err).WithField("chat_id", id).Warn("Failed to answer status command")
			return
		}
		s.log.WithField("chat_id", id).Info("Answered status command")
	}()
}
