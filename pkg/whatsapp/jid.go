package whatsapp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

var ErrInvalidChatID = errors.New("invalid chat id")

// ToJID converts a chat id such as 553791470016@c.us or
// 120363142926103927@g.us into a whatsmeow JID.
func ToJID(chatID string) (types.JID, error) {
	addr, ok := dispatch.ParsePlatformID(strings.TrimSpace(chatID))
	if !ok {
		return types.EmptyJID, fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}
	if addr.IsGroup() {
		return types.NewJID(addr.Digits, types.GroupServer), nil
	}
	return types.NewJID(addr.Digits, types.DefaultUserServer), nil
}

// FromJID is the inverse of ToJID. Only user and group JIDs have a chat id.
func FromJID(jid types.JID) (string, bool) {
	if jid.User == "" {
		return "", false
	}
	switch jid.Server {
	case types.GroupServer:
		return jid.User + dispatch.GroupSuffix, true
	case types.DefaultUserServer:
		return jid.User + dispatch.ContactSuffix, true
	}
	return "", false
}

// e164Query formats digits the way IsOnWhatsApp expects them.
func e164Query(digits string) string {
	num, err := phonenumbers.Parse("+"+digits, "")
	if err != nil {
		return "+" + digits
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
