package whatsapp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"google.golang.org/protobuf/proto"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

var (
	_ dispatch.SessionGateway      = (*Session)(nil)
	_ dispatch.RegistrationChecker = (*Session)(nil)
)

// listTimeout bounds a shared listing, which no single caller owns.
const listTimeout = 30 * time.Second

// ListConversations merges joined groups, address book contacts and chats
// seen in message traffic. Concurrent callers share one listing.
func (s *Session) ListConversations(ctx context.Context) ([]dispatch.Conversation, error) {
	if !s.IsReady() {
		return nil, ErrNotReady
	}
	return s.sharedListing(ctx, s.listConversations)
}

// sharedListing runs fetch once for every concurrent caller. fetch gets a
// context detached from the callers; each caller waits on its own ctx only.
func (s *Session) sharedListing(ctx context.Context, fetch func(context.Context) ([]dispatch.Conversation, error)) ([]dispatch.Conversation, error) {
	ch := s.listings.DoChan("conversations", func() (interface{}, error) {
		listCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listTimeout)
		defer cancel()
		return fetch(listCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		convs := res.Val.([]dispatch.Conversation)
		out := make([]dispatch.Conversation, len(convs))
		copy(out, convs)
		return out, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) listConversations(ctx context.Context) ([]dispatch.Conversation, error) {
	groups, err := s.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("list joined groups: %w", err)
	}

	contacts, err := s.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.WithError(err).Warn("Could not read contacts, listing groups and known chats only")
	}
	return mergeConversations(groups, contacts, s.registry.Snapshot()), nil
}

// mergeConversations lists joined groups first, then contacts sorted by id,
// then known individual chats missing from both. Known names fill blanks.
func mergeConversations(groups []*types.GroupInfo, contacts map[types.JID]types.ContactInfo, known []dispatch.Conversation) []dispatch.Conversation {
	out := groupConversations(groups)
	seen := make(map[string]int, len(out))
	for i, conv := range out {
		seen[conv.ID] = i
	}

	var individuals []dispatch.Conversation
	for jid, info := range contacts {
		id, ok := FromJID(jid)
		if !ok || jid.Server != types.DefaultUserServer {
			continue
		}
		individuals = append(individuals, dispatch.Conversation{ID: id, Name: contactName(info, jid.User)})
	}
	sort.Slice(individuals, func(i, j int) bool { return individuals[i].ID < individuals[j].ID })
	for _, conv := range individuals {
		seen[conv.ID] = len(out)
		out = append(out, conv)
	}

	for _, conv := range known {
		if i, ok := seen[conv.ID]; ok {
			if out[i].Name == "" {
				out[i].Name = conv.Name
			}
			continue
		}
		// A group that is no longer joined must not be reported as reachable.
		if conv.IsGroup {
			continue
		}
		if conv.Name == "" {
			addr, _ := dispatch.ParsePlatformID(conv.ID)
			conv.Name = addr.Digits
		}
		seen[conv.ID] = len(out)
		out = append(out, conv)
	}
	return out
}

func contactName(info types.ContactInfo, fallback string) string {
	for _, name := range []string{info.FullName, info.FirstName, info.BusinessName, info.PushName} {
		if name != "" {
			return name
		}
	}
	return fallback
}

func (s *Session) prepareSend(ctx context.Context, chatID string) (types.JID, error) {
	jid, err := ToJID(chatID)
	if err != nil {
		return types.EmptyJID, err
	}
	if !s.IsReady() {
		return types.EmptyJID, ErrNotReady
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return types.EmptyJID, err
	}
	return jid, nil
}

func (s *Session) send(ctx context.Context, chatID string, jid types.JID, msg *waE2E.Message) (dispatch.SentMessage, error) {
	extra := whatsmeow.SendRequestExtra{ID: s.client.GenerateMessageID()}
	if _, err := s.client.SendMessage(ctx, jid, msg, extra); err != nil {
		return dispatch.SentMessage{}, err
	}
	s.remember(dispatch.Conversation{ID: chatID, IsGroup: jid.Server == types.GroupServer})
	return dispatch.SentMessage{ID: extra.ID}, nil
}

func (s *Session) SendText(ctx context.Context, chatID string, text string) (dispatch.SentMessage, error) {
	jid, err := s.prepareSend(ctx, chatID)
	if err != nil {
		return dispatch.SentMessage{}, err
	}
	return s.send(ctx, chatID, jid, &waE2E.Message{Conversation: proto.String(text)})
}

// SendBinary sends a PDF as a document and anything else as an image.
func (s *Session) SendBinary(ctx context.Context, chatID string, file dispatch.OutgoingFile, caption string) (dispatch.SentMessage, error) {
	jid, err := s.prepareSend(ctx, chatID)
	if err != nil {
		return dispatch.SentMessage{}, err
	}
	msg, err := s.buildMediaMessage(ctx, file, caption)
	if err != nil {
		return dispatch.SentMessage{}, err
	}
	return s.send(ctx, chatID, jid, msg)
}

// CheckRegistered asks WhatsApp whether an individual number has an
// account. Groups are always reported as registered.
func (s *Session) CheckRegistered(ctx context.Context, chatID string) (bool, error) {
	addr, ok := dispatch.ParsePlatformID(chatID)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrInvalidChatID, chatID)
	}
	if addr.IsGroup() {
		return true, nil
	}
	if !s.IsReady() {
		return false, ErrNotReady
	}
	infos, err := s.client.IsOnWhatsApp(ctx, []string{e164Query(addr.Digits)})
	if err != nil {
		return false, err
	}
	return len(infos) > 0 && infos[0].IsIn, nil
}
