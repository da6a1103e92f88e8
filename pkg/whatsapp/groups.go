package whatsapp

import (
	"context"
	"sort"
	"time"

	"go.mau.fi/whatsmeow/types"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

// GroupParticipant is a group member. WhatsApp may report a LID instead of
// the phone JID for members with privacy features on.
type GroupParticipant struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	IsAdmin     bool   `json:"isAdmin"`
	DisplayName string `json:"displayName,omitempty"`
}

// GroupSummary is what the group listing endpoint returns per group.
type GroupSummary struct {
	ID                string             `json:"id"`
	Name              string             `json:"name"`
	Topic             string             `json:"topic,omitempty"`
	ParticipantsCount int                `json:"participantsCount"`
	Participants      []GroupParticipant `json:"participants,omitempty"`
	IsAnnounce        bool               `json:"isAnnounce"`
	IsLocked          bool               `json:"isLocked"`
	CreatedAt         *time.Time         `json:"createdAt,omitempty"`
}

func summarizeGroup(group *types.GroupInfo, withParticipants bool) GroupSummary {
	id, _ := FromJID(group.JID)
	summary := GroupSummary{
		ID:                id,
		Name:              group.Name,
		Topic:             group.Topic,
		ParticipantsCount: len(group.Participants),
		IsAnnounce:        group.IsAnnounce,
		IsLocked:          group.IsLocked,
	}
	if !group.GroupCreated.IsZero() {
		created := group.GroupCreated
		summary.CreatedAt = &created
	}
	if withParticipants {
		summary.Participants = make([]GroupParticipant, 0, len(group.Participants))
		for _, p := range group.Participants {
			summary.Participants = append(summary.Participants, GroupParticipant{
				ID:          p.JID.String(),
				PhoneNumber: participantPhone(p),
				IsAdmin:     p.IsAdmin || p.IsSuperAdmin,
				DisplayName: p.DisplayName,
			})
		}
	}
	return summary
}

func participantPhone(p types.GroupParticipant) string {
	if p.PhoneNumber.User != "" {
		return p.PhoneNumber.User
	}
	if p.JID.Server == types.DefaultUserServer {
		return p.JID.User
	}
	return ""
}

// groupConversations turns joined groups into listing entries. Participants
// are carried as chat ids where the phone number is known.
func groupConversations(groups []*types.GroupInfo) []dispatch.Conversation {
	out := make([]dispatch.Conversation, 0, len(groups))
	for _, group := range groups {
		if group == nil {
			continue
		}
		id, ok := FromJID(group.JID)
		if !ok {
			continue
		}
		conv := dispatch.Conversation{ID: id, Name: group.Name, IsGroup: true}
		for _, p := range group.Participants {
			if phone := participantPhone(p); phone != "" {
				conv.Participants = append(conv.Participants, phone+dispatch.ContactSuffix)
			}
		}
		out = append(out, conv)
	}
	return out
}

// Groups lists the groups the session belongs to, ordered by name.
func (s *Session) Groups(ctx context.Context, withParticipants bool) ([]GroupSummary, error) {
	if !s.IsReady() {
		return nil, ErrNotReady
	}
	groups, err := s.client.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]GroupSummary, 0, len(groups))
	for _, group := range groups {
		if group == nil {
			continue
		}
		out = append(out, summarizeGroup(group, withParticipants))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
