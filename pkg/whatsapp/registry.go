package whatsapp

import (
	"sort"
	"sync"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

const defaultRegistrySize = 1000

// Registry remembers chats seen in message traffic. The oldest entry is
// dropped once the registry is full.
type Registry struct {
	mu    sync.RWMutex
	chats map[string]dispatch.Conversation
	order []string
	max   int
}

func NewRegistry(max int) *Registry {
	if max <= 0 {
		max = defaultRegistrySize
	}
	return &Registry{chats: make(map[string]dispatch.Conversation), max: max}
}

// Remember records a chat. An empty name keeps the name already known.
func (r *Registry) Remember(conv dispatch.Conversation) {
	if conv.ID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.chats[conv.ID]; ok {
		if conv.Name == "" {
			conv.Name = prev.Name
		}
		r.chats[conv.ID] = conv
		return
	}

	if len(r.order) >= r.max {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.chats, oldest)
	}
	r.chats[conv.ID] = conv
	r.order = append(r.order, conv.ID)
}

func (r *Registry) Get(id string) (dispatch.Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.chats[id]
	return conv, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

// Snapshot returns the known chats ordered by id.
func (r *Registry) Snapshot() []dispatch.Conversation {
	r.mu.RLock()
	out := make([]dispatch.Conversation, 0, len(r.chats))
	for _, conv := range r.chats {
		out = append(out, conv)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
