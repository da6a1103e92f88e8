package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type call struct {
	Op         string
	PlatformID string
	Text       string
	File       OutgoingFile
}

// mockGateway records every call and lets tests script listings and sends.
type mockGateway struct {
	mu sync.Mutex

	ready         bool
	conversations []Conversation
	listErr       error
	sendErr       error
	textErr       error
	block         bool

	// appearAfterText lists the platform id once a text went to it.
	appearAfterText bool

	calls []call
	seq   int
}

func newMockGateway(convs ...Conversation) *mockGateway {
	return &mockGateway{ready: true, conversations: convs}
}

func (m *mockGateway) record(c call) {
	m.calls = append(m.calls, c)
}

func (m *mockGateway) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(call{Op: "IsReady"})
	return m.ready
}

func (m *mockGateway) ListConversations(ctx context.Context) ([]Conversation, error) {
	m.mu.Lock()
	m.record(call{Op: "ListConversations"})
	block := m.block
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Conversation, len(m.conversations))
	copy(out, m.conversations)
	return out, nil
}

func (m *mockGateway) SendText(ctx context.Context, platformID string, text string) (SentMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(call{Op: "SendText", PlatformID: platformID, Text: text})
	if m.textErr != nil {
		return SentMessage{}, m.textErr
	}
	if m.sendErr != nil {
		return SentMessage{}, m.sendErr
	}
	if m.appearAfterText {
		m.conversations = append(m.conversations, Conversation{ID: platformID, Name: "Contato"})
	}
	m.seq++
	return SentMessage{ID: fmt.Sprintf("MSG%d", m.seq)}, nil
}

func (m *mockGateway) SendBinary(ctx context.Context, platformID string, file OutgoingFile, caption string) (SentMessage, error) {
	m.mu.Lock()
	block := m.block
	m.mu.Unlock()
	if block {
		<-ctx.Done()
		return SentMessage{}, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(call{Op: "SendBinary", PlatformID: platformID, Text: caption, File: file})
	if m.sendErr != nil {
		return SentMessage{}, m.sendErr
	}
	m.seq++
	return SentMessage{ID: fmt.Sprintf("MSG%d", m.seq)}, nil
}

func (m *mockGateway) ops(op string) []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []call
	for _, c := range m.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (m *mockGateway) allCalls() []call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]call, len(m.calls))
	copy(out, m.calls)
	return out
}

// checkingGateway adds registration lookups to mockGateway.
type checkingGateway struct {
	*mockGateway
	registered map[string]bool
	checkErr   error
}

func (c *checkingGateway) CheckRegistered(ctx context.Context, platformID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(call{Op: "CheckRegistered", PlatformID: platformID})
	if c.checkErr != nil {
		return false, c.checkErr
	}
	return c.registered[platformID], nil
}

var errTransport = errors.New("connection reset by peer")

func noSleep(context.Context, time.Duration) error { return nil }
