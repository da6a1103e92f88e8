package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
)

func openTestChatStore(t *testing.T) *ChatStore {
	t.Helper()
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewChatStore(context.Background(), db, "sqlite")
	require.NoError(t, err)
	return store
}

func TestChatStoreSaveAndLoad(t *testing.T) {
	store := openTestChatStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, dispatch.Conversation{ID: "553791470016@c.us", Name: "Maria"}, now.Add(-time.Hour)))
	require.NoError(t, store.Save(ctx, dispatch.Conversation{ID: "120363142926103927@g.us", IsGroup: true}, now))
	require.NoError(t, store.Save(ctx, dispatch.Conversation{ID: "553791470016@c.us"}, now.Add(-time.Minute)))

	chats, err := store.Load(ctx, 10)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, "120363142926103927@g.us", chats[0].ID)
	assert.True(t, chats[0].IsGroup)
	assert.Equal(t, dispatch.Conversation{ID: "553791470016@c.us", Name: "Maria"}, chats[1])

	chats, err = store.Load(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, chats, 1)
}

func TestChatStorePruneAndDelete(t *testing.T) {
	store := openTestChatStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Save(ctx, dispatch.Conversation{ID: "1@c.us"}, now.Add(-48*time.Hour)))
	require.NoError(t, store.Save(ctx, dispatch.Conversation{ID: "2@c.us"}, now))
	require.NoError(t, store.Save(ctx, dispatch.Conversation{ID: "3@c.us"}, now))

	removed, err := store.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, store.Delete(ctx, "2@c.us"))
	chats, err := store.Load(ctx, 10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "3@c.us", chats[0].ID)
}

func TestChatStoreBind(t *testing.T) {
	pg := &ChatStore{driver: "pgx"}
	assert.Equal(t, "DELETE FROM t WHERE a = $1 AND b = $2", pg.bind("DELETE FROM t WHERE a = ? AND b = ?"))
	lite := &ChatStore{driver: "sqlite"}
	assert.Equal(t, "a = ?", lite.bind("a = ?"))
}

func TestRememberDoesNotWaitForChatStore(t *testing.T) {
	logger, _ := test.NewNullLogger()
	store := openTestChatStore(t)
	s := &Session{log: logger, registry: NewRegistry(10), chats: store}
	ctx := context.Background()

	// Hold the only connection so the background save has to wait.
	conn, err := store.db.Conn(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.remember(dispatch.Conversation{ID: "553791470016@c.us", Name: "Maria"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("remember blocked on the chat store")
	}

	_, ok := s.registry.Get("553791470016@c.us")
	assert.True(t, ok)

	require.NoError(t, conn.Close())
	s.persisting.Wait()

	chats, err := store.Load(ctx, 10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "Maria", chats[0].Name)
}
