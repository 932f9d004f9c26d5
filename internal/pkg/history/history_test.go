package history

import (
	"context"
	"fmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"path/filepath"
	"schmagent/internal/pkg/chatModel"
	"testing"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestAppendAndReadMessages(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, "c1", "openai"))

	require.NoError(t, store.AppendMessage(ctx, "c1", chatModel.UserMessage("hello")))
	require.NoError(t, store.AppendMessage(ctx, "c1", chatModel.AssistantMessage("hi there")))

	messages, err := store.Messages(ctx, "c1", 0)

	require.NoError(t, err)
	assert.Equal(t, []chatModel.Message{chatModel.UserMessage("hello"), chatModel.AssistantMessage("hi there")}, messages)
}

func TestMessagesLimitReturnsNewestInOrder(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, "c1", "openai"))
	for i := 1; i <= 5; i++ {
		require.NoError(t, store.AppendMessage(ctx, "c1", chatModel.UserMessage(fmt.Sprintf("m%d", i))))
	}

	messages, err := store.Messages(ctx, "c1", 2)

	require.NoError(t, err)
	assert.Equal(t, []chatModel.Message{chatModel.UserMessage("m4"), chatModel.UserMessage("m5")}, messages)
}

func TestMessagesEmptyConversation(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.CreateConversation(context.Background(), "c1", "openai"))

	messages, err := store.Messages(context.Background(), "c1", 10)

	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestNegativeUnknownConversation(t *testing.T) {
	store := openStore(t)

	err := store.AppendMessage(context.Background(), "missing", chatModel.UserMessage("hello"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Messages(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateConversationTwice(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, "c1", "openai"))
	require.NoError(t, store.AppendMessage(ctx, "c1", chatModel.UserMessage("hello")))

	require.NoError(t, store.CreateConversation(ctx, "c1", "anthropic"))

	conversations, err := store.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "anthropic", conversations[0].Provider)
	assert.Equal(t, 1, conversations[0].MessageCount)
}

func TestConversationsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateConversation(ctx, "old", "openai"))
	require.NoError(t, store.CreateConversation(ctx, "new", "openai"))
	require.NoError(t, store.AppendMessage(ctx, "old", chatModel.UserMessage("bump")))

	conversations, err := store.Conversations(ctx)

	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "old", conversations[0].ID)
	assert.Equal(t, "new", conversations[1].ID)
}

func TestPruneKeepsNewest(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("c%d", i)
		require.NoError(t, store.CreateConversation(ctx, id, "openai"))
		require.NoError(t, store.AppendMessage(ctx, id, chatModel.UserMessage("hello")))
	}

	removed, err := store.Prune(ctx, 2)

	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	conversations, err := store.Conversations(ctx)
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "c4", conversations[0].ID)
	assert.Equal(t, "c3", conversations[1].ID)

	_, err = store.Messages(ctx, "c1", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPruneNothingToRemove(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.CreateConversation(context.Background(), "c1", "openai"))

	removed, err := store.Prune(context.Background(), 10)

	require.NoError(t, err)
	assert.Zero(t, removed)
}
