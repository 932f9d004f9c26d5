package chatSession

import (
	"context"
	"schmagent/internal/pkg/chatModel"
)

type ChatBlockResponse struct {
	ChatBlock ChatBlock
	// Index is the position of the block within the session.
	Index int
	New   bool
}

type ChatBlock struct {
	SystemMessage    string
	UserMessage      string
	AssistantMessage string
	Completed        bool
	Failed           bool
}

type ChatSession interface {
	EnqueueMessage(message string) error
	Shutdown()
	ChatBlocks() []ChatBlock
	Messages() []chatModel.Message
	Clear()
}

type ChatBlockResponseFunc func(response ChatBlockResponse)

// ConversationStore persists the turns of a session.
type ConversationStore interface {
	CreateConversation(ctx context.Context, id string, provider string) error
	AppendMessage(ctx context.Context, id string, message chatModel.Message) error
}
