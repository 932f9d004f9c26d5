package chatSession

import (
	"context"
	"errors"
	"github.com/rs/zerolog/log"
	"schmagent/internal/pkg/chatModel"
	"sync"
	"time"
)

const questionQueueBufferSize = 16

type Options struct {
	Model        chatModel.ChatModel
	ResponseWait time.Duration
	// HistoryLimit caps the number of messages sent with each question. Zero sends everything.
	HistoryLimit   int
	History        ConversationStore
	ConversationID string
}

type chatSessionImpl struct {
	options             Options
	mutex               sync.RWMutex
	sessions            []*ChatBlock
	questions           chan string
	exitRequested       chan any
	sessionResponseFunc ChatBlockResponseFunc
}

func New(options Options, responseFunc ChatBlockResponseFunc) (ChatSession, error) {
	if options.Model == nil {
		return nil, errors.New("chat session needs a chat model")
	}
	if responseFunc == nil {
		responseFunc = func(ChatBlockResponse) {}
	}

	chat := &chatSessionImpl{
		options:             options,
		sessions:            []*ChatBlock{},
		questions:           make(chan string, questionQueueBufferSize),
		exitRequested:       make(chan any, 1),
		sessionResponseFunc: responseFunc,
	}

	if options.History != nil && options.ConversationID != "" {
		err := options.History.CreateConversation(context.Background(), options.ConversationID, options.Model.Provider())
		if err != nil {
			log.Error().Err(err).Str("conversation", options.ConversationID).Msg("history.CreateConversation() failed, session will not be persisted")
			chat.options.History = nil
		}
	}

	go chat.questionsProcessingHandler()

	return chat, nil
}

func (instance *chatSessionImpl) ChatBlocks() []ChatBlock {
	instance.mutex.RLock()
	defer instance.mutex.RUnlock()

	sessions := make([]ChatBlock, len(instance.sessions))
	for index := range instance.sessions {
		sessions[index] = *instance.sessions[index]
	}
	return sessions
}

// Messages returns the conversation as sent to the model, without failed turns.
func (instance *chatSessionImpl) Messages() []chatModel.Message {
	instance.mutex.RLock()
	defer instance.mutex.RUnlock()

	return toMessages(instance.sessions)
}

func (instance *chatSessionImpl) Clear() {
	instance.mutex.Lock()
	instance.sessions = []*ChatBlock{}
	instance.mutex.Unlock()

	log.Info().Str("conversation", instance.options.ConversationID).Msg("chat session cleared")
}

func (instance *chatSessionImpl) EnqueueMessage(message string) error {
	select {
	case instance.questions <- message:
		return nil
	default:
		return errors.New("question queue is full")
	}
}

func toMessages(chatBlocks []*ChatBlock) []chatModel.Message {
	messages := make([]chatModel.Message, 0, len(chatBlocks)*2)
	for _, chatBlock := range chatBlocks {
		if chatBlock.Failed {
			continue
		}

		if chatBlock.UserMessage != "" {
			messages = append(messages, chatModel.UserMessage(chatBlock.UserMessage))
		}

		if chatBlock.Completed && chatBlock.AssistantMessage != "" {
			messages = append(messages, chatModel.AssistantMessage(chatBlock.AssistantMessage))
		}
	}
	return messages
}

func lastMessages(messages []chatModel.Message, limit int) []chatModel.Message {
	if limit <= 0 || len(messages) <= limit {
		return messages
	}
	return messages[len(messages)-limit:]
}

func (instance *chatSessionImpl) systemPrompt() string {
	for _, message := range instance.options.Model.ContextMessages() {
		if message.Role == chatModel.RoleSystem {
			return message.Content
		}
	}
	return ""
}

func (instance *chatSessionImpl) askQuestion(ctx context.Context, question string) {
	session := &ChatBlock{
		UserMessage: question,
	}

	instance.mutex.Lock()
	if len(instance.sessions) == 0 {
		session.SystemMessage = instance.systemPrompt()
	}
	instance.sessions = append(instance.sessions, session)
	index := len(instance.sessions) - 1
	messages := lastMessages(toMessages(instance.sessions), instance.options.HistoryLimit)
	snapshot := *session
	instance.mutex.Unlock()

	instance.sessionResponseFunc(ChatBlockResponse{
		ChatBlock: snapshot,
		Index:     index,
		New:       true,
	})

	response := chatModel.GenerateWithTimeout(ctx, instance.options.Model, messages, instance.options.ResponseWait)
	failed := chatModel.IsErrorText(response)

	instance.mutex.Lock()
	session.AssistantMessage = response
	session.Completed = true
	session.Failed = failed
	snapshot = *session
	current := index < len(instance.sessions) && instance.sessions[index] == session
	instance.mutex.Unlock()

	if failed {
		log.Error().Str("response", response).Msg("question failed")
	}

	// the block is gone when the session was cleared while the answer was pending
	if current {
		instance.sessionResponseFunc(ChatBlockResponse{
			ChatBlock: snapshot,
			Index:     index,
			New:       false,
		})
	} else {
		log.Info().Int("index", index).Msg("answer of a cleared chat block dropped")
	}

	if !failed {
		instance.persist(ctx, chatModel.UserMessage(question), chatModel.AssistantMessage(response))
	}
}

func (instance *chatSessionImpl) persist(ctx context.Context, messages ...chatModel.Message) {
	if instance.options.History == nil {
		return
	}

	for _, message := range messages {
		if err := instance.options.History.AppendMessage(ctx, instance.options.ConversationID, message); err != nil {
			log.Error().Err(err).Str("conversation", instance.options.ConversationID).Msg("history.AppendMessage() failed")
			return
		}
	}
}

// questionsProcessingHandler answers queued questions one at a time, in order.
func (instance *chatSessionImpl) questionsProcessingHandler() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case question := <-instance.questions:
			log.Info().Str("question_content", question).Msg("processing question")
			instance.askQuestion(ctx, question)
		case <-instance.exitRequested:
			log.Info().Msg("questions processing cancelled")
			return
		}
	}
}

func (instance *chatSessionImpl) Shutdown() {
	select {
	case instance.exitRequested <- struct{}{}:
		log.Info().Msg("chatSessionImpl shutdown requested")
		return
	default:
		log.Info().Msg("chatSessionImpl shutdown requested again")
		return
	}
}
