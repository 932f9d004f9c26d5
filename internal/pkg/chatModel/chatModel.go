package chatModel

import (
	"context"
	"schmagent/internal/pkg/settings"
	"strings"
	"sync"
)

// ChatModel answers a conversation with a single text. Failures are reported as text starting with "Error:".
type ChatModel interface {
	Provider() string
	SetSystemPrompt(prompt string)
	AddContextMessage(message Message)
	ContextMessages() []Message
	PrepareMessages(messages []Message) []Message
	GenerateResponse(ctx context.Context, messages []Message) string
	Info() ModelInfo
}

// KeySource is consulted on every request, so a key saved while running is picked up immediately.
type KeySource interface {
	APIKey(provider string) string
}

type ModelInfo struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

const errorPrefix = "Error: "

const (
	requestTimedOutText  = errorPrefix + "Request timed out. Please try again."
	unexpectedFormatText = errorPrefix + "Unexpected response format from API"
)

func errorText(err error) string {
	return errorPrefix + err.Error()
}

// IsErrorText reports whether a response text describes a failure.
func IsErrorText(text string) bool {
	return strings.HasPrefix(text, errorPrefix)
}

// conversationContext is the persistent prefix prepended to every request.
type conversationContext struct {
	mutex    sync.RWMutex
	messages []Message
}

// SetSystemPrompt drops every system message of the context and puts prompt first.
func (instance *conversationContext) SetSystemPrompt(prompt string) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	messages := make([]Message, 0, len(instance.messages)+1)
	messages = append(messages, SystemMessage(prompt))
	for _, message := range instance.messages {
		if message.Role != RoleSystem {
			messages = append(messages, message)
		}
	}
	instance.messages = messages
}

func (instance *conversationContext) AddContextMessage(message Message) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	instance.messages = append(instance.messages, message)
}

func (instance *conversationContext) ContextMessages() []Message {
	instance.mutex.RLock()
	defer instance.mutex.RUnlock()

	messages := make([]Message, len(instance.messages))
	copy(messages, instance.messages)
	return messages
}

func (instance *conversationContext) PrepareMessages(messages []Message) []Message {
	prepared := instance.ContextMessages()
	return append(prepared, messages...)
}

type providerBase struct {
	conversationContext
	provider string
	details  settings.ProviderSettings
	keys     KeySource
}

func (instance *providerBase) Provider() string {
	return instance.provider
}

func (instance *providerBase) Info() ModelInfo {
	model := instance.details.Model
	if model == "" {
		model = "unknown"
	}
	return ModelInfo{
		Provider:    instance.provider,
		Model:       model,
		Temperature: instance.details.Temperature,
		MaxTokens:   instance.details.MaxTokens,
	}
}

func (instance *providerBase) apiKey() string {
	if instance.keys == nil {
		return ""
	}
	return strings.TrimSpace(instance.keys.APIKey(instance.provider))
}
