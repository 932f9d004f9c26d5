package chatModel

import (
	"context"
	"errors"
	"fmt"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"
	"github.com/rs/zerolog/log"
	"schmagent/internal/pkg/settings"
	"strings"
	"sync"
	"time"
)

// generator is the part of an eino chat model component used here.
type generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einoModel.Option) (*schema.Message, error)
}

type generatorFactory func(ctx context.Context, apiKey string) (generator, error)

// EinoChatModel drives providers through an eino chat model component. The component is built on first
// use and rebuilt whenever the stored key changes.
type EinoChatModel struct {
	providerBase
	displayName string
	requiresKey bool
	timeout     time.Duration
	factory     generatorFactory

	mutex     sync.Mutex
	generator generator
	builtKey  string
}

func newEinoChatModel(provider string, displayName string, details settings.ProviderSettings, keys KeySource,
	requiresKey bool, factory generatorFactory) *EinoChatModel {
	instance := &EinoChatModel{
		providerBase: providerBase{provider: provider, details: details, keys: keys},
		displayName:  displayName,
		requiresKey:  requiresKey,
		timeout:      details.TimeoutDuration(defaultProviderTimeout),
		factory:      factory,
	}

	if requiresKey && instance.apiKey() == "" {
		log.Warn().Str("provider", provider).Msg("API key not found, responses will report the missing key")
	}
	log.Debug().Str("provider", provider).Str("model", details.Model).Msg("chat model initialized")

	return instance
}

// NewOpenRouter uses the OpenAI compatible endpoint of OpenRouter.
func NewOpenRouter(details settings.ProviderSettings, keys KeySource) *EinoChatModel {
	return newOpenAICompatible(settings.ProviderOpenRouter, "OpenRouter", "https://openrouter.ai/api/v1", details, keys)
}

// NewPerplexity uses the OpenAI compatible endpoint of Perplexity.
func NewPerplexity(details settings.ProviderSettings, keys KeySource) *EinoChatModel {
	return newOpenAICompatible(settings.ProviderPerplexity, "Perplexity", "https://api.perplexity.ai", details, keys)
}

func newOpenAICompatible(provider string, displayName string, defaultBaseURL string, details settings.ProviderSettings,
	keys KeySource) *EinoChatModel {
	baseURL := strings.TrimSpace(details.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return newEinoChatModel(provider, displayName, details, keys, true,
		func(ctx context.Context, apiKey string) (generator, error) {
			maxTokens := details.MaxTokens
			temperature := float32(details.Temperature)
			return openai.NewChatModel(ctx, &openai.ChatModelConfig{
				APIKey:      apiKey,
				BaseURL:     baseURL,
				Model:       details.Model,
				MaxTokens:   &maxTokens,
				Temperature: &temperature,
				Timeout:     details.TimeoutDuration(defaultProviderTimeout),
			})
		})
}

func NewAnthropic(details settings.ProviderSettings, keys KeySource) *EinoChatModel {
	return newEinoChatModel(settings.ProviderAnthropic, "Anthropic", details, keys, true,
		func(ctx context.Context, apiKey string) (generator, error) {
			temperature := float32(details.Temperature)
			config := &claude.Config{
				APIKey:      apiKey,
				Model:       details.Model,
				MaxTokens:   details.MaxTokens,
				Temperature: &temperature,
			}
			if baseURL := strings.TrimSpace(details.BaseURL); baseURL != "" {
				config.BaseURL = &baseURL
			}
			return claude.NewChatModel(ctx, config)
		})
}

// NewLocal talks to an Ollama server. It needs no key.
func NewLocal(details settings.ProviderSettings, keys KeySource) *EinoChatModel {
	return newEinoChatModel(settings.ProviderLocal, "Local", details, keys, false,
		func(ctx context.Context, _ string) (generator, error) {
			options := &api.Options{}
			if details.Temperature > 0 {
				options.Temperature = float32(details.Temperature)
			}
			if details.MaxTokens > 0 {
				options.NumPredict = details.MaxTokens
			}
			if details.ContextWindow > 0 {
				options.NumCtx = details.ContextWindow
			}

			return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
				BaseURL: details.BaseURL,
				Timeout: details.TimeoutDuration(defaultProviderTimeout),
				Model:   details.Model,
				Options: options,
			})
		})
}

func (instance *EinoChatModel) GenerateResponse(ctx context.Context, messages []Message) string {
	apiKey := instance.apiKey()
	if instance.requiresKey && apiKey == "" {
		return fmt.Sprintf("%s%s API key not configured. Please set up your API key.", errorPrefix, instance.displayName)
	}

	requestCtx, cancel := context.WithTimeout(ctx, instance.timeout)
	defer cancel()

	model, err := instance.component(requestCtx, apiKey)
	if err != nil {
		log.Error().Err(err).Str("provider", instance.provider).Msg("creating chat model component failed")
		return errorText(err)
	}

	response, err := model.Generate(requestCtx, toSchemaMessages(instance.PrepareMessages(messages)))
	if err != nil {
		if isTimeout(err) || errors.Is(requestCtx.Err(), context.DeadlineExceeded) {
			log.Error().Err(err).Str("provider", instance.provider).Dur("timeout", instance.timeout).Msg("chat request timed out")
			return requestTimedOutText
		}
		log.Error().Err(err).Str("provider", instance.provider).Msg("chat request failed")
		return errorText(err)
	}

	if response == nil || response.Content == "" {
		log.Error().Str("provider", instance.provider).Msg("chat response has no content")
		return unexpectedFormatText
	}
	return response.Content
}

func (instance *EinoChatModel) component(ctx context.Context, apiKey string) (generator, error) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	if instance.generator != nil && instance.builtKey == apiKey {
		return instance.generator, nil
	}

	model, err := instance.factory(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	instance.generator = model
	instance.builtKey = apiKey
	return model, nil
}
