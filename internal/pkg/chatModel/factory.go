package chatModel

import (
	"github.com/rs/zerolog/log"
	"schmagent/internal/pkg/settings"
)

// New builds the chat model selected by model.default. Providers without a chat implementation fall back
// to OpenAI.
func New(config *settings.Config) ChatModel {
	provider := config.DefaultProvider()
	details, _ := config.ModelDetails(provider)

	var result ChatModel
	switch provider {
	case settings.ProviderOpenAI:
		result = NewOpenAI(details, config)
	case settings.ProviderAnthropic:
		result = NewAnthropic(details, config)
	case settings.ProviderGoogle:
		result = NewGoogle(details, config)
	case settings.ProviderOpenRouter:
		result = NewOpenRouter(details, config)
	case settings.ProviderPerplexity:
		result = NewPerplexity(details, config)
	case settings.ProviderLocal:
		result = NewLocal(details, config)
	default:
		log.Warn().Str("provider", provider).Msg("provider has no chat implementation, falling back to openai")
		openAIDetails, _ := config.ModelDetails(settings.ProviderOpenAI)
		result = NewOpenAI(openAIDetails, config)
	}

	log.Info().Str("provider", result.Provider()).Str("model", result.Info().Model).Msg("chat model selected")
	return result
}
