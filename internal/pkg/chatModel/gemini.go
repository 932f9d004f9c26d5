package chatModel

import (
	"context"
	"errors"
	"fmt"
	einoModel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
	"schmagent/internal/pkg/settings"
	"strings"
)

// NewGoogle uses the Gemini API.
func NewGoogle(details settings.ProviderSettings, keys KeySource) *EinoChatModel {
	return newEinoChatModel(settings.ProviderGoogle, "Google", details, keys, true,
		func(ctx context.Context, apiKey string) (generator, error) {
			clientConfig := &genai.ClientConfig{
				APIKey:  apiKey,
				Backend: genai.BackendGeminiAPI,
			}
			if baseURL := strings.TrimSpace(details.BaseURL); baseURL != "" {
				clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
			}

			client, err := genai.NewClient(ctx, clientConfig)
			if err != nil {
				return nil, fmt.Errorf("genai.NewClient() failed: %w", err)
			}
			return &geminiGenerator{client: client, details: details}, nil
		})
}

type geminiGenerator struct {
	client  *genai.Client
	details settings.ProviderSettings
}

func (instance *geminiGenerator) Generate(ctx context.Context, input []*schema.Message, _ ...einoModel.Option) (*schema.Message, error) {
	contents, systemInstruction := toGeminiContents(input)

	config := &genai.GenerateContentConfig{SystemInstruction: systemInstruction}
	if instance.details.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(instance.details.Temperature))
	}
	if instance.details.MaxTokens > 0 {
		config.MaxOutputTokens = int32(instance.details.MaxTokens)
	}

	response, err := instance.client.Models.GenerateContent(ctx, instance.details.Model, contents, config)
	if err != nil {
		return nil, err
	}
	if response == nil || len(response.Candidates) == 0 {
		return nil, errors.New("gemini response has no candidates")
	}

	return schema.AssistantMessage(response.Text(), nil), nil
}

// toGeminiContents moves system messages into the system instruction, which Gemini keeps apart from the turns.
func toGeminiContents(messages []*schema.Message) ([]*genai.Content, *genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(messages))

	for _, message := range messages {
		switch message.Role {
		case schema.System:
			systemParts = append(systemParts, message.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(message.Content, genai.RoleUser))
		}
	}

	if len(systemParts) == 0 {
		return contents, nil
	}
	return contents, genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser)
}
