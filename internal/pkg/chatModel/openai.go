package chatModel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"io"
	"net"
	"net/http"
	"schmagent/internal/pkg/settings"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultProviderTimeout = 60 * time.Second
	maxErrorBodyLogged     = 512
)

const openAIMissingKeyText = errorPrefix + "OpenAI API key not configured. Please set up your API key."

// OpenAI talks to the chat completions endpoint directly.
type OpenAI struct {
	providerBase
	client  *http.Client
	baseURL string
	timeout time.Duration
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewOpenAI(details settings.ProviderSettings, keys KeySource) *OpenAI {
	baseURL := strings.TrimRight(strings.TrimSpace(details.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	if details.Model == "" {
		details.Model = "gpt-4-turbo"
	}

	instance := &OpenAI{
		providerBase: providerBase{provider: settings.ProviderOpenAI, details: details, keys: keys},
		client:       newHTTPClient(),
		baseURL:      baseURL,
		timeout:      details.TimeoutDuration(defaultProviderTimeout),
	}

	if instance.apiKey() == "" {
		log.Warn().Msg("OpenAI API key not found, responses will report the missing key")
	}
	log.Debug().Str("model", details.Model).Str("base_url", baseURL).Dur("timeout", instance.timeout).Msg("OpenAI model initialized")

	return instance
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = 10
	transport.MaxIdleConnsPerHost = 5
	transport.IdleConnTimeout = 60 * time.Second
	return &http.Client{Transport: transport}
}

func (instance *OpenAI) GenerateResponse(ctx context.Context, messages []Message) string {
	apiKey := instance.apiKey()
	if apiKey == "" {
		return openAIMissingKeyText
	}

	body, err := sonic.Marshal(completionRequest{
		Model:       instance.details.Model,
		Messages:    instance.PrepareMessages(messages),
		Temperature: instance.details.Temperature,
		MaxTokens:   instance.details.MaxTokens,
	})
	if err != nil {
		log.Error().Err(err).Msg("sonic.Marshal() failed")
		return errorText(err)
	}

	requestCtx, cancel := context.WithTimeout(ctx, instance.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(requestCtx, http.MethodPost, instance.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("http.NewRequestWithContext() failed")
		return errorText(err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+apiKey)

	response, err := instance.client.Do(request)
	if err != nil {
		return instance.transportFailure(err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return instance.transportFailure(err)
	}

	if response.StatusCode != http.StatusOK {
		log.Error().Int("status", response.StatusCode).Str("body", truncate(string(payload), maxErrorBodyLogged)).
			Msg("OpenAI API error")
		return fmt.Sprintf("%sAPI request failed with status %d", errorPrefix, response.StatusCode)
	}

	var completion completionResponse
	if err := sonic.Unmarshal(payload, &completion); err != nil || len(completion.Choices) == 0 {
		log.Error().Err(err).Str("body", truncate(string(payload), maxErrorBodyLogged)).Msg("unexpected OpenAI API response format")
		return unexpectedFormatText
	}

	return completion.Choices[0].Message.Content
}

func (instance *OpenAI) transportFailure(err error) string {
	if isTimeout(err) {
		log.Error().Err(err).Dur("timeout", instance.timeout).Msg("OpenAI API request timed out")
		return requestTimedOutText
	}
	log.Error().Err(err).Msg("calling OpenAI API failed")
	return errorText(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
