package settings

import "time"

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGoogle     = "google"
	ProviderOpenRouter = "openrouter"
	ProviderPerplexity = "perplexity"
	ProviderElevenLabs = "elevenlabs"
	ProviderLocal      = "local"
)

// Providers lists every provider known to the settings tree, in display order.
var Providers = []string{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGoogle,
	ProviderOpenRouter,
	ProviderPerplexity,
	ProviderElevenLabs,
	ProviderLocal,
}

// chatProviders carry the generation parameters (temperature, max_tokens, timeout).
var chatProviders = []string{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderGoogle,
	ProviderOpenRouter,
	ProviderPerplexity,
}

type Settings struct {
	App           AppSettings          `mapstructure:"app" json:"app"`
	Model         ModelSettings        `mapstructure:"model" json:"model"`
	UI            UISettings           `mapstructure:"ui" json:"ui"`
	Session       SessionSettings      `mapstructure:"session" json:"session"`
	Security      SecuritySettings     `mapstructure:"security" json:"security"`
	Notifications NotificationSettings `mapstructure:"notifications" json:"notifications"`
	Shortcuts     ShortcutSettings     `mapstructure:"shortcuts" json:"shortcuts"`
}

type AppSettings struct {
	Name     string `mapstructure:"name" json:"name"`
	Debug    bool   `mapstructure:"debug" json:"debug"`
	LogLevel string `mapstructure:"log_level" json:"log_level"`
}

type ModelSettings struct {
	Default    string           `mapstructure:"default" json:"default"`
	OpenAI     ProviderSettings `mapstructure:"openai" json:"openai"`
	Anthropic  ProviderSettings `mapstructure:"anthropic" json:"anthropic"`
	Google     ProviderSettings `mapstructure:"google" json:"google"`
	OpenRouter ProviderSettings `mapstructure:"openrouter" json:"openrouter"`
	Perplexity ProviderSettings `mapstructure:"perplexity" json:"perplexity"`
	ElevenLabs ProviderSettings `mapstructure:"elevenlabs" json:"elevenlabs"`
	Local      ProviderSettings `mapstructure:"local" json:"local"`
}

// Provider returns the settings block of the named provider.
func (instance ModelSettings) Provider(name string) (ProviderSettings, bool) {
	switch name {
	case ProviderOpenAI:
		return instance.OpenAI, true
	case ProviderAnthropic:
		return instance.Anthropic, true
	case ProviderGoogle:
		return instance.Google, true
	case ProviderOpenRouter:
		return instance.OpenRouter, true
	case ProviderPerplexity:
		return instance.Perplexity, true
	case ProviderElevenLabs:
		return instance.ElevenLabs, true
	case ProviderLocal:
		return instance.Local, true
	default:
		return ProviderSettings{}, false
	}
}

// ProviderSettings is the union of the fields used by the individual providers. Fields a provider
// does not use stay at their zero value.
type ProviderSettings struct {
	Model         string  `mapstructure:"model" json:"model"`
	Temperature   float64 `mapstructure:"temperature" json:"temperature,omitempty"`
	MaxTokens     int     `mapstructure:"max_tokens" json:"max_tokens,omitempty"`
	CacheEnabled  bool    `mapstructure:"cache_enabled" json:"cache_enabled"`
	Timeout       int     `mapstructure:"timeout" json:"timeout,omitempty"`
	BaseURL       string  `mapstructure:"base_url" json:"base_url,omitempty"`
	VoiceID       string  `mapstructure:"voice_id" json:"voice_id,omitempty"`
	ModelPath     string  `mapstructure:"model_path" json:"model_path,omitempty"`
	ModelType     string  `mapstructure:"model_type" json:"model_type,omitempty"`
	ContextWindow int     `mapstructure:"context_window" json:"context_window,omitempty"`
}

// TimeoutDuration converts the timeout in seconds, falling back to fallback when unset.
func (instance ProviderSettings) TimeoutDuration(fallback time.Duration) time.Duration {
	if instance.Timeout <= 0 {
		return fallback
	}
	return time.Duration(instance.Timeout) * time.Second
}

type UISettings struct {
	Theme             string `mapstructure:"theme" json:"theme"`
	WindowWidth       int    `mapstructure:"window_width" json:"window_width"`
	WindowHeight      int    `mapstructure:"window_height" json:"window_height"`
	CodeHighlighting  bool   `mapstructure:"code_highlighting" json:"code_highlighting"`
	EnableScreenshots bool   `mapstructure:"enable_screenshots" json:"enable_screenshots"`
}

type SessionSettings struct {
	Persistence         bool `mapstructure:"persistence" json:"persistence"`
	MaxHistorySessions  int  `mapstructure:"max_history_sessions" json:"max_history_sessions"`
	MessageHistoryLimit int  `mapstructure:"message_history_limit" json:"message_history_limit"`
}

type SecuritySettings struct {
	APIKeyEncryption    bool `mapstructure:"api_key_encryption" json:"api_key_encryption"`
	ClipboardAutoClear  bool `mapstructure:"clipboard_auto_clear" json:"clipboard_auto_clear"`
	ClipboardClearDelay int  `mapstructure:"clipboard_clear_delay" json:"clipboard_clear_delay"`
}

// ClipboardClearDuration is the auto-clear delay as a duration.
func (instance SecuritySettings) ClipboardClearDuration() time.Duration {
	return time.Duration(instance.ClipboardClearDelay) * time.Second
}

type NotificationSettings struct {
	Enable bool `mapstructure:"enable" json:"enable"`
	Sound  bool `mapstructure:"sound" json:"sound"`
}

type ShortcutSettings struct {
	Global string `mapstructure:"global" json:"global"`
}

// Credentials is one entry of the API key store.
type Credentials struct {
	APIKey string            `json:"api_key"`
	Extra  map[string]string `json:"extra,omitempty"`
}

func defaultValues() map[string]any {
	values := map[string]any{
		"app.name":      "Schmagent",
		"app.debug":     false,
		"app.log_level": "INFO",

		"model.default": ProviderOpenAI,

		"model.elevenlabs.voice_id":      "premade/adam",
		"model.elevenlabs.model":         "eleven_turbo_v2",
		"model.elevenlabs.cache_enabled": true,

		"model.local.model":          "llama3.2",
		"model.local.model_path":     "",
		"model.local.model_type":     "llama",
		"model.local.cache_enabled":  true,
		"model.local.context_window": 4096,
		"model.local.base_url":       "http://localhost:11434",

		"ui.theme":              "system",
		"ui.window_width":       800,
		"ui.window_height":      600,
		"ui.code_highlighting":  true,
		"ui.enable_screenshots": true,

		"session.persistence":           true,
		"session.max_history_sessions":  10,
		"session.message_history_limit": 50,

		"security.api_key_encryption":    true,
		"security.clipboard_auto_clear":  false,
		"security.clipboard_clear_delay": 60,

		"notifications.enable": true,
		"notifications.sound":  true,

		"shortcuts.global": "<Super>s",
	}

	chat := []struct {
		provider  string
		model     string
		maxTokens int
		baseURL   string
	}{
		{ProviderOpenAI, "gpt-4-turbo", 2048, "https://api.openai.com/v1"},
		{ProviderAnthropic, "claude-3-5-sonnet", 4096, ""},
		{ProviderGoogle, "gemini-pro", 2048, ""},
		{ProviderOpenRouter, "openai/gpt-4-turbo", 2048, "https://openrouter.ai/api/v1"},
		{ProviderPerplexity, "llama-3-sonar-large-32k", 2048, "https://api.perplexity.ai"},
	}
	for _, entry := range chat {
		prefix := "model." + entry.provider + "."
		values[prefix+"model"] = entry.model
		values[prefix+"temperature"] = 0.7
		values[prefix+"max_tokens"] = entry.maxTokens
		values[prefix+"cache_enabled"] = true
		values[prefix+"timeout"] = 60
		values[prefix+"base_url"] = entry.baseURL
	}

	return values
}

// defaultAPIKeys is the skeleton written to a freshly created API key file.
func defaultAPIKeys() map[string]any {
	keys := make(map[string]any, len(Providers))
	for _, provider := range Providers {
		keys[provider] = map[string]any{"api_key": ""}
	}
	keys[ProviderGoogle] = map[string]any{"api_key": "", "project_id": ""}
	keys[ProviderLocal] = map[string]any{"api_key": "", "model_path": ""}
	return keys
}

// Defaults returns the settings tree without any file or environment overrides.
func Defaults() Settings {
	var result Settings
	v := newSettingsViper()
	if err := v.Unmarshal(&result); err != nil {
		panic("settings defaults do not decode: " + err.Error())
	}
	return result
}
