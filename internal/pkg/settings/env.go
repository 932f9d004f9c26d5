package settings

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"os"
	"strconv"
	"strings"
)

type envKind int

const (
	envString envKind = iota
	envInt
	envFloat
	envBool
	envPositiveInt
)

type envBinding struct {
	name string
	key  string
	kind envKind
}

var settingsEnvironment = []envBinding{
	{"APP_NAME", "app.name", envString},
	{"DEBUG", "app.debug", envBool},
	{"LOG_LEVEL", "app.log_level", envString},

	{"DEFAULT_MODEL", "model.default", envString},
	{"OPENAI_MODEL", "model.openai.model", envString},
	{"OPENAI_TEMPERATURE", "model.openai.temperature", envFloat},
	{"OPENAI_MAX_TOKENS", "model.openai.max_tokens", envInt},
	{"OPENAI_TIMEOUT", "model.openai.timeout", envPositiveInt},
	{"OPENAI_BASE_URL", "model.openai.base_url", envString},
	{"ANTHROPIC_MODEL", "model.anthropic.model", envString},
	{"GOOGLE_MODEL", "model.google.model", envString},
	{"LOCAL_MODEL", "model.local.model", envString},

	{"THEME", "ui.theme", envString},
	{"WINDOW_WIDTH", "ui.window_width", envInt},
	{"WINDOW_HEIGHT", "ui.window_height", envInt},
	{"CODE_HIGHLIGHTING", "ui.code_highlighting", envBool},
	{"ENABLE_SCREENSHOTS", "ui.enable_screenshots", envBool},

	{"SESSION_PERSISTENCE", "session.persistence", envBool},
	{"MAX_HISTORY_SESSIONS", "session.max_history_sessions", envInt},
	{"MESSAGE_HISTORY_LIMIT", "session.message_history_limit", envInt},

	{"API_KEY_ENCRYPTION", "security.api_key_encryption", envBool},
	{"CLIPBOARD_AUTO_CLEAR", "security.clipboard_auto_clear", envBool},
	{"CLIPBOARD_CLEAR_DELAY", "security.clipboard_clear_delay", envPositiveInt},

	{"ENABLE_NOTIFICATIONS", "notifications.enable", envBool},
	{"NOTIFICATION_SOUND", "notifications.sound", envBool},

	{"GLOBAL_SHORTCUT", "shortcuts.global", envString},
}

var apiKeyEnvironment = []envBinding{
	{"OPENAI_API_KEY", "openai.api_key", envString},
	{"ANTHROPIC_API_KEY", "anthropic.api_key", envString},
	{"GOOGLE_API_KEY", "google.api_key", envString},
	{"GOOGLE_PROJECT_ID", "google.project_id", envString},
	{"OPENROUTER_API_KEY", "openrouter.api_key", envString},
	{"PERPLEXITY_API_KEY", "perplexity.api_key", envString},
	{"ELEVENLABS_API_KEY", "elevenlabs.api_key", envString},
	{"LOCAL_MODEL_PATH", "local.model_path", envString},
}

var (
	errNotPositive = errors.New("must be a positive integer")
	errNotBool     = errors.New("must be true or false")
)

// applyEnvironment copies every set and parseable variable into the override layer of v.
// Values that fail to convert are logged and skipped, so the previously merged value stays.
func applyEnvironment(v *viper.Viper, bindings []envBinding) {
	for _, binding := range bindings {
		raw, ok := os.LookupEnv(binding.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}

		value, err := binding.convert(raw)
		if err != nil {
			log.Warn().Err(err).Str("variable", binding.name).Str("value", raw).Msg("invalid environment value ignored")
			continue
		}

		v.Set(binding.key, value)
		log.Debug().Str("variable", binding.name).Str("key", binding.key).Msg("environment override applied")
	}
}

func (instance envBinding) convert(raw string) (any, error) {
	switch instance.kind {
	case envInt:
		return strconv.Atoi(strings.TrimSpace(raw))
	case envFloat:
		return cast.ToFloat64E(strings.TrimSpace(raw))
	case envBool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, errNotBool
		}
	case envPositiveInt:
		// inline comments are tolerated: CLIPBOARD_CLEAR_DELAY=30 # seconds
		clean := strings.TrimSpace(strings.SplitN(raw, "#", 2)[0])
		number, err := strconv.Atoi(clean)
		if err != nil {
			return nil, fmt.Errorf("must be a valid integer: %w", err)
		}
		if number <= 0 {
			return nil, errNotPositive
		}
		return number, nil
	default:
		return strings.TrimSpace(raw), nil
	}
}
