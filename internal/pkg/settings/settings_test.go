package settings

import (
	"context"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testPaths(t *testing.T) Paths {
	t.Helper()

	for _, binding := range append(append([]envBinding{}, settingsEnvironment...), apiKeyEnvironment...) {
		t.Setenv(binding.name, "")
	}

	root := t.TempDir()
	return Paths{
		ConfigDir:   filepath.Join(root, "config"),
		DataDir:     filepath.Join(root, "data"),
		SecretsDir:  filepath.Join(root, "secrets"),
		APIKeysFile: "api_keys.json",
	}
}

func writeConfig(t *testing.T, paths Paths, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(paths.ConfigDir, 0755))
	require.NoError(t, os.WriteFile(paths.ConfigFile(), []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	paths := testPaths(t)

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, Defaults(), config.Settings())
	assert.Equal(t, "Schmagent", config.Settings().App.Name)
	assert.Equal(t, 60, config.Settings().Security.ClipboardClearDelay)
	assert.Equal(t, "gpt-4-turbo", config.Settings().Model.OpenAI.Model)
	assert.Equal(t, 4096, config.Settings().Model.Anthropic.MaxTokens)
	assert.NoError(t, config.Validate())
}

func TestLoadCreatesMissingFiles(t *testing.T) {
	paths := testPaths(t)

	_, err := Load(paths)
	require.NoError(t, err)

	content, err := os.ReadFile(paths.ConfigFile())
	require.NoError(t, err)
	assert.JSONEq(t, "{}", string(content))

	info, err := os.Stat(paths.KeysFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	dir, err := os.Stat(paths.SecretsDir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0700), dir.Mode().Perm())

	content, err = os.ReadFile(paths.KeysFile())
	require.NoError(t, err)
	assert.Contains(t, string(content), `"openai"`)
	assert.Contains(t, string(content), `"project_id"`)
	assert.NotContains(t, string(content), "window_width")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	paths := testPaths(t)
	writeConfig(t, paths, `{"ui": {"theme": "dark"}, "model": {"openai": {"model": "gpt-4o"}}}`)

	config, err := Load(paths)

	require.NoError(t, err)
	settings := config.Settings()
	assert.Equal(t, "dark", settings.UI.Theme)
	assert.Equal(t, 800, settings.UI.WindowWidth)
	assert.Equal(t, "gpt-4o", settings.Model.OpenAI.Model)
	assert.Equal(t, 0.7, settings.Model.OpenAI.Temperature)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	paths := testPaths(t)
	writeConfig(t, paths, `{"ui": {"window_width": 1024}}`)
	t.Setenv("WINDOW_WIDTH", "1280")
	t.Setenv("DEBUG", "TRUE")
	t.Setenv("OPENAI_TEMPERATURE", "0.2")

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, 1280, config.Settings().UI.WindowWidth)
	assert.True(t, config.Settings().App.Debug)
	assert.Equal(t, 0.2, config.Settings().Model.OpenAI.Temperature)
	assert.Equal(t, zerolog.DebugLevel, config.LogLevel())
}

func TestLoadNegativeMalformedFile(t *testing.T) {
	paths := testPaths(t)
	writeConfig(t, paths, `{"ui": {"theme": "dark",`)

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, Defaults(), config.Settings())
}

func TestLoadNegativeInvalidEnvironmentKeepsFileValue(t *testing.T) {
	paths := testPaths(t)
	writeConfig(t, paths, `{"ui": {"window_height": 700}, "notifications": {"enable": false}}`)
	t.Setenv("WINDOW_HEIGHT", "tall")
	t.Setenv("ENABLE_NOTIFICATIONS", "maybe")

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, 700, config.Settings().UI.WindowHeight)
	assert.False(t, config.Settings().Notifications.Enable)
}

func TestLoadIntegerEnvironmentIsDecimalOnly(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"decimal point", "3.0", 800},
		{"hexadecimal", "0x10", 800},
		{"digit separator", "1_0", 800},
		{"leading zero is decimal", "010", 10},
		{"surrounding spaces", " 640 ", 640},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			paths := testPaths(t)
			writeConfig(t, paths, `{"ui": {"window_width": 800}}`)
			t.Setenv("WINDOW_WIDTH", test.value)

			config, err := Load(paths)

			require.NoError(t, err)
			assert.Equal(t, test.expected, config.Settings().UI.WindowWidth)
		})
	}
}

func TestLoadBooleanEnvironmentAcceptsOnlyTrueOrFalse(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected bool
	}{
		{"lower case", "false", false},
		{"mixed case", "FaLsE", false},
		{"one", "0", true},
		{"letter", "f", true},
		{"upper letter", "F", true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			paths := testPaths(t)
			writeConfig(t, paths, `{"notifications": {"enable": true}}`)
			t.Setenv("ENABLE_NOTIFICATIONS", test.value)

			config, err := Load(paths)

			require.NoError(t, err)
			assert.Equal(t, test.expected, config.Settings().Notifications.Enable)
		})
	}
}

func TestLoadClipboardClearDelay(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"valid", "30", 30},
		{"inline comment", "45 # seconds", 45},
		{"zero", "0", 90},
		{"negative", "-5", 90},
		{"not a number", "soon", 90},
		{"only comment", "# nothing", 90},
		{"decimal point", "3.0", 90},
		{"hexadecimal", "0x10", 90},
		{"digit separator", "1_0", 90},
		{"leading zero is decimal", "010", 10},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			paths := testPaths(t)
			writeConfig(t, paths, `{"security": {"clipboard_clear_delay": 90}}`)
			t.Setenv("CLIPBOARD_CLEAR_DELAY", test.value)

			config, err := Load(paths)

			require.NoError(t, err)
			assert.Equal(t, test.expected, config.Settings().Security.ClipboardClearDelay)
		})
	}
}

func TestLoadNegativeInvalidFileValuesResetToDefaults(t *testing.T) {
	paths := testPaths(t)
	writeConfig(t, paths, `{"security": {"clipboard_clear_delay": -1}, "ui": {"window_width": "wide"}, "app": {"log_level": "LOUD"}}`)

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, 60, config.Settings().Security.ClipboardClearDelay)
	assert.Equal(t, 800, config.Settings().UI.WindowWidth)
	assert.Equal(t, "INFO", config.Settings().App.LogLevel)
	assert.NoError(t, config.Validate())
}

func TestGet(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)

	assert.Equal(t, "system", config.Get("ui", "theme", "light"))
	assert.Equal(t, "fallback", config.Get("ui", "missing", "fallback"))
	assert.Nil(t, config.Get("nowhere", "nothing", nil))
	assert.Equal(t, "gpt-4-turbo", config.GetString("model", "openai.model", ""))
	assert.Equal(t, 50, config.GetInt("session", "message_history_limit", 0))
	assert.Equal(t, 7, config.GetInt("session", "missing", 7))
	assert.True(t, config.GetBool("notifications", "sound", false))
	assert.Equal(t, 0.7, config.GetFloat("model", "anthropic.temperature", 0))
}

func TestSetAndSave(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)

	require.NoError(t, config.Set("ui", "theme", "dark"))
	require.NoError(t, config.Save())

	reloaded, err := Load(paths)
	require.NoError(t, err)
	assert.Equal(t, "dark", reloaded.Settings().UI.Theme)

	info, err := os.Stat(paths.ConfigFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestSetNegativeConstraint(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)

	err = config.Set("security", "clipboard_clear_delay", 0)

	assert.ErrorContains(t, err, "security.clipboard_clear_delay")
	assert.Equal(t, 60, config.Settings().Security.ClipboardClearDelay)
}

func TestSaveAPIKeyRoundTrip(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)
	assert.Empty(t, config.APIKey(ProviderAnthropic))

	require.NoError(t, config.SaveAPIKey(ProviderAnthropic, "sk-ant-123", nil))
	require.NoError(t, config.SaveAPIKey(ProviderGoogle, "g-key", map[string]string{"project_id": "my-project"}))

	reloaded, err := Load(paths)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-123", reloaded.APIKey(ProviderAnthropic))

	credentials, ok := reloaded.Credentials(ProviderGoogle)
	require.True(t, ok)
	assert.Equal(t, "g-key", credentials.APIKey)
	assert.Equal(t, "my-project", credentials.Extra["project_id"])

	info, err := os.Stat(paths.KeysFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadRestrictsExistingKeyFile(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.SecretsDir, 0755))
	require.NoError(t, os.WriteFile(paths.KeysFile(), []byte(`{"openai": {"api_key": "sk-file"}}`), 0644))

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, "sk-file", config.APIKey(ProviderOpenAI))
	info, err := os.Stat(paths.KeysFile())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestAPIKeyEnvironmentOverridesFile(t *testing.T) {
	paths := testPaths(t)
	require.NoError(t, os.MkdirAll(paths.SecretsDir, 0700))
	require.NoError(t, os.WriteFile(paths.KeysFile(), []byte(`{"openai": {"api_key": "sk-file"}}`), 0600))
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("LOCAL_MODEL_PATH", "/models/llama.gguf")

	config, err := Load(paths)

	require.NoError(t, err)
	assert.Equal(t, "sk-env", config.APIKey(ProviderOpenAI))
	local, ok := config.Credentials(ProviderLocal)
	require.True(t, ok)
	assert.Equal(t, "/models/llama.gguf", local.Extra["model_path"])
}

func TestProviderConfigNeverContainsKey(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)
	require.NoError(t, config.SaveAPIKey(ProviderGoogle, "g-key", map[string]string{"project_id": "p-1"}))

	result := config.ProviderConfig(ProviderGoogle)

	assert.Equal(t, "gemini-pro", result["model"])
	assert.Equal(t, "p-1", result["project_id"])
	assert.NotContains(t, result, "api_key")
}

func TestAvailableModels(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)
	require.NoError(t, config.SaveAPIKey(ProviderOpenAI, "sk-1", nil))

	available := config.AvailableModels()

	assert.True(t, available[ProviderOpenAI])
	assert.False(t, available[ProviderAnthropic])
	assert.True(t, available[ProviderLocal])
	assert.Contains(t, available, ProviderElevenLabs)
}

func TestModelDetails(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)

	details, ok := config.ModelDetails(ProviderElevenLabs)
	require.True(t, ok)
	assert.Equal(t, "premade/adam", details.VoiceID)

	_, ok = config.ModelDetails("nope")
	assert.False(t, ok)

	all := config.AllModelDetails()
	assert.Len(t, all, len(Providers))
	assert.Equal(t, 4096, all[ProviderLocal].ContextWindow)
}

func TestLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"DEBUG":    zerolog.DebugLevel,
		"INFO":     zerolog.InfoLevel,
		"WARNING":  zerolog.WarnLevel,
		"ERROR":    zerolog.ErrorLevel,
		"CRITICAL": zerolog.FatalLevel,
	}

	for name, expected := range tests {
		t.Run(name, func(t *testing.T) {
			paths := testPaths(t)
			t.Setenv("LOG_LEVEL", name)

			config, err := Load(paths)

			require.NoError(t, err)
			assert.Equal(t, expected, config.LogLevel())
		})
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	paths := testPaths(t)
	config, err := Load(paths)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan Settings, 8)
	require.NoError(t, config.Watch(ctx, func(settings Settings) {
		changes <- settings
	}))

	writeConfig(t, paths, `{"ui": {"theme": "dark"}}`)

	assert.Eventually(t, func() bool {
		return config.Settings().UI.Theme == "dark"
	}, 5*time.Second, 20*time.Millisecond)
	assert.NotEmpty(t, changes)
}

func TestDefaultPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("CONFIG_PATH", "~/custom")
	t.Setenv("DATA_PATH", "")
	t.Setenv("SECRETS_PATH", "/tmp/secrets")
	t.Setenv("API_KEYS_FILE", "")

	paths := DefaultPaths()

	assert.Equal(t, filepath.Join(home, "custom"), paths.ConfigDir)
	assert.Equal(t, filepath.Join(home, ".local", "share", "schmagent"), paths.DataDir)
	assert.Equal(t, filepath.Join("/tmp/secrets", "api_keys.json"), paths.KeysFile())
	assert.Equal(t, filepath.Join(paths.DataDir, "history.db"), paths.HistoryDatabase())
}
