package main

import (
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"schmagent/internal/pkg/chatModel"
	"schmagent/internal/pkg/chatSession"
	"schmagent/internal/pkg/clipboard"
	"schmagent/internal/pkg/cookies"
	"schmagent/internal/pkg/httpHandlers"
	"schmagent/internal/pkg/sessions"
	"schmagent/internal/pkg/settings"
	"schmagent/internal/pkg/web"
	"schmagent/internal/pkg/websocketServer"
	webAssets "schmagent/web"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("DEFAULT_MODEL", "")
	root := t.TempDir()
	cfg, err := settings.Load(settings.Paths{
		ConfigDir:   filepath.Join(root, "config"),
		DataDir:     filepath.Join(root, "data"),
		SecretsDir:  filepath.Join(root, "secrets"),
		APIKeysFile: "api_keys.json",
	})
	require.NoError(t, err)

	templates, err := web.TemplateParseFSRecursive(webAssets.TemplateFS, templatesDir, ".gohtml", nil)
	require.NoError(t, err)

	model := chatModel.New(cfg)
	codec := cookies.NewCodec([]byte("secret"), time.Hour, false)
	sessionManager := sessions.New(func(id uuid.UUID, responseFunc chatSession.ChatBlockResponseFunc) (chatSession.ChatSession, error) {
		return chatSession.New(chatSession.Options{Model: model}, responseFunc)
	})
	t.Cleanup(sessionManager.Shutdown)
	notificationServer := websocketServer.New(codec.GetIdFromCookie)

	clip := clipboard.NewWithBackend(clipboard.SystemBackend(), false, time.Minute)
	t.Cleanup(clip.Close)

	handlers := httpHandlers.New(httpHandlers.Dependencies{
		Templates:          templates,
		SessionManager:     sessionManager,
		NotificationServer: notificationServer,
		Cookies:            codec,
		Settings:           cfg,
		Model:              model,
		Clipboard:          clip,
	})

	router, err := newRouter(handlers, notificationServer, 0)
	require.NoError(t, err)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func get(t *testing.T, client *http.Client, url string) (*http.Response, string) {
	t.Helper()

	response, err := client.Get(url)
	require.NoError(t, err)
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	require.NoError(t, err)
	return response, string(body)
}

func TestRoutes(t *testing.T) {
	server := newTestServer(t)
	client := server.Client()

	page, body := get(t, client, server.URL+"/")
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, body, "<title>Schmagent</title>")

	script, body := get(t, client, server.URL+"/chat/app.js")
	assert.Equal(t, http.StatusOK, script.StatusCode)
	assert.Contains(t, body, "parseAllRawMessages")

	mainResponse, body := get(t, client, server.URL+"/api/main")
	assert.Equal(t, http.StatusOK, mainResponse.StatusCode)
	assert.Contains(t, body, "gpt-4-turbo")
	assert.NotEmpty(t, mainResponse.Header.Get("Set-Cookie"))

	settingsResponse, body := get(t, client, server.URL+"/api/settings")
	assert.Equal(t, http.StatusOK, settingsResponse.StatusCode)
	assert.Contains(t, body, `"default":"openai"`)

	historyResponse, body := get(t, client, server.URL+"/api/history")
	assert.Equal(t, http.StatusOK, historyResponse.StatusCode)
	assert.Contains(t, body, "No saved conversations")
}

func TestAskWithoutSession(t *testing.T) {
	server := newTestServer(t)

	response, err := server.Client().Post(server.URL+"/api/ask", "application/x-www-form-urlencoded", nil)
	require.NoError(t, err)
	_ = response.Body.Close()

	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCHMAGENT_TEST_VALUE=from-dotenv\n"), 0600))
	t.Setenv("SCHMAGENT_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("SCHMAGENT_TEST_VALUE"))

	loadEnvFile(path)
	loadEnvFile(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, "from-dotenv", os.Getenv("SCHMAGENT_TEST_VALUE"))
}

func TestEnvFileFeedsFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.env")
	require.NoError(t, os.WriteFile(path, []byte("SCHMAGENT_PORT=9123\nSCHMAGENT_MODE=terminal\n"), 0600))
	t.Setenv("SCHMAGENT_ENVFILE", path)
	for _, name := range []string{"SCHMAGENT_PORT", "SCHMAGENT_MODE"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}

	appConfig, err := parseApplicationConfig(nil)

	require.NoError(t, err)
	assert.Equal(t, 9123, appConfig.Port)
	assert.Equal(t, modeTerminal, appConfig.Mode)
	assert.Equal(t, path, appConfig.EnvFile)
}

func TestFlagsOverrideEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flags.env")
	require.NoError(t, os.WriteFile(path, []byte("SCHMAGENT_PORT=9123\n"), 0600))
	t.Setenv("SCHMAGENT_ENVFILE", path)
	t.Setenv("SCHMAGENT_PORT", "")
	require.NoError(t, os.Unsetenv("SCHMAGENT_PORT"))

	appConfig, err := parseApplicationConfig([]string{"--Port", "7000"})

	require.NoError(t, err)
	assert.Equal(t, 7000, appConfig.Port)
}
