package httpHandlers

import (
	"errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"net/http"
	"schmagent/internal/pkg/chatModel"
	"schmagent/internal/pkg/clipboard"
	"schmagent/internal/pkg/history"
	"schmagent/internal/pkg/settings"
	"schmagent/internal/pkg/web"
	"slices"
	"strings"
)

// Paste returns the input box filled with the clipboard text. It needs a session cookie.
func (instance *ChatHandlers) Paste(request *http.Request, _ int) *web.Response {
	id := instance.dependencies.Cookies.GetIdFromCookie(request)
	if id == uuid.Nil {
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	text, err := instance.dependencies.Clipboard.GetText()
	if err != nil {
		log.Error().Err(err).Msg("clipboard.GetText() failed")
		message := "Clipboard can't be read"
		if errors.Is(err, clipboard.ErrClipboardUnavailable) {
			message = "Clipboard is not available"
		}
		instance.notify(id, toastError, message)
		text = ""
	}

	return web.RenderResponse(http.StatusOK, instance.dependencies.Templates, "user-input.gohtml", text, nil, nil)
}

// SaveKey stores the API key posted for one provider. Requests without a session cookie are rejected.
func (instance *ChatHandlers) SaveKey(request *http.Request, _ int) *web.Response {
	id := instance.dependencies.Cookies.GetIdFromCookie(request)
	if id == uuid.Nil {
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	if err := request.ParseForm(); err != nil {
		log.Error().Err(err).Msg("http.Request.ParseForm() failed")
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	provider := strings.ToLower(strings.TrimSpace(request.Form.Get("provider")))
	key := strings.TrimSpace(request.Form.Get("api-key"))
	if key == "" || !slices.Contains(settings.Providers, provider) {
		instance.notify(id, toastError, "Choose a provider and enter a key")
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	if err := instance.dependencies.Settings.SaveAPIKey(provider, key, nil); err != nil {
		instance.notify(id, toastError, "API key could not be saved")
		return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
	}

	instance.notify(id, toastInfo, "API key saved")
	return web.GetEmptyResponse(http.StatusOK, nil, nil)
}

type settingsView struct {
	Settings        settings.Settings   `json:"settings"`
	Model           chatModel.ModelInfo `json:"model"`
	AvailableModels map[string]bool     `json:"available_models"`
}

// Settings returns the merged settings as JSON. API keys live in a separate store and are never part of it.
func (instance *ChatHandlers) Settings(_ *http.Request, _ int) *web.Response {
	view := settingsView{
		Settings:        instance.dependencies.Settings.Settings(),
		Model:           instance.dependencies.Model.Info(),
		AvailableModels: instance.dependencies.Settings.AvailableModels(),
	}
	return web.JSONResponse(http.StatusOK, view, nil, nil)
}

func (instance *ChatHandlers) History(request *http.Request, _ int) *web.Response {
	conversations := []history.Conversation{}
	if instance.dependencies.History != nil {
		var err error
		conversations, err = instance.dependencies.History.Conversations(request.Context())
		if err != nil {
			log.Error().Err(err).Msg("history.Conversations() failed")
			return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
		}
	}

	if strings.Contains(request.Header.Get("Accept"), "application/json") {
		return web.JSONResponse(http.StatusOK, conversations, nil, nil)
	}
	return web.RenderResponse(http.StatusOK, instance.dependencies.Templates, "history.gohtml", conversations, nil, nil)
}

func (instance *ChatHandlers) notify(id uuid.UUID, level string, message string) {
	if id == uuid.Nil || !instance.dependencies.Settings.GetBool("notifications", "enable", true) {
		return
	}

	toast := UiToast{
		Level:   level,
		Message: message,
		Sound:   instance.dependencies.Settings.GetBool("notifications", "sound", true),
	}
	content, err := web.Render(instance.dependencies.Templates, "toast.gohtml", toast)
	if err != nil {
		return
	}
	instance.dependencies.NotificationServer.Publish(id, content)
}
