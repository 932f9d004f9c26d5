package httpHandlers

import (
	"context"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"html/template"
	"net/http"
	"schmagent/internal/pkg/chatModel"
	"schmagent/internal/pkg/chatSession"
	"schmagent/internal/pkg/cookies"
	"schmagent/internal/pkg/history"
	"schmagent/internal/pkg/sessions"
	"schmagent/internal/pkg/settings"
	"schmagent/internal/pkg/web"
	"schmagent/internal/pkg/websocketServer"
	"strings"
	"time"
)

// Clipboard is the part of the clipboard manager the handlers use.
type Clipboard interface {
	GetText() (string, error)
}

// ConversationLister lists persisted conversations.
type ConversationLister interface {
	Conversations(ctx context.Context) ([]history.Conversation, error)
}

type Dependencies struct {
	Templates          *template.Template
	SessionManager     *sessions.SessionManager
	NotificationServer websocketServer.WebsocketServer
	Cookies            *cookies.Codec
	Settings           *settings.Config
	Model              chatModel.ChatModel
	Clipboard          Clipboard
	// History is nil when persistence is disabled.
	History ConversationLister
}

type ChatHandlers struct {
	dependencies Dependencies
}

func New(dependencies Dependencies) *ChatHandlers {
	return &ChatHandlers{dependencies: dependencies}
}

func (instance *ChatHandlers) Main(request *http.Request, simulatedDelay int) *web.Response {
	time.Sleep(time.Duration(simulatedDelay) * time.Millisecond)

	var cookie *http.Cookie
	id := instance.dependencies.Cookies.GetIdFromCookie(request)
	if id == uuid.Nil || instance.dependencies.SessionManager.GetSession(id) == nil {
		var err error
		id, err = uuid.NewUUID()
		if err != nil {
			return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
		}

		cookie = instance.dependencies.Cookies.SetIdToCookie(id)
		if cookie == nil {
			return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
		}

		err = instance.dependencies.SessionManager.AddSession(id, instance.chatBlockResponseHandler(id))
		if err != nil {
			log.Error().Err(err).Msg("sessionManager.AddSession() failed")
			return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
		}
	}

	session := instance.dependencies.SessionManager.GetSession(id)
	if session == nil {
		log.Error().Msg("sessionManager.GetSession() failed")
		return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
	}

	view := UiMain{
		Blocks:    ToUiSessions(session.ChatBlocks()),
		Info:      instance.dependencies.Model.Info(),
		Available: instance.dependencies.Settings.AvailableModels()[instance.dependencies.Model.Provider()],
	}

	headers := web.Headers{"HX-Trigger-After-Swap": "{\"parseAllRawMessages\":\"\"}"}
	return web.RenderResponse(http.StatusOK, instance.dependencies.Templates, "main.gohtml", view, headers, cookie)
}

func (instance *ChatHandlers) Ask(request *http.Request, simulatedDelay int) *web.Response {
	id := instance.dependencies.Cookies.GetIdFromCookie(request)
	if id == uuid.Nil {
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	session := instance.dependencies.SessionManager.GetSession(id)
	if session == nil {
		log.Error().Msg("sessionManager.GetSession() failed")
		return web.GetEmptyResponse(http.StatusInternalServerError, nil, nil)
	}

	err := request.ParseForm()
	if err != nil {
		log.Error().Err(err).Msg("http.Request.ParseForm() failed")
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	userInput := strings.TrimSpace(request.Form.Get("user-input"))
	if userInput == "" {
		return web.GetEmptyResponse(http.StatusBadRequest, nil, nil)
	}

	err = session.EnqueueMessage(userInput)
	if err != nil {
		log.Error().Err(err).Msg("enqueue question failed")
		instance.notify(id, toastError, "Too many pending questions, please wait")
		return web.GetEmptyResponse(http.StatusServiceUnavailable, nil, nil)
	}

	time.Sleep(time.Duration(simulatedDelay) * time.Millisecond)

	headers := web.Headers{"HX-Trigger-After-Swap": "{\"clearUserInput\":\"\"}"}
	return web.GetEmptyResponse(http.StatusOK, headers, nil)
}

func (instance *ChatHandlers) chatBlockResponseHandler(id uuid.UUID) chatSession.ChatBlockResponseFunc {
	return func(response chatSession.ChatBlockResponse) {
		content, err := web.Render(instance.dependencies.Templates, "chat-response.gohtml", ToUiSessionResponse(response))
		if err == nil {
			instance.dependencies.NotificationServer.Publish(id, content)
		}

		if !response.New && response.ChatBlock.Failed {
			instance.notify(id, toastError, response.ChatBlock.AssistantMessage)
		}
	}
}
