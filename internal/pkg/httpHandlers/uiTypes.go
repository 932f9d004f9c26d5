package httpHandlers

import (
	"encoding/base64"
	"schmagent/internal/pkg/chatModel"
	"schmagent/internal/pkg/chatSession"
)

const (
	toastInfo  = "info"
	toastError = "error"
)

type UiMain struct {
	Blocks    []UiSession
	Info      chatModel.ModelInfo
	Available bool
}

type UiToast struct {
	Level   string
	Message string
	Sound   bool
}

type UiSessionResponse struct {
	UiSession
	Index int
	New   bool
}

// UiSession carries the message texts base64 encoded; the page decodes them after every swap.
type UiSession struct {
	SystemMessageContent    string
	UserMessageContent      string
	AssistantMessageContent string
	Completed               bool
	Failed                  bool
}

func encode(content string) string {
	if content == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(content))
}

func toUiSession(session chatSession.ChatBlock) UiSession {
	return UiSession{
		SystemMessageContent:    encode(session.SystemMessage),
		UserMessageContent:      encode(session.UserMessage),
		AssistantMessageContent: encode(session.AssistantMessage),
		Completed:               session.Completed,
		Failed:                  session.Failed,
	}
}

func ToUiSessionResponse(response chatSession.ChatBlockResponse) UiSessionResponse {
	return UiSessionResponse{
		UiSession: toUiSession(response.ChatBlock),
		Index:     response.Index,
		New:       response.New,
	}
}

func ToUiSessions(sessions []chatSession.ChatBlock) []UiSession {
	uiSessions := make([]UiSession, len(sessions))
	for i, session := range sessions {
		uiSessions[i] = toUiSession(session)
	}
	return uiSessions
}
