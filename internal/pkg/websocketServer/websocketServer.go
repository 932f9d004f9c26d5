package websocketServer

import (
	"github.com/google/uuid"
	"net/http"
)

type WebsocketServer interface {
	Handler(responseWriter http.ResponseWriter, request *http.Request)
	// Publish sends message to every connection of session id.
	Publish(id uuid.UUID, message []byte)
	// Broadcast sends message to every connection.
	Broadcast(message []byte)
}

// IdResolver extracts the session id of a connecting client. uuid.Nil rejects the connection.
type IdResolver func(request *http.Request) uuid.UUID
