package web

import (
	"github.com/rs/zerolog/log"
	"net/http"
)

type Headers map[string]string

type Response struct {
	Status      int
	ContentType string
	Content     []byte
	Headers     Headers
	Cookie      *http.Cookie
}

func (response *Response) Write(responseWriter http.ResponseWriter) {
	if response == nil {
		responseWriter.WriteHeader(http.StatusOK)
		return
	}

	if response.Cookie != nil {
		http.SetCookie(responseWriter, response.Cookie)
	}
	if response.ContentType != "" {
		responseWriter.Header().Set("Content-Type", response.ContentType)
	}
	for k, v := range response.Headers {
		responseWriter.Header().Set(k, v)
	}
	responseWriter.WriteHeader(response.Status)

	if _, err := responseWriter.Write(response.Content); err != nil {
		log.Error().Err(err).Msg("http.ResponseWriter.Write() failed")
	}
}
