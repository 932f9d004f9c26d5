package chatModel

import (
	"context"
	"errors"
	"github.com/rs/zerolog/log"
	"time"
)

const DefaultResponseWait = 30 * time.Second

// GenerateWithTimeout bounds the whole call by wait, independently of the provider's own request timeout.
// A response arriving after the window is discarded.
func GenerateWithTimeout(ctx context.Context, model ChatModel, messages []Message, wait time.Duration) string {
	if wait <= 0 {
		wait = DefaultResponseWait
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	responses := make(chan string, 1)
	go func() {
		responses <- model.GenerateResponse(waitCtx, messages)
	}()

	select {
	case response := <-responses:
		return response
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			log.Warn().Str("provider", model.Provider()).Dur("wait", wait).Msg("model response timed out")
			return requestTimedOutText
		}
		return errorText(waitCtx.Err())
	}
}
