package websocketServer

import (
	"context"
	"errors"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"net/http"
	"sync"
	"time"
)

const (
	subscriberMessageBufferSize = 16
	writeTimeoutDuration        = 5 * time.Second
)

type websocketServerImpl struct {
	resolveId   IdResolver
	mutex       sync.Mutex
	subscribers map[*serverSubscriber]any
}

func New(resolveId IdResolver) WebsocketServer {
	wsNotificationServer := &websocketServerImpl{
		resolveId:   resolveId,
		subscribers: make(map[*serverSubscriber]any),
	}
	return wsNotificationServer
}

type serverSubscriber struct {
	id             uuid.UUID
	messageChannel chan []byte
	closeSlow      func()
}

func (instance *websocketServerImpl) Handler(responseWriter http.ResponseWriter, request *http.Request) {
	id := instance.resolveId(request)
	if id == uuid.Nil {
		http.Error(responseWriter, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	err := instance.subscribe(responseWriter, request, id)
	if errors.Is(err, context.Canceled) {
		return
	}

	if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
		websocket.CloseStatus(err) == websocket.StatusGoingAway {
		return
	}

	if err != nil {
		log.Error().Err(err).Msg("subscribe() failed")
		return
	}
}

func (instance *websocketServerImpl) subscribe(responseWriter http.ResponseWriter, request *http.Request, id uuid.UUID) error {
	websocketConnection, err := websocket.Accept(responseWriter, request, nil)
	if err != nil {
		// Accept will write a response to responseWriter on all errors
		log.Error().Err(err).Msg("websocket.Accept() failed")
		return err
	}

	defer func() {
		err := websocketConnection.CloseNow()
		if err != nil {
			log.Debug().Err(err).Msg("websocket.Conn.CloseNow() failed")
		}
	}()

	subscriber := &serverSubscriber{
		id:             id,
		messageChannel: make(chan []byte, subscriberMessageBufferSize),
		closeSlow: func() {
			err := websocketConnection.Close(websocket.StatusPolicyViolation, "connection too slow to keep up with messages")
			if err != nil {
				log.Error().Err(err).Msg("websocket.Conn.Close() failed")
			}
		},
	}

	instance.addSubscriber(subscriber)
	defer instance.deleteSubscriber(subscriber)

	log.Debug().Str("session_id", id.String()).Msg("notification subscriber connected")

	ctx := websocketConnection.CloseRead(context.Background())

	for {
		select {
		case message := <-subscriber.messageChannel:
			err := writeTimeout(ctx, writeTimeoutDuration, websocketConnection, message)
			if err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (instance *websocketServerImpl) Publish(id uuid.UUID, message []byte) {
	instance.send(message, func(subscriber *serverSubscriber) bool {
		return subscriber.id == id
	})
}

func (instance *websocketServerImpl) Broadcast(message []byte) {
	instance.send(message, func(*serverSubscriber) bool {
		return true
	})
}

func (instance *websocketServerImpl) send(message []byte, accept func(subscriber *serverSubscriber) bool) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	for subscriber := range instance.subscribers {
		if !accept(subscriber) {
			continue
		}
		select {
		case subscriber.messageChannel <- message:
		default:
			go subscriber.closeSlow()
		}
	}
}

func (instance *websocketServerImpl) addSubscriber(subscriber *serverSubscriber) {
	instance.mutex.Lock()
	instance.subscribers[subscriber] = struct{}{}
	instance.mutex.Unlock()
}

func (instance *websocketServerImpl) deleteSubscriber(subscriber *serverSubscriber) {
	instance.mutex.Lock()
	delete(instance.subscribers, subscriber)
	instance.mutex.Unlock()
}

func (instance *websocketServerImpl) subscriberCount() int {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()
	return len(instance.subscribers)
}

func writeTimeout(ctx context.Context, timeout time.Duration, websocketConnection *websocket.Conn, msg []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := websocketConnection.Write(writeCtx, websocket.MessageText, msg)
	if err != nil {
		log.Error().Err(err).Msg("websocket.Conn.Write() failed")
		return err
	}

	return nil
}
