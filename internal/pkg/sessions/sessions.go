package sessions

import (
	"errors"
	"fmt"
	"github.com/google/uuid"
	"schmagent/internal/pkg/chatSession"
	"sync"
)

// SessionFactory creates the chat session of a new id.
type SessionFactory func(id uuid.UUID, responseFunc chatSession.ChatBlockResponseFunc) (chatSession.ChatSession, error)

type SessionManager struct {
	mutex        sync.RWMutex
	factory      SessionFactory
	chatSessions map[uuid.UUID]chatSession.ChatSession
}

func New(factory SessionFactory) *SessionManager {
	sessionManager := &SessionManager{
		factory:      factory,
		chatSessions: make(map[uuid.UUID]chatSession.ChatSession),
	}
	return sessionManager
}

func (instance *SessionManager) AddSession(id uuid.UUID, responseFunc chatSession.ChatBlockResponseFunc) error {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	_, ok := instance.chatSessions[id]
	if ok {
		return errors.New("session with such id already exists")
	}

	chat, err := instance.factory(id, responseFunc)
	if err != nil {
		return fmt.Errorf("session factory failed: %w", err)
	}

	instance.chatSessions[id] = chat

	return nil
}

func (instance *SessionManager) GetSession(id uuid.UUID) chatSession.ChatSession {
	instance.mutex.RLock()
	defer instance.mutex.RUnlock()

	return instance.chatSessions[id]
}

func (instance *SessionManager) Count() int {
	instance.mutex.RLock()
	defer instance.mutex.RUnlock()

	return len(instance.chatSessions)
}

func (instance *SessionManager) Shutdown() {
	instance.mutex.RLock()
	defer instance.mutex.RUnlock()

	for _, session := range instance.chatSessions {
		session.Shutdown()
	}
}
