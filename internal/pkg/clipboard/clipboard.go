package clipboard

import (
	"errors"
	"fmt"
	systemClipboard "github.com/atotto/clipboard"
	"github.com/rs/zerolog/log"
	"schmagent/internal/pkg/settings"
	"sync"
	"time"
)

var ErrClipboardUnavailable = errors.New("clipboard is unavailable")

type Backend interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemBackend struct{}

func (systemBackend) ReadAll() (string, error) {
	if systemClipboard.Unsupported {
		return "", ErrClipboardUnavailable
	}
	return systemClipboard.ReadAll()
}

func (systemBackend) WriteAll(text string) error {
	if systemClipboard.Unsupported {
		return ErrClipboardUnavailable
	}
	return systemClipboard.WriteAll(text)
}

// SystemBackend is the clipboard of the desktop session.
func SystemBackend() Backend {
	return systemBackend{}
}

// Manager reads and writes the clipboard and optionally clears it some time after its content was used.
type Manager struct {
	backend Backend

	mutex      sync.Mutex
	autoClear  bool
	clearDelay time.Duration
	timer      *time.Timer
	generation uint64
	closed     bool
}

func New(security settings.SecuritySettings) *Manager {
	return NewWithBackend(SystemBackend(), security.ClipboardAutoClear, security.ClipboardClearDuration())
}

func NewWithBackend(backend Backend, autoClear bool, clearDelay time.Duration) *Manager {
	return &Manager{
		backend:    backend,
		autoClear:  autoClear,
		clearDelay: clearDelay,
	}
}

// Configure applies changed security settings. A pending clear keeps its original deadline.
func (instance *Manager) Configure(security settings.SecuritySettings) {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	instance.autoClear = security.ClipboardAutoClear
	instance.clearDelay = security.ClipboardClearDuration()
	if !instance.autoClear {
		instance.cancelClear()
	}
}

// GetText returns the clipboard text. Reading non-empty text schedules an automatic clear when enabled.
func (instance *Manager) GetText() (string, error) {
	text, err := instance.backend.ReadAll()
	if err != nil {
		return "", fmt.Errorf("reading clipboard failed: %w", err)
	}

	if text != "" {
		instance.scheduleClear()
	}
	return text, nil
}

func (instance *Manager) SetText(text string) error {
	if err := instance.backend.WriteAll(text); err != nil {
		return fmt.Errorf("writing clipboard failed: %w", err)
	}

	instance.scheduleClear()
	return nil
}

// scheduleClear replaces any pending clear with a new one.
func (instance *Manager) scheduleClear() {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	if !instance.autoClear || instance.closed || instance.clearDelay <= 0 {
		return
	}

	instance.cancelClear()
	generation := instance.generation
	instance.timer = time.AfterFunc(instance.clearDelay, func() {
		instance.clear(generation)
	})
	log.Debug().Dur("delay", instance.clearDelay).Msg("clipboard clear scheduled")
}

// cancelClear expects the mutex to be held.
func (instance *Manager) cancelClear() {
	instance.generation++
	if instance.timer != nil {
		instance.timer.Stop()
		instance.timer = nil
	}
}

func (instance *Manager) clear(generation uint64) {
	instance.mutex.Lock()
	if generation != instance.generation || instance.closed {
		instance.mutex.Unlock()
		return
	}
	instance.timer = nil
	instance.mutex.Unlock()

	if err := instance.backend.WriteAll(""); err != nil {
		log.Error().Err(err).Msg("clearing clipboard failed")
		return
	}
	log.Debug().Msg("clipboard automatically cleared")
}

// Close cancels a pending clear.
func (instance *Manager) Close() {
	instance.mutex.Lock()
	defer instance.mutex.Unlock()

	instance.cancelClear()
	instance.closed = true
}
