package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"io"
	"schmagent/internal/pkg/chatModel"
	"schmagent/internal/pkg/chatSession"
	"strings"
	"time"
)

const helpText = `Available Commands:
  /help - Show this help message
  /paste - Send the clipboard text as a message
  /history - Display conversation history
  /model - Show the active model
  /clear - Clear the conversation and the screen
  /quit - Exit the application`

// Clipboard is the part of the clipboard manager the console uses.
type Clipboard interface {
	GetText() (string, error)
}

type Options struct {
	Model        chatModel.ChatModel
	ResponseWait time.Duration
	HistoryLimit int
	// History and ConversationID enable persistence of the turns.
	History        chatSession.ConversationStore
	ConversationID string
	Clipboard      Clipboard
	Input          io.Reader
	Output         io.Writer
}

type Console struct {
	options Options
	session chatSession.ChatSession
	answers chan chatSession.ChatBlock
	out     io.Writer
}

func New(options Options) (*Console, error) {
	console := &Console{
		options: options,
		answers: make(chan chatSession.ChatBlock, 1),
		out:     options.Output,
	}

	session, err := chatSession.New(chatSession.Options{
		Model:          options.Model,
		ResponseWait:   options.ResponseWait,
		HistoryLimit:   options.HistoryLimit,
		History:        options.History,
		ConversationID: options.ConversationID,
	}, console.onResponse)
	if err != nil {
		return nil, err
	}
	console.session = session

	return console, nil
}

func (instance *Console) onResponse(response chatSession.ChatBlockResponse) {
	if response.New {
		return
	}
	instance.answers <- response.ChatBlock
}

// Run reads lines until /quit, end of input or ctx cancellation.
func (instance *Console) Run(ctx context.Context) error {
	defer instance.session.Shutdown()

	lines, readErrors := readLines(instance.options.Input)

	info := instance.options.Model.Info()
	instance.printf("Welcome to Schmagent (%s, %s). Type your message or /help for commands.\n", info.Provider, info.Model)

	for {
		instance.printf("\nYou: ")

		var line string
		select {
		case <-ctx.Done():
			instance.printf("\nGoodbye!\n")
			return nil
		case err := <-readErrors:
			return fmt.Errorf("failed to get prompt: %w", err)
		case next, ok := <-lines:
			if !ok {
				instance.printf("\nGoodbye!\n")
				return nil
			}
			line = strings.TrimSpace(next)
		}

		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := instance.command(ctx, line)
			if err != nil {
				return err
			}
			if quit {
				instance.printf("\nGoodbye!\n")
				return nil
			}
			continue
		}

		if err := instance.ask(ctx, line); err != nil {
			return err
		}
	}
}

func (instance *Console) command(ctx context.Context, line string) (bool, error) {
	switch line {
	case "/help":
		instance.printf("\n%s\n", helpText)
	case "/paste":
		text, err := instance.options.Clipboard.GetText()
		if err != nil {
			log.Error().Err(err).Msg("clipboard.GetText() failed")
			instance.printf("Clipboard can't be read: %v\n", err)
			return false, nil
		}
		text = strings.TrimSpace(text)
		if text == "" {
			instance.printf("Clipboard is empty\n")
			return false, nil
		}
		instance.printf("%s\n", text)
		return false, instance.ask(ctx, text)
	case "/history":
		instance.printHistory()
	case "/model":
		info := instance.options.Model.Info()
		instance.printf("\nProvider: %s\nModel: %s\nTemperature: %.2f\nMax tokens: %d\n",
			info.Provider, info.Model, info.Temperature, info.MaxTokens)
	case "/clear":
		instance.session.Clear()
		instance.printf("\033[H\033[2J")
	case "/quit":
		return true, nil
	default:
		instance.printf("Unknown command: %s\n", line)
	}
	return false, nil
}

func (instance *Console) ask(ctx context.Context, question string) error {
	if err := instance.session.EnqueueMessage(question); err != nil {
		return fmt.Errorf("enqueue question failed: %w", err)
	}

	instance.printf("\nThinking...\n")

	select {
	case <-ctx.Done():
		return nil
	case block := <-instance.answers:
		if block.Failed {
			instance.printf("\n%s\n", block.AssistantMessage)
			return nil
		}
		instance.printf("\n%s (Assistant): %s\n", instance.options.Model.Info().Model, block.AssistantMessage)
		return nil
	}
}

func (instance *Console) printHistory() {
	messages := instance.session.Messages()
	instance.printf("\nConversation History:\n")
	if len(messages) == 0 {
		instance.printf("  No messages yet.\n")
		return
	}

	model := instance.options.Model.Info().Model
	for _, message := range messages {
		switch message.Role {
		case chatModel.RoleUser:
			instance.printf("  You: %s\n", message.Content)
		case chatModel.RoleAssistant:
			instance.printf("  %s: %s\n", model, message.Content)
		}
	}
}

func (instance *Console) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(instance.out, format, args...); err != nil {
		log.Error().Err(err).Msg("console write failed")
	}
}

// readLines feeds the input into a channel so that reading does not block cancellation.
func readLines(input io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	readErrors := make(chan error, 1)

	go func() {
		defer close(lines)

		reader := bufio.NewReader(input)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lines <- line
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErrors <- err
				}
				return
			}
		}
	}()

	return lines, readErrors
}
