package chatModel

import "github.com/cloudwego/eino/schema"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. It is passed by value and never modified after creation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ParseRole maps unknown roles to RoleUser.
func ParseRole(role string) Role {
	switch Role(role) {
	case RoleSystem, RoleAssistant:
		return Role(role)
	default:
		return RoleUser
	}
}

func toSchemaMessages(messages []Message) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))
	for _, message := range messages {
		switch message.Role {
		case RoleSystem:
			result = append(result, schema.SystemMessage(message.Content))
		case RoleAssistant:
			result = append(result, schema.AssistantMessage(message.Content, nil))
		default:
			result = append(result, schema.UserMessage(message.Content))
		}
	}
	return result
}
