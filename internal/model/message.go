package model

// Role tags a chat turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation as seen by the client.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
