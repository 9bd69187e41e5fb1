package model

import "time"

// ChatRole is the speaker of a chat message.
type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
	ChatRoleSystem    ChatRole = "system"
)

// Valid reports whether r is one of the known roles.
func (r ChatRole) Valid() bool {
	switch r {
	case ChatRoleUser, ChatRoleAssistant, ChatRoleSystem:
		return true
	}
	return false
}

// ChatMessage is one persisted turn of an assistant conversation. History is
// append-only and optionally scoped to a snippet.
type ChatMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	SnippetID *string   `json:"snippetId"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
