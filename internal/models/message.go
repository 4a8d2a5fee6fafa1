package models

import "time"

// Role identifies who authored a transcript entry
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the role name
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is one transcript entry. Text is displayed verbatim.
type Message struct {
	Role      Role
	Text      string
	CreatedAt time.Time
}

// NewUserMessage creates a user entry stamped with the current time
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text, CreatedAt: time.Now()}
}

// NewAssistantMessage creates an assistant entry stamped with the current time
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text, CreatedAt: time.Now()}
}
