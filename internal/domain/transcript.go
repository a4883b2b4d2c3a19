// internal/domain/transcript.go
package domain

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a plan's chat transcript.
type ChatMessage struct {
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// TailOf returns a copy of the last n messages. n <= 0 means all.
func TailOf(msgs []ChatMessage, n int) []ChatMessage {
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return append([]ChatMessage(nil), msgs...)
}
