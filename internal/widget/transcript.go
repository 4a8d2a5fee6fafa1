package widget

import (
	"sync"

	"github.com/diogo/querychat/internal/models"
)

// Transcript is the ordered, append-only list of messages shown to the user.
// It lives in memory only.
type Transcript struct {
	mu      sync.RWMutex
	entries []models.Message
}

// NewTranscript creates an empty transcript
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Append adds msg at the end and returns it
func (t *Transcript) Append(msg models.Message) models.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, msg)
	return msg
}

// Entries returns a snapshot of all messages in order
func (t *Transcript) Entries() []models.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]models.Message, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of messages
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Last returns the most recent message, if any
func (t *Transcript) Last() (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.entries) == 0 {
		return models.Message{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// LastReply returns the most recent assistant message, if any
func (t *Transcript) LastReply() (models.Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].Role == models.RoleAssistant {
			return t.entries[i], true
		}
	}
	return models.Message{}, false
}
