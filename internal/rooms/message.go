package rooms

import (
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/roomsync/internal/ledger"
)

// JoinedText is the sentinel text of a system "joined" message.
const JoinedText = "__system__joined"

// Message is one entry in a room.
type Message struct {
	Text      string          `json:"text"`
	Timestamp time.Time       `json:"timestamp"`
	Author    ledger.Identity `json:"author"`
	Read      bool            `json:"read"`
}

// NewMessage builds a user message. Text is NFC normalized so the same
// characters typed on different devices compare equal.
func NewMessage(text string, author ledger.Identity, now time.Time) Message {
	return Message{
		Text:      norm.NFC.String(text),
		Timestamp: now.UTC(),
		Author:    author,
	}
}

// Joined builds the system message announcing author in a room.
func Joined(author ledger.Identity, now time.Time) Message {
	return Message{
		Text:      JoinedText,
		Timestamp: now.UTC(),
		Author:    author,
		Read:      true,
	}
}

// IsSystem reports whether m is a system event rather than content.
func (m Message) IsSystem() bool {
	return m.Text == JoinedText
}

// Visible returns the messages that carry content, in order.
func Visible(messages []Message) []Message {
	visible := make([]Message, 0, len(messages))
	for _, m := range messages {
		if !m.IsSystem() {
			visible = append(visible, m)
		}
	}
	return visible
}
