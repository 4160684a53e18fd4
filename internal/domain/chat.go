package domain

import (
	"strings"
)

// Speaker identifies who produced a chat turn.
type Speaker string

// Speaker values.
const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// DefaultHistoryTurns keeps an odd number of turns so the latest user turn comes last.
const DefaultHistoryTurns = 5

// ChatTurn is one message of the conversation.
type ChatTurn struct {
	Speaker Speaker
	Text    string
}

// Session is the conversational state a search request is made in.
type Session struct {
	Turns  []ChatTurn
	UserID string
}

// History renders the last n turns as the routing context.
// User turns are prefixed with "user_id=<id>" when the session knows the user.
func (s Session) History(n int) string {
	if n <= 0 {
		n = DefaultHistoryTurns
	}
	userRole := string(SpeakerUser)
	if s.UserID != "" {
		userRole = "user_id=" + s.UserID
	}

	lines := make([]string, 0, len(s.Turns))
	for _, t := range s.Turns {
		switch t.Speaker {
		case SpeakerUser:
			lines = append(lines, userRole+":"+strings.TrimSpace(t.Text))
		case SpeakerBot:
			lines = append(lines, string(SpeakerBot)+":"+strings.TrimSpace(t.Text))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
