package domain

import "time"

// Role identifies who produced a chat turn.
type Role string

// Chat roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation points an answer back at a chunk that was in the prompt.
type Citation struct {
	ChunkID    string
	DocumentID string
	Source     string
	Section    string
	Snippet    string
	Score      float64
}

// Answer is a synthesised response and the chunks it was grounded on.
type Answer struct {
	Text      string
	Citations []Citation
}

// ChatTurn is one message in a session.
type ChatTurn struct {
	Role      Role
	Content   string
	Citations []Citation
	At        time.Time
}

// Session is a caller-owned conversation. It is passed explicitly to
// every chat call; nothing process-wide backs it.
type Session struct {
	ID     string
	Filter QueryFilter
	Turns  []ChatTurn
}

// History returns at most the last n turns. n <= 0 returns none.
func (s *Session) History(n int) []ChatTurn {
	if s == nil || n <= 0 {
		return nil
	}
	if len(s.Turns) <= n {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Append adds completed turns.
func (s *Session) Append(turns ...ChatTurn) {
	s.Turns = append(s.Turns, turns...)
}
