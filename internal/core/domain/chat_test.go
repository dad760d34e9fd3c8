package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestSession_History tests the trailing-window view of turns
func TestSession_History(t *testing.T) {
	s := &Session{}
	for i := 0; i < 5; i++ {
		s.Append(ChatTurn{Role: RoleUser, Content: string(rune('a' + i))})
	}

	assert.Len(t, s.History(10), 5)
	last := s.History(2)
	assert.Len(t, last, 2)
	assert.Equal(t, "d", last[0].Content)
	assert.Equal(t, "e", last[1].Content)
	assert.Nil(t, s.History(0))

	var nilSession *Session
	assert.Nil(t, nilSession.History(3))
}
