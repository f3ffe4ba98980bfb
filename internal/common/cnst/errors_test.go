package cnst

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorConstants(t *testing.T) {
	assert.Equal(t, "session not found", ErrSessionNotFound.Error())
	assert.Equal(t, "session has no host", ErrSessionHasNoHost.Error())
	assert.Equal(t, "session is full", ErrSessionFull.Error())
	assert.NotNil(t, ErrEmptyRoster)
	assert.NotNil(t, ErrConnectionClosed)
	assert.NotNil(t, ErrSendQueueFull)
}

func TestCloseReason(t *testing.T) {
	cases := []struct {
		err    error
		reason string
		ok     bool
	}{
		{ErrSessionNotFound, "Session does not exist", true},
		{fmt.Errorf("admit p1: %w", ErrSessionHasNoHost), "Session has no DM", true},
		{ErrSessionFull, "Session is full", true},
		{errors.New("other"), "", false},
		{nil, "", false},
	}
	for _, c := range cases {
		reason, ok := CloseReason(c.err)
		assert.Equal(t, c.reason, reason)
		assert.Equal(t, c.ok, ok)
	}
}
