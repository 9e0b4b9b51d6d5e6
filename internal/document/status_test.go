package document

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusDraft, true},
		{StatusDraft, StatusCompleted, true},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusDraft, false},
		{StatusCompleted, StatusArchived, true},
		{StatusArchived, StatusDraft, false},
		{StatusArchived, StatusArchived, false},
		{StatusPending, StatusPending, true},
	}
	for _, c := range cases {
		got, err := c.from.TransitionTo(c.to)
		if c.ok {
			require.NoError(t, err, "%s -> %s", c.from, c.to)
			assert.Equal(t, c.to, got)
		} else {
			require.Error(t, err, "%s -> %s", c.from, c.to)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, c.from, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("pending")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s)
	_, err = ParseStatus("signed")
	require.Error(t, err)
	assert.True(t, StatusCompleted.Locked())
	assert.False(t, StatusPending.Locked())
}
