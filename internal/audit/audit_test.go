package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorderStampsTime(t *testing.T) {
	r := &Recorder{}
	require.NoError(t, r.Log(context.Background(), Entry{Action: ActionFinalize, ActorID: "u1", SubjectID: "d1"}))
	require.NoError(t, r.Log(context.Background(), Entry{Action: ActionVerifyUnlock, SubjectID: "s1"}))

	entries := r.Entries()
	require.Len(t, entries, 2)
	require.False(t, entries[0].At.IsZero())
	require.Equal(t, []string{ActionFinalize, ActionVerifyUnlock}, r.Actions())
}

func TestNoop(t *testing.T) {
	require.NoError(t, Noop{}.Log(context.Background(), Entry{Action: ActionSignPackage}))
}
