package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
)

func TestAssignSignersMovesDocumentToPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob", "carol")
	d := f.groupDoc(t, gid, "alice")

	got, err := f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob", "carol", "bob"}, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusPending, got.Status)

	n, err := f.svc.CountPending(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, f.audit.Actions(), audit.ActionAssignSigners)
}

func TestAssignNoSignersKeepsDraft(t *testing.T) {
	f := newFixture(t)
	gid := f.group(t, "alice")
	d := f.groupDoc(t, gid, "alice")

	got, err := f.svc.AssignSigners(context.Background(), gid, d.ID, "alice", nil, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusDraft, got.Status)
}

func TestAssignSignersRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob")
	d := f.groupDoc(t, gid, "alice")

	_, err := f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"mallory"}, RequestContext{})
	assert.True(t, errors.Is(err, document.ErrInvalidInput))

	_, err = f.svc.AssignSigners(ctx, gid, d.ID, "bob", []string{"bob"}, RequestContext{})
	assert.True(t, errors.Is(err, document.ErrUnauthorized))

	_, err = f.svc.AssignSigners(ctx, gid, d.ID, "mallory", []string{"bob"}, RequestContext{})
	assert.True(t, errors.Is(err, document.ErrUnauthorized))

	require.NoError(t, f.repo.UpdateStatus(ctx, d.ID, document.StatusDraft, document.StatusCompleted))
	_, err = f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	assert.True(t, errors.Is(err, document.ErrAlreadyFinalized))
}

func TestUpdateSignersCannotRemoveSigned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob", "carol")
	d := f.groupDoc(t, gid, "alice")
	_, err := f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob", "carol"}, RequestContext{})
	require.NoError(t, err)
	f.sign(t, gid, d.ID, "bob")

	_, err = f.svc.UpdateSigners(ctx, gid, d.ID, "alice", []string{"carol"}, RequestContext{})
	require.True(t, errors.Is(err, document.ErrCannotRemoveSignedSigner))

	rows, err := f.svc.ListSigners(ctx, gid, d.ID, "alice")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestUpdateSignersCrossesDraftBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob", "carol")
	d := f.groupDoc(t, gid, "alice")
	_, err := f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	require.NoError(t, err)

	got, err := f.svc.UpdateSigners(ctx, gid, d.ID, "alice", []string{"carol"}, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusPending, got.Status)

	got, err = f.svc.UpdateSigners(ctx, gid, d.ID, "alice", nil, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusDraft, got.Status)

	got, err = f.svc.UpdateSigners(ctx, gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusPending, got.Status)
}

func TestSaveSignatureMarksSigner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob")
	d := f.groupDoc(t, gid, "alice")
	_, err := f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	require.NoError(t, err)

	_, err = f.svc.SaveSignature(ctx, gid, d.ID, "alice", sigInput("alice"), RequestContext{})
	assert.True(t, errors.Is(err, document.ErrUnauthorized))

	bad := sigInput("bob")
	bad.PositionX = 1.5
	_, err = f.svc.SaveSignature(ctx, gid, d.ID, "bob", bad, RequestContext{})
	assert.True(t, errors.Is(err, document.ErrInvalidInput))

	first := f.sign(t, gid, d.ID, "bob")
	second := f.sign(t, gid, d.ID, "bob")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "10.0.0.1", second.IPAddress)

	sigs, err := f.repo.ListByVersion(ctx, d.CurrentVersionID, document.KindGroup)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.Equal(t, second.ID, sigs[0].ID)

	n, err := f.svc.CountPending(ctx, d.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRejectDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob")
	d := f.groupDoc(t, gid, "alice")
	_, err := f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	require.NoError(t, err)
	f.sign(t, gid, d.ID, "bob")

	require.NoError(t, f.svc.RejectDocument(ctx, gid, d.ID, "bob", "salah nominal", RequestContext{}))

	rows, err := f.svc.ListSigners(ctx, gid, d.ID, "alice")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, document.SignerRejected, rows[0].Status)

	sigs, err := f.repo.ListByVersion(ctx, d.CurrentVersionID, document.KindGroup)
	require.NoError(t, err)
	assert.Empty(t, sigs)

	_, err = f.svc.SaveSignature(ctx, gid, d.ID, "bob", sigInput("bob"), RequestContext{})
	assert.True(t, errors.Is(err, document.ErrInvalidInput))
}
