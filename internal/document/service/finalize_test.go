package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/integrity"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/locks"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
	"golang.org/x/crypto/bcrypt"
)

// readyDoc returns a group document signed by bob.
func readyDoc(t *testing.T, f *fixture) (string, *document.Document) {
	t.Helper()
	gid := f.group(t, "alice", "bob")
	d := f.groupDoc(t, gid, "alice")
	_, err := f.svc.AssignSigners(context.Background(), gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	require.NoError(t, err)
	f.sign(t, gid, d.ID, "bob")
	return gid, d
}

func TestFinalizeIncompleteSignatures(t *testing.T) {
	f := newFixture(t)
	gid := f.group(t, "alice", "bob", "carol")
	d := f.groupDoc(t, gid, "alice")
	_, err := f.svc.AssignSigners(context.Background(), gid, d.ID, "alice", []string{"bob", "carol"}, RequestContext{})
	require.NoError(t, err)

	_, err = f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.True(t, errors.Is(err, document.ErrIncompleteSignatures))
	assert.Contains(t, err.Error(), "2")
	var e *document.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 2, e.Remaining)
	assert.Zero(t, f.engine.calls)
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid, d := readyDoc(t, f)

	res, err := f.svc.Finalize(ctx, gid, d.ID, "alice", RequestContext{IPAddress: "10.0.0.9"})
	require.NoError(t, err)
	assert.Equal(t, "123456", res.AccessCode)
	assert.Equal(t, document.StatusCompleted, res.Document.Status)
	assert.Equal(t, 1, f.engine.calls)
	assert.True(t, f.engine.lastOpts.DisplayQRCode)
	assert.Len(t, f.engine.stamps, 1)

	stored := f.doc(t, d.ID)
	assert.Equal(t, document.StatusCompleted, stored.Status)
	assert.Equal(t, res.URL, stored.SignedFileURL)
	assert.NotEqual(t, d.CurrentVersionID, stored.CurrentVersionID)
	assert.Equal(t, 2, f.versions(t, d.ID))

	v, err := f.repo.GetVersion(ctx, stored.CurrentVersionID)
	require.NoError(t, err)
	assert.Equal(t, integrity.HashBytes(f.engine.lastFile), v.Hash)
	assert.Equal(t, "alice", v.CreatedBy)

	refID := signatureIDFromURL(t, f.engine.lastOpts.VerificationURL)
	assert.Equal(t, "https://sign.example.com/verify/"+refID, f.engine.lastOpts.VerificationURL)
	ref, err := f.repo.GetSignature(ctx, refID)
	require.NoError(t, err)
	require.True(t, ref.HasAccessCode())
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ref.AccessCodeHash), []byte("123456")))

	assert.Contains(t, f.audit.Actions(), audit.ActionFinalize)
}

func TestFinalizeTwiceCreatesNoVersion(t *testing.T) {
	f := newFixture(t)
	gid, d := readyDoc(t, f)
	_, err := f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.NoError(t, err)

	_, err = f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.True(t, errors.Is(err, document.ErrAlreadyFinalized))
	assert.Equal(t, 2, f.versions(t, d.ID))
	assert.Equal(t, 1, f.engine.calls)
}

func TestFinalizeWithoutPIN(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.RequirePIN = false
	gid, d := readyDoc(t, f)

	res, err := f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.NoError(t, err)
	assert.Empty(t, res.AccessCode)

	ref, err := f.repo.GetSignature(context.Background(), signatureIDFromURL(t, f.engine.lastOpts.VerificationURL))
	require.NoError(t, err)
	assert.False(t, ref.HasAccessCode())
}

func TestFinalizePreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid, d := readyDoc(t, f)
	other := f.group(t, "dave")

	_, err := f.svc.Finalize(ctx, gid, d.ID, "mallory", RequestContext{})
	assert.True(t, errors.Is(err, document.ErrUnauthorized), "non member")

	_, err = f.svc.Finalize(ctx, other, d.ID, "dave", RequestContext{})
	assert.True(t, errors.Is(err, document.ErrNotFound), "document of another group")

	_, err = f.svc.Finalize(ctx, gid, "missing", "alice", RequestContext{})
	assert.True(t, errors.Is(err, document.ErrNotFound), "missing document")

	_, err = f.svc.Finalize(ctx, gid, d.ID, "bob", RequestContext{})
	assert.True(t, errors.Is(err, document.ErrUnauthorized), "plain member")

	empty := f.groupDoc(t, gid, "alice")
	_, err = f.svc.Finalize(ctx, gid, empty.ID, "alice", RequestContext{})
	assert.True(t, errors.Is(err, document.ErrNoSignaturesFound))

	assert.Zero(t, f.engine.calls)
}

func TestFinalizeDocumentOwnerMayFinalize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid := f.group(t, "alice", "bob", "carol")
	d := f.groupDoc(t, gid, "carol")
	_, err := f.svc.AssignSigners(ctx, gid, d.ID, "carol", []string{"bob"}, RequestContext{})
	require.NoError(t, err)
	f.sign(t, gid, d.ID, "bob")

	_, err = f.svc.Finalize(ctx, gid, d.ID, "carol", RequestContext{})
	require.NoError(t, err)
}

func TestFinalizeVersionQuotaUsesGroupOwnerTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gid, d := readyDoc(t, f)
	f.tiers["bob"] = true
	// the free tier allows 5 versions, the 5th already blocks the signed one
	for i := 0; i < 4; i++ {
		_, err := f.svc.AddDocumentVersion(ctx, d.ID, "alice", samplePDF)
		require.NoError(t, err)
	}
	require.Equal(t, 5, f.versions(t, d.ID))
	f.sign(t, gid, d.ID, "bob")

	_, err := f.svc.Finalize(ctx, gid, d.ID, "alice", RequestContext{})
	require.True(t, errors.Is(err, document.ErrPolicyLimitExceeded))
	var e *document.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 5, e.Limit)
	assert.Zero(t, f.engine.calls)

	f.tiers["alice"] = true
	_, err = f.svc.Finalize(ctx, gid, d.ID, "alice", RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, 6, f.versions(t, d.ID))
}

func TestFinalizeLockHeld(t *testing.T) {
	locker := locks.NewMemory()
	f := newFixture(t, WithLocker(locker))
	gid, d := readyDoc(t, f)

	release, err := locker.TryLock(context.Background(), "finalize:"+d.ID, time.Minute)
	require.NoError(t, err)
	defer release()

	_, err = f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.True(t, errors.Is(err, document.ErrAlreadyFinalized))
	assert.Zero(t, f.engine.calls)
	assert.Equal(t, 1, f.versions(t, d.ID))
}

func TestFinalizeEngineErrorLeavesDocumentUntouched(t *testing.T) {
	f := newFixture(t)
	gid, d := readyDoc(t, f)
	f.engine.fail[d.ID] = errors.New("storage unavailable")

	_, err := f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.Error(t, err)
	assert.Equal(t, "storage unavailable", err.Error())

	stored := f.doc(t, d.ID)
	assert.Equal(t, document.StatusPending, stored.Status)
	assert.Equal(t, d.CurrentVersionID, stored.CurrentVersionID)
	assert.Equal(t, 1, f.versions(t, d.ID))
}

func TestFinalizeIgnoresSideEffectFailures(t *testing.T) {
	f := newFixture(t, WithEvents(failingSink{}), WithAudit(failingSink{}))
	gid, d := readyDoc(t, f)

	_, err := f.svc.Finalize(context.Background(), gid, d.ID, "alice", RequestContext{})
	require.NoError(t, err)
	assert.Equal(t, document.StatusCompleted, f.doc(t, d.ID).Status)
}

type passStamper struct{}

func (passStamper) Apply(ctx context.Context, src []byte, marks []pdfengine.Mark) ([]byte, error) {
	return src, nil
}

func TestFinalizeEncryptedSource(t *testing.T) {
	f := newFixture(t)
	f.svc.engine = pdfengine.New(f.files, passStamper{})
	ctx := context.Background()
	gid := f.group(t, "alice", "bob")
	encrypted := []byte("%PDF-1.7\n1 0 obj\n<< /Filter /Standard /V 2 /R 3 >>\nendobj\ntrailer\n<< /Root 2 0 R /Encrypt 1 0 R >>\n%%EOF\n")
	d, err := f.svc.AddGroupDocument(ctx, gid, "alice", "Terkunci", encrypted)
	require.NoError(t, err)
	_, err = f.svc.AssignSigners(ctx, gid, d.ID, "alice", []string{"bob"}, RequestContext{})
	require.NoError(t, err)
	f.sign(t, gid, d.ID, "bob")

	_, err = f.svc.Finalize(ctx, gid, d.ID, "alice", RequestContext{})
	require.True(t, errors.Is(err, document.ErrDocumentEncrypted))
	assert.Contains(t, err.Error(), "password")
	assert.Equal(t, 1, f.versions(t, d.ID))
	assert.Equal(t, document.StatusPending, f.doc(t, d.ID).Status)

	sigs, err := f.repo.ListByVersion(ctx, d.CurrentVersionID, document.KindGroup)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.False(t, sigs[0].HasAccessCode())
}
