package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/integrity"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/storage"
	"golang.org/x/crypto/bcrypt"
)

var samplePDF = []byte("%PDF-1.7\n% sample\n%%EOF\n")

type fakeEngine struct {
	calls    int
	code     string
	fail     map[string]error // by document id
	lastOpts pdfengine.Options
	stamps   []pdfengine.Stamp
	lastFile []byte
}

func (f *fakeEngine) GenerateSignedPDF(ctx context.Context, v *document.DocumentVersion, stamps []pdfengine.Stamp, opts pdfengine.Options) (*pdfengine.Result, error) {
	f.calls++
	f.lastOpts = opts
	f.stamps = stamps
	if err := f.fail[v.DocumentID]; err != nil {
		return nil, err
	}
	out := []byte(fmt.Sprintf("%%PDF-1.7 signed %s #%d", v.ID, f.calls))
	hash := integrity.HashBytes(out)
	f.lastFile = out
	res := &pdfengine.Result{
		SignedFile: out,
		Hash:       hash,
		PublicURL:  "mem://files/documents/signed/" + v.DocumentID + "/" + hash + ".pdf",
	}
	if opts.RequirePIN {
		res.AccessCode = f.code
	}
	return res, nil
}

type tiers map[string]bool

func (t tiers) IsUserPremium(ctx context.Context, userID string) (bool, error) {
	return t[userID], nil
}

type failingSink struct{}

func (failingSink) Publish(ctx context.Context, room, event string, payload interface{}) error {
	return errors.New("transport down")
}

func (failingSink) Log(ctx context.Context, e audit.Entry) error {
	return errors.New("audit store down")
}

type fixture struct {
	svc    *Service
	repo   *repository.MemoryRepo
	engine *fakeEngine
	files  *storage.MemoryStorage
	tiers  tiers
	audit  *audit.Recorder
	clock  time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		repo:   repository.NewMemoryRepo(),
		engine: &fakeEngine{code: "123456", fail: map[string]error{}},
		files:  storage.NewMemoryStorage(),
		tiers:  tiers{},
		audit:  &audit.Recorder{},
		clock:  time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	base := []Option{WithAudit(f.audit), WithClock(func() time.Time { return f.clock })}
	f.svc = New(f.repo, f.engine, f.files, f.tiers, Config{
		VerifyBaseURL: "https://sign.example.com/",
		RequirePIN:    true,
		BcryptCost:    bcrypt.MinCost,
	}, append(base, opts...)...)
	return f
}

func (f *fixture) group(t *testing.T, owner string, members ...string) string {
	t.Helper()
	ctx := context.Background()
	g, err := f.svc.CreateGroup(ctx, owner, "Tim "+owner)
	require.NoError(t, err)
	for _, m := range members {
		_, err := f.svc.AddMember(ctx, g.ID, owner, m, document.RoleMember, RequestContext{})
		require.NoError(t, err)
	}
	return g.ID
}

func (f *fixture) groupDoc(t *testing.T, groupID, owner string) *document.Document {
	t.Helper()
	d, err := f.svc.AddGroupDocument(context.Background(), groupID, owner, "Kontrak", samplePDF)
	require.NoError(t, err)
	return d
}

func (f *fixture) sign(t *testing.T, groupID, documentID, signer string) *document.Signature {
	t.Helper()
	sig, err := f.svc.SaveSignature(context.Background(), groupID, documentID, signer, sigInput(signer), RequestContext{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	return sig
}

func (f *fixture) versions(t *testing.T, documentID string) int {
	t.Helper()
	n, err := f.repo.CountVersions(context.Background(), documentID)
	require.NoError(t, err)
	return n
}

func (f *fixture) doc(t *testing.T, documentID string) *document.Document {
	t.Helper()
	d, err := f.repo.GetDocument(context.Background(), documentID)
	require.NoError(t, err)
	return d
}

func sigInput(name string) SignatureInput {
	return SignatureInput{
		SignerName: name,
		PageNumber: 1,
		PositionX:  0.5,
		PositionY:  0.5,
		Width:      0.1,
		Height:     0.05,
		ImageData:  "data:image/png;base64,iVBORw0KGgo=",
	}
}

// signatureIDFromURL extracts the reference signature from a verification link.
func signatureIDFromURL(t *testing.T, url string) string {
	t.Helper()
	i := strings.LastIndex(url, "/verify/")
	require.GreaterOrEqual(t, i, 0, url)
	return url[i+len("/verify/"):]
}
