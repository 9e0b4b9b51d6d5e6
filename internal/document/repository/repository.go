package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write finds the record in
	// a state that forbids it (already completed, already signed, ...).
	ErrConflict = errors.New("record state conflict")
)

type DocumentRepository interface {
	CreateDocument(ctx context.Context, d *document.Document) error
	GetDocument(ctx context.Context, id string) (*document.Document, error)
	ListGroupDocuments(ctx context.Context, groupID string) ([]*document.Document, error)
	CountGroupDocuments(ctx context.Context, groupID string) (int, error)
	// UpdateStatus moves the document from -> to, failing with ErrConflict
	// when the stored status is no longer from.
	UpdateStatus(ctx context.Context, id string, from, to document.Status) error

	CreateVersion(ctx context.Context, v *document.DocumentVersion) error
	GetVersion(ctx context.Context, id string) (*document.DocumentVersion, error)
	CountVersions(ctx context.Context, documentID string) (int, error)
	SetCurrentVersion(ctx context.Context, documentID, versionID string) error

	// CommitFinalization stores v and points the document at it with status
	// completed. It fails with ErrConflict, without storing v, when the
	// document is already completed or archived.
	CommitFinalization(ctx context.Context, documentID string, v *document.DocumentVersion, signedFileURL string) error
}

type SignerRepository interface {
	ListSigners(ctx context.Context, documentID string) ([]*document.GroupDocumentSigner, error)
	// AddSigners inserts PENDING rows for users not yet present and returns
	// how many were inserted.
	AddSigners(ctx context.Context, documentID string, userIDs []string) (int, error)
	// RemoveSigner deletes a row that is not SIGNED. ErrConflict when it is.
	RemoveSigner(ctx context.Context, documentID, userID string) error
	SetSignerStatus(ctx context.Context, documentID, userID string, status document.SignerStatus) error
	CountPending(ctx context.Context, documentID string) (int, error)
}

type SignatureRepository interface {
	CreateSignatures(ctx context.Context, sigs []*document.Signature) error
	GetSignature(ctx context.Context, id string) (*document.Signature, error)
	// ListByVersion returns signatures of a version ordered by SignedAt.
	ListByVersion(ctx context.Context, versionID string, kind document.SignatureKind) ([]*document.Signature, error)
	DeleteBySigner(ctx context.Context, versionID, signerID string) error
	DeleteSignatures(ctx context.Context, ids []string) error
	// SetAccessCode stores the hashed access code once. ErrConflict when set.
	SetAccessCode(ctx context.Context, id, codeHash string) error
	// ClearAccessCode undoes SetAccessCode when the surrounding commit fails.
	ClearAccessCode(ctx context.Context, id string) error
	UpdateGate(ctx context.Context, id string, retryCount int, lockedUntil *time.Time) error
	// ReserveAttempt counts one verification attempt before the code is
	// checked. While a lock is active nothing changes and the lock is
	// returned. An expired lock is cleared and the count restarts at 1.
	ReserveAttempt(ctx context.Context, id string, now time.Time) (attempt int, lockedUntil *time.Time, err error)
}

type GroupRepository interface {
	CreateGroup(ctx context.Context, g *document.Group) error
	GetGroup(ctx context.Context, id string) (*document.Group, error)
	CountOwnedGroups(ctx context.Context, ownerID string) (int, error)
	GetMember(ctx context.Context, groupID, userID string) (*document.GroupMember, error)
	AddMember(ctx context.Context, m *document.GroupMember) error
	RemoveMember(ctx context.Context, groupID, userID string) error
	CountMembers(ctx context.Context, groupID string) (int, error)
}

type PackageRepository interface {
	CreatePackage(ctx context.Context, p *document.Package) error
	GetPackage(ctx context.Context, id string) (*document.Package, error)
	SetPackageStatus(ctx context.Context, id string, status document.PackageStatus) error
	// AddPackageDocument fails with ErrConflict when the document is
	// already in the package.
	AddPackageDocument(ctx context.Context, pd *document.PackageDocument) error
	ListPackageDocuments(ctx context.Context, packageID string) ([]*document.PackageDocument, error)
	SetSignedVersion(ctx context.Context, packageDocumentID, versionID string) error
}

// Store is everything the signing services persist.
type Store interface {
	DocumentRepository
	SignerRepository
	SignatureRepository
	GroupRepository
	PackageRepository
}
