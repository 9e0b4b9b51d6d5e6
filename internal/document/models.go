package document

import "time"

// Document is an uploadable unit. Personal documents have no GroupID.
type Document struct {
	ID               string    `json:"id" bson:"_id"`
	OwnerID          string    `json:"ownerId" bson:"ownerId"`
	GroupID          string    `json:"groupId,omitempty" bson:"groupId,omitempty"`
	Title            string    `json:"title" bson:"title"`
	Status           Status    `json:"status" bson:"status"`
	CurrentVersionID string    `json:"currentVersionId,omitempty" bson:"currentVersionId,omitempty"`
	SignedFileURL    string    `json:"signedFileUrl,omitempty" bson:"signedFileUrl,omitempty"`
	CreatedAt        time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DocumentVersion is an immutable snapshot of a document's file.
type DocumentVersion struct {
	ID             string    `json:"id" bson:"_id"`
	DocumentID     string    `json:"documentId" bson:"documentId"`
	URL            string    `json:"url" bson:"url"`
	Hash           string    `json:"hash" bson:"hash"`
	SignedFileHash string    `json:"signedFileHash,omitempty" bson:"signedFileHash,omitempty"`
	CreatedBy      string    `json:"createdBy" bson:"createdBy"`
	CreatedAt      time.Time `json:"createdAt" bson:"createdAt"`
}

// SignerStatus is the state of one required signer on a group document.
type SignerStatus string

const (
	SignerPending  SignerStatus = "PENDING"
	SignerSigned   SignerStatus = "SIGNED"
	SignerRejected SignerStatus = "REJECTED"
)

// GroupDocumentSigner links a group document to a required signer.
type GroupDocumentSigner struct {
	DocumentID string       `json:"documentId" bson:"documentId"`
	UserID     string       `json:"userId" bson:"userId"`
	Status     SignerStatus `json:"status" bson:"status"`
	UpdatedAt  time.Time    `json:"updatedAt" bson:"updatedAt"`
}

// SignatureKind tells which flow created a signature row.
type SignatureKind string

const (
	KindGroup   SignatureKind = "group"
	KindPackage SignatureKind = "package"
)

// Signature is a single placed signature. Position and size are fractions
// (0..1) of the page, with the origin at the top-left corner.
type Signature struct {
	ID                string        `json:"id" bson:"_id"`
	Kind              SignatureKind `json:"kind" bson:"kind"`
	DocumentID        string        `json:"documentId" bson:"documentId"`
	VersionID         string        `json:"versionId" bson:"versionId"`
	PackageID         string        `json:"packageId,omitempty" bson:"packageId,omitempty"`
	PackageDocumentID string        `json:"packageDocumentId,omitempty" bson:"packageDocumentId,omitempty"`
	SignerID          string        `json:"signerId" bson:"signerId"`
	SignerName        string        `json:"signerName,omitempty" bson:"signerName,omitempty"`
	PageNumber        int           `json:"pageNumber" bson:"pageNumber"`
	PositionX         float64       `json:"positionX" bson:"positionX"`
	PositionY         float64       `json:"positionY" bson:"positionY"`
	Width             float64       `json:"width" bson:"width"`
	Height            float64       `json:"height" bson:"height"`
	ImageData         string        `json:"-" bson:"imageData"`
	IPAddress         string        `json:"ipAddress,omitempty" bson:"ipAddress,omitempty"`
	UserAgent         string        `json:"userAgent,omitempty" bson:"userAgent,omitempty"`
	SignedAt          time.Time     `json:"signedAt" bson:"signedAt"`

	// verification gate state
	AccessCodeHash string     `json:"-" bson:"accessCodeHash,omitempty"`
	RetryCount     int        `json:"-" bson:"retryCount"`
	LockedUntil    *time.Time `json:"-" bson:"lockedUntil,omitempty"`
}

// HasAccessCode reports whether verification of this signature is PIN protected.
func (s *Signature) HasAccessCode() bool { return s.AccessCodeHash != "" }

// PackageStatus is the lifecycle of a signing package.
type PackageStatus string

const (
	PackageDraft          PackageStatus = "draft"
	PackagePending        PackageStatus = "pending"
	PackageCompleted      PackageStatus = "completed"
	PackagePartialFailure PackageStatus = "partial_failure"
)

// Package bundles several document versions for one signing session.
type Package struct {
	ID        string        `json:"id" bson:"_id"`
	OwnerID   string        `json:"ownerId" bson:"ownerId"`
	Title     string        `json:"title" bson:"title"`
	Status    PackageStatus `json:"status" bson:"status"`
	CreatedAt time.Time     `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt" bson:"updatedAt"`
}

// PackageDocument links a package to one document version and, once signed,
// to the version that replaced it.
type PackageDocument struct {
	ID              string `json:"id" bson:"_id"`
	PackageID       string `json:"packageId" bson:"packageId"`
	DocumentID      string `json:"documentId" bson:"documentId"`
	VersionID       string `json:"versionId" bson:"versionId"`
	SignedVersionID string `json:"signedVersionId,omitempty" bson:"signedVersionId,omitempty"`
	Position        int    `json:"position" bson:"position"`
}

// Role of a group member.
type Role string

const (
	RoleAdmin  Role = "admin_group"
	RoleMember Role = "member"
)

type Group struct {
	ID        string    `json:"id" bson:"_id"`
	OwnerID   string    `json:"ownerId" bson:"ownerId"`
	Name      string    `json:"name" bson:"name"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

type GroupMember struct {
	GroupID  string    `json:"groupId" bson:"groupId"`
	UserID   string    `json:"userId" bson:"userId"`
	Role     Role      `json:"role" bson:"role"`
	JoinedAt time.Time `json:"joinedAt" bson:"joinedAt"`
}

// IsAdmin reports whether the member administers the group.
func (m *GroupMember) IsAdmin() bool { return m != nil && m.Role == RoleAdmin }
