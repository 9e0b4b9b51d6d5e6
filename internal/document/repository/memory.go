package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
)

// MemoryRepo is an in-memory Store used by unit tests and by the service
// when no MongoDB is configured. Values are copied on the way in and out.
type MemoryRepo struct {
	mu         sync.RWMutex
	docs       map[string]*document.Document
	versions   map[string]*document.DocumentVersion
	signers    map[string]map[string]*document.GroupDocumentSigner // documentID -> userID
	signatures map[string]*document.Signature
	groups     map[string]*document.Group
	members    map[string]map[string]*document.GroupMember // groupID -> userID
	packages   map[string]*document.Package
	pkgDocs    map[string]*document.PackageDocument
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		docs:       make(map[string]*document.Document),
		versions:   make(map[string]*document.DocumentVersion),
		signers:    make(map[string]map[string]*document.GroupDocumentSigner),
		signatures: make(map[string]*document.Signature),
		groups:     make(map[string]*document.Group),
		members:    make(map[string]map[string]*document.GroupMember),
		packages:   make(map[string]*document.Package),
		pkgDocs:    make(map[string]*document.PackageDocument),
	}
}

var _ Store = (*MemoryRepo)(nil)

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// documents

func (m *MemoryRepo) CreateDocument(ctx context.Context, d *document.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = newID(d.ID)
	if d.Status == "" {
		d.Status = document.StatusDraft
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	cp := *d
	m.docs[d.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetDocument(ctx context.Context, id string) (*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MemoryRepo) ListGroupDocuments(ctx context.Context, groupID string) ([]*document.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Document{}
	for _, d := range m.docs {
		if d.GroupID == groupID {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) CountGroupDocuments(ctx context.Context, groupID string) (int, error) {
	list, err := m.ListGroupDocuments(ctx, groupID)
	return len(list), err
}

func (m *MemoryRepo) UpdateStatus(ctx context.Context, id string, from, to document.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return ErrNotFound
	}
	if d.Status != from {
		return ErrConflict
	}
	d.Status = to
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) CreateVersion(ctx context.Context, v *document.DocumentVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putVersion(v)
	return nil
}

func (m *MemoryRepo) putVersion(v *document.DocumentVersion) {
	v.ID = newID(v.ID)
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	cp := *v
	m.versions[v.ID] = &cp
}

func (m *MemoryRepo) GetVersion(ctx context.Context, id string) (*document.DocumentVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *MemoryRepo) CountVersions(ctx context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, v := range m.versions {
		if v.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) SetCurrentVersion(ctx context.Context, documentID, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	d.CurrentVersionID = versionID
	d.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) CommitFinalization(ctx context.Context, documentID string, v *document.DocumentVersion, signedFileURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	if !d.Status.CanTransitionTo(document.StatusCompleted) || d.Status == document.StatusCompleted {
		return ErrConflict
	}
	m.putVersion(v)
	d.Status = document.StatusCompleted
	d.CurrentVersionID = v.ID
	d.SignedFileURL = signedFileURL
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// signers

func (m *MemoryRepo) ListSigners(ctx context.Context, documentID string) ([]*document.GroupDocumentSigner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.GroupDocumentSigner{}
	for _, s := range m.signers[documentID] {
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (m *MemoryRepo) AddSigners(ctx context.Context, documentID string, userIDs []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.signers[documentID]
	if !ok {
		rows = make(map[string]*document.GroupDocumentSigner)
		m.signers[documentID] = rows
	}
	added := 0
	for _, uid := range userIDs {
		if _, exists := rows[uid]; exists {
			continue
		}
		rows[uid] = &document.GroupDocumentSigner{
			DocumentID: documentID,
			UserID:     uid,
			Status:     document.SignerPending,
			UpdatedAt:  time.Now().UTC(),
		}
		added++
	}
	return added, nil
}

func (m *MemoryRepo) RemoveSigner(ctx context.Context, documentID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.signers[documentID][userID]
	if !ok {
		return ErrNotFound
	}
	if row.Status == document.SignerSigned {
		return ErrConflict
	}
	delete(m.signers[documentID], userID)
	return nil
}

func (m *MemoryRepo) SetSignerStatus(ctx context.Context, documentID, userID string, status document.SignerStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.signers[documentID][userID]
	if !ok {
		return ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) CountPending(ctx context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.signers[documentID] {
		if s.Status == document.SignerPending {
			n++
		}
	}
	return n, nil
}

// signatures

func (m *MemoryRepo) CreateSignatures(ctx context.Context, sigs []*document.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range sigs {
		s.ID = newID(s.ID)
		if s.SignedAt.IsZero() {
			s.SignedAt = time.Now().UTC()
		}
		cp := *s
		m.signatures[s.ID] = &cp
	}
	return nil
}

func (m *MemoryRepo) GetSignature(ctx context.Context, id string) (*document.Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.signatures[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySignature(s), nil
}

func (m *MemoryRepo) ListByVersion(ctx context.Context, versionID string, kind document.SignatureKind) ([]*document.Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.Signature{}
	for _, s := range m.signatures {
		if s.VersionID == versionID && (kind == "" || s.Kind == kind) {
			out = append(out, copySignature(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SignedAt.Equal(out[j].SignedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SignedAt.Before(out[j].SignedAt)
	})
	return out, nil
}

func (m *MemoryRepo) DeleteBySigner(ctx context.Context, versionID, signerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.signatures {
		if s.VersionID == versionID && s.SignerID == signerID {
			delete(m.signatures, id)
		}
	}
	return nil
}

func (m *MemoryRepo) DeleteSignatures(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.signatures, id)
	}
	return nil
}

func (m *MemoryRepo) SetAccessCode(ctx context.Context, id, codeHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signatures[id]
	if !ok {
		return ErrNotFound
	}
	if s.AccessCodeHash != "" {
		return ErrConflict
	}
	s.AccessCodeHash = codeHash
	return nil
}

func (m *MemoryRepo) ClearAccessCode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signatures[id]
	if !ok {
		return ErrNotFound
	}
	s.AccessCodeHash = ""
	return nil
}

func (m *MemoryRepo) ReserveAttempt(ctx context.Context, id string, now time.Time) (int, *time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signatures[id]
	if !ok {
		return 0, nil, ErrNotFound
	}
	if s.LockedUntil != nil {
		if now.Before(*s.LockedUntil) {
			t := *s.LockedUntil
			return s.RetryCount, &t, nil
		}
		s.LockedUntil = nil
		s.RetryCount = 0
	}
	s.RetryCount++
	return s.RetryCount, nil, nil
}

func (m *MemoryRepo) UpdateGate(ctx context.Context, id string, retryCount int, lockedUntil *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.signatures[id]
	if !ok {
		return ErrNotFound
	}
	s.RetryCount = retryCount
	if lockedUntil != nil {
		t := *lockedUntil
		s.LockedUntil = &t
	} else {
		s.LockedUntil = nil
	}
	return nil
}

func copySignature(s *document.Signature) *document.Signature {
	cp := *s
	if s.LockedUntil != nil {
		t := *s.LockedUntil
		cp.LockedUntil = &t
	}
	return &cp
}

// groups

func (m *MemoryRepo) CreateGroup(ctx context.Context, g *document.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = newID(g.ID)
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	cp := *g
	m.groups[g.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetGroup(ctx context.Context, id string) (*document.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *g
	return &cp, nil
}

func (m *MemoryRepo) CountOwnedGroups(ctx context.Context, ownerID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, g := range m.groups {
		if g.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) GetMember(ctx context.Context, groupID, userID string) (*document.GroupMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mem, ok := m.members[groupID][userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *mem
	return &cp, nil
}

func (m *MemoryRepo) AddMember(ctx context.Context, mem *document.GroupMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.members[mem.GroupID]
	if !ok {
		rows = make(map[string]*document.GroupMember)
		m.members[mem.GroupID] = rows
	}
	if _, exists := rows[mem.UserID]; exists {
		return ErrConflict
	}
	if mem.JoinedAt.IsZero() {
		mem.JoinedAt = time.Now().UTC()
	}
	cp := *mem
	rows[mem.UserID] = &cp
	return nil
}

func (m *MemoryRepo) RemoveMember(ctx context.Context, groupID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.members[groupID][userID]; !ok {
		return ErrNotFound
	}
	delete(m.members[groupID], userID)
	return nil
}

func (m *MemoryRepo) CountMembers(ctx context.Context, groupID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.members[groupID]), nil
}

// packages

func (m *MemoryRepo) CreatePackage(ctx context.Context, p *document.Package) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = newID(p.ID)
	if p.Status == "" {
		p.Status = document.PackageDraft
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	cp := *p
	m.packages[p.ID] = &cp
	return nil
}

func (m *MemoryRepo) GetPackage(ctx context.Context, id string) (*document.Package, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.packages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryRepo) SetPackageStatus(ctx context.Context, id string, status document.PackageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.packages[id]
	if !ok {
		return ErrNotFound
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MemoryRepo) AddPackageDocument(ctx context.Context, pd *document.PackageDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.pkgDocs {
		if e.PackageID == pd.PackageID && e.DocumentID == pd.DocumentID {
			return ErrConflict
		}
	}
	pd.ID = newID(pd.ID)
	cp := *pd
	m.pkgDocs[pd.ID] = &cp
	return nil
}

func (m *MemoryRepo) ListPackageDocuments(ctx context.Context, packageID string) ([]*document.PackageDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*document.PackageDocument{}
	for _, pd := range m.pkgDocs {
		if pd.PackageID == packageID {
			cp := *pd
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position == out[j].Position {
			return out[i].ID < out[j].ID
		}
		return out[i].Position < out[j].Position
	})
	return out, nil
}

func (m *MemoryRepo) SetSignedVersion(ctx context.Context, packageDocumentID, versionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	pd, ok := m.pkgDocs[packageDocumentID]
	if !ok {
		return ErrNotFound
	}
	pd.SignedVersionID = versionID
	return nil
}
