package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/integrity"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/quota"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/realtime"
)

// CreateGroup creates a group and makes the owner its first admin.
func (s *Service) CreateGroup(ctx context.Context, ownerID, name string) (*document.Group, error) {
	premium, err := s.isPremium(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountOwnedGroups(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if err := quota.Check(quota.OwnedGroups, n, premium); err != nil {
		return nil, err
	}
	g := &document.Group{OwnerID: ownerID, Name: name, CreatedAt: s.now().UTC()}
	if err := s.store.CreateGroup(ctx, g); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	if err := s.store.AddMember(ctx, &document.GroupMember{GroupID: g.ID, UserID: ownerID, Role: document.RoleAdmin}); err != nil {
		return nil, fmt.Errorf("add owner to group: %w", err)
	}
	return g, nil
}

// AddMember invites userID. Only admins may invite, and the member limit
// follows the group owner's tier.
func (s *Service) AddMember(ctx context.Context, groupID, requestorID, userID string, role document.Role, rc RequestContext) (*document.GroupMember, error) {
	m, err := s.member(ctx, groupID, requestorID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, document.NewError(document.KindUnauthorized, "Hanya admin grup yang dapat mengundang anggota.")
	}
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	premium, err := s.isPremium(ctx, g.OwnerID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := quota.Check(quota.GroupMembers, n, premium); err != nil {
		return nil, err
	}
	if role != document.RoleAdmin {
		role = document.RoleMember
	}
	nm := &document.GroupMember{GroupID: groupID, UserID: userID, Role: role, JoinedAt: s.now().UTC()}
	if err := s.store.AddMember(ctx, nm); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, document.NewError(document.KindInvalidInput, "Pengguna sudah menjadi anggota grup.")
		}
		return nil, fmt.Errorf("add member: %w", err)
	}
	s.publish(ctx, realtime.GroupRoom(groupID), EventMembersUpdated, map[string]interface{}{
		"added": userID,
	})
	s.record(ctx, rc, audit.ActionAddMember, requestorID, groupID, "anggota "+userID+" ditambahkan")
	return nm, nil
}

// RemoveMember removes userID from the group along with its unsigned signer
// rows on open documents. Members may leave; admins may remove anyone but
// the owner.
func (s *Service) RemoveMember(ctx context.Context, groupID, requestorID, userID string, rc RequestContext) error {
	m, err := s.member(ctx, groupID, requestorID)
	if err != nil {
		return err
	}
	if !m.IsAdmin() && requestorID != userID {
		return document.NewError(document.KindUnauthorized, "Hanya admin grup yang dapat menghapus anggota.")
	}
	g, err := s.group(ctx, groupID)
	if err != nil {
		return err
	}
	if g.OwnerID == userID {
		return document.NewError(document.KindInvalidInput, "Pemilik grup tidak dapat dihapus.")
	}
	if _, err := s.store.GetMember(ctx, groupID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return document.NewError(document.KindNotFound, "Anggota tidak ditemukan.")
		}
		return err
	}

	docs, err := s.store.ListGroupDocuments(ctx, groupID)
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.Status.Locked() {
			continue
		}
		if err := s.dropSigner(ctx, d, userID); err != nil {
			return err
		}
	}
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.publish(ctx, realtime.GroupRoom(groupID), EventMembersUpdated, map[string]interface{}{
		"removed": userID,
	})
	s.record(ctx, rc, audit.ActionRemoveMember, requestorID, groupID, "anggota "+userID+" dihapus")
	return nil
}

// dropSigner removes userID's row from d unless it is SIGNED and moves the
// document back to draft when no signer remains.
func (s *Service) dropSigner(ctx context.Context, d *document.Document, userID string) error {
	rows, err := s.store.ListSigners(ctx, d.ID)
	if err != nil {
		return err
	}
	remaining := len(rows)
	for _, r := range rows {
		if r.UserID != userID || r.Status == document.SignerSigned {
			continue
		}
		if err := s.store.RemoveSigner(ctx, d.ID, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("remove signer %s from %s: %w", userID, d.ID, err)
		}
		if d.CurrentVersionID != "" {
			if err := s.store.DeleteBySigner(ctx, d.CurrentVersionID, userID); err != nil {
				return err
			}
		}
		remaining--
	}
	if remaining == 0 && d.Status == document.StatusPending {
		return s.moveStatus(ctx, d, document.StatusDraft)
	}
	return nil
}

// CreateDocument stores a personal document with its first version.
func (s *Service) CreateDocument(ctx context.Context, ownerID, title string, file []byte) (*document.Document, error) {
	return s.createDocument(ctx, &document.Document{OwnerID: ownerID, Title: title}, file)
}

// AddGroupDocument uploads a document into a group. The document limit
// follows the group owner's tier.
func (s *Service) AddGroupDocument(ctx context.Context, groupID, requestorID, title string, file []byte) (*document.Document, error) {
	if _, err := s.member(ctx, groupID, requestorID); err != nil {
		return nil, err
	}
	g, err := s.group(ctx, groupID)
	if err != nil {
		return nil, err
	}
	premium, err := s.isPremium(ctx, g.OwnerID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountGroupDocuments(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := quota.Check(quota.GroupDocuments, n, premium); err != nil {
		return nil, err
	}
	return s.createDocument(ctx, &document.Document{OwnerID: requestorID, GroupID: groupID, Title: title}, file)
}

func (s *Service) createDocument(ctx context.Context, d *document.Document, file []byte) (*document.Document, error) {
	d.ID = uuid.NewString()
	d.Status = document.StatusDraft
	v, err := s.upload(ctx, d.ID, d.OwnerID, file)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateDocument(ctx, d); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	if err := s.store.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}
	if err := s.store.SetCurrentVersion(ctx, d.ID, v.ID); err != nil {
		return nil, err
	}
	d.CurrentVersionID = v.ID
	return d, nil
}

// AddDocumentVersion replaces the file of an open document. Signers who
// signed the previous version are asked to sign again.
func (s *Service) AddDocumentVersion(ctx context.Context, documentID, requestorID string, file []byte) (*document.DocumentVersion, error) {
	d, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, document.NewError(document.KindNotFound, "Dokumen tidak ditemukan.")
		}
		return nil, err
	}
	tierOwner := d.OwnerID
	if d.GroupID != "" {
		m, err := s.member(ctx, d.GroupID, requestorID)
		if err != nil {
			return nil, err
		}
		if !canManage(m, d) {
			return nil, document.NewError(document.KindUnauthorized, "Hanya admin grup atau pemilik dokumen yang dapat mengunggah versi baru.")
		}
		g, err := s.group(ctx, d.GroupID)
		if err != nil {
			return nil, err
		}
		tierOwner = g.OwnerID
	} else if d.OwnerID != requestorID {
		return nil, document.NewError(document.KindUnauthorized, "Anda bukan pemilik dokumen ini.")
	}
	if err := lockedError(d); err != nil {
		return nil, err
	}
	premium, err := s.isPremium(ctx, tierOwner)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountVersions(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if err := quota.Check(quota.DocumentVersions, n, premium); err != nil {
		return nil, err
	}

	v, err := s.upload(ctx, d.ID, requestorID, file)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("create version: %w", err)
	}
	if err := s.store.SetCurrentVersion(ctx, d.ID, v.ID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListSigners(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Status == document.SignerSigned {
			if err := s.store.SetSignerStatus(ctx, d.ID, r.UserID, document.SignerPending); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

func (s *Service) upload(ctx context.Context, documentID, userID string, file []byte) (*document.DocumentVersion, error) {
	if !bytes.HasPrefix(file, []byte("%PDF-")) {
		return nil, document.NewError(document.KindInvalidInput, "Berkas harus berupa PDF.")
	}
	hash := integrity.HashBytes(file)
	url, err := s.files.UploadFile(ctx, fmt.Sprintf("uploads/%s/%s.pdf", documentID, hash), file, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}
	return &document.DocumentVersion{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		URL:        url,
		Hash:       hash,
		CreatedBy:  userID,
		CreatedAt:  s.now().UTC(),
	}, nil
}
