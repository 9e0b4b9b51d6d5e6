package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/realtime"
)

// SignatureInput is a placed signature as sent by the canvas.
type SignatureInput struct {
	SignerName string  `json:"signerName"`
	PageNumber int     `json:"pageNumber"`
	PositionX  float64 `json:"positionX"`
	PositionY  float64 `json:"positionY"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	ImageData  string  `json:"imageData"`
}

func (in SignatureInput) validate() error {
	frac := func(v float64) bool { return v >= 0 && v <= 1 }
	switch {
	case in.PageNumber < 1:
		return document.NewError(document.KindInvalidInput, "Nomor halaman tidak valid.")
	case !frac(in.PositionX) || !frac(in.PositionY) || !frac(in.Width) || !frac(in.Height):
		return document.NewError(document.KindInvalidInput, "Posisi dan ukuran tanda tangan harus di antara 0 dan 1.")
	case in.Width == 0 || in.Height == 0:
		return document.NewError(document.KindInvalidInput, "Ukuran tanda tangan tidak boleh nol.")
	case strings.TrimSpace(in.ImageData) == "":
		return document.NewError(document.KindInvalidInput, "Gambar tanda tangan kosong.")
	}
	return nil
}

// canManage reports whether m may change signers of d.
func canManage(m *document.GroupMember, d *document.Document) bool {
	return m.IsAdmin() || d.OwnerID == m.UserID
}

func (s *Service) editableGroupDocument(ctx context.Context, groupID, documentID, requestorID string) (*document.Document, error) {
	m, err := s.member(ctx, groupID, requestorID)
	if err != nil {
		return nil, err
	}
	d, err := s.groupDocument(ctx, groupID, documentID)
	if err != nil {
		return nil, err
	}
	if !canManage(m, d) {
		return nil, document.NewError(document.KindUnauthorized, "Hanya admin grup atau pemilik dokumen yang dapat mengatur penanda tangan.")
	}
	if err := lockedError(d); err != nil {
		return nil, err
	}
	return d, nil
}

func lockedError(d *document.Document) error {
	switch d.Status {
	case document.StatusCompleted:
		return document.NewError(document.KindAlreadyFinalized, "Dokumen sudah difinalisasi dan tidak dapat diubah.")
	case document.StatusArchived:
		return document.NewError(document.KindInvalidTransition, "Dokumen sudah diarsipkan.")
	}
	return nil
}

func (s *Service) requireMembers(ctx context.Context, groupID string, userIDs []string) error {
	for _, uid := range userIDs {
		if _, err := s.store.GetMember(ctx, groupID, uid); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return document.NewError(document.KindInvalidInput, fmt.Sprintf("Pengguna %s bukan anggota grup.", uid))
			}
			return err
		}
	}
	return nil
}

// moveStatus applies d.Status -> next through the transition table and a
// conditional write. Same-state moves are no-ops.
func (s *Service) moveStatus(ctx context.Context, d *document.Document, next document.Status) error {
	if d.Status == next {
		return nil
	}
	to, err := d.Status.TransitionTo(next)
	if err != nil {
		return err
	}
	if err := s.store.UpdateStatus(ctx, d.ID, d.Status, to); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return document.NewError(document.KindInvalidTransition, "Status dokumen berubah, silakan muat ulang.")
		}
		return err
	}
	d.Status = to
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// AssignSigners adds PENDING rows for signers not yet on the document. The
// document becomes pending when it has signers and draft otherwise.
func (s *Service) AssignSigners(ctx context.Context, groupID, documentID, requestorID string, signerIDs []string, rc RequestContext) (*document.Document, error) {
	d, err := s.editableGroupDocument(ctx, groupID, documentID, requestorID)
	if err != nil {
		return nil, err
	}
	signerIDs = dedupe(signerIDs)
	if err := s.requireMembers(ctx, groupID, signerIDs); err != nil {
		return nil, err
	}
	added, err := s.store.AddSigners(ctx, d.ID, signerIDs)
	if err != nil {
		return nil, fmt.Errorf("add signers: %w", err)
	}
	rows, err := s.store.ListSigners(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	next := document.StatusDraft
	if len(rows) > 0 {
		next = document.StatusPending
	}
	if err := s.moveStatus(ctx, d, next); err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.GroupRoom(groupID), EventSignersUpdated, map[string]interface{}{
		"documentId": d.ID, "status": d.Status, "signers": signerIDsOf(rows),
	})
	s.record(ctx, rc, audit.ActionAssignSigners, requestorID, d.ID,
		fmt.Sprintf("%d penanda tangan ditambahkan", added))
	return d, nil
}

// UpdateSigners replaces the signer set. SIGNED rows cannot be removed. The
// status only changes when the document crosses the draft/pending boundary.
func (s *Service) UpdateSigners(ctx context.Context, groupID, documentID, requestorID string, newSignerIDs []string, rc RequestContext) (*document.Document, error) {
	d, err := s.editableGroupDocument(ctx, groupID, documentID, requestorID)
	if err != nil {
		return nil, err
	}
	newSignerIDs = dedupe(newSignerIDs)
	rows, err := s.store.ListSigners(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(newSignerIDs))
	for _, id := range newSignerIDs {
		wanted[id] = true
	}
	current := make(map[string]bool, len(rows))
	var remove []string
	for _, r := range rows {
		current[r.UserID] = true
		if wanted[r.UserID] {
			continue
		}
		if r.Status == document.SignerSigned {
			return nil, document.NewError(document.KindCannotRemoveSignedSigner,
				fmt.Sprintf("Penanda tangan %s sudah menandatangani dan tidak dapat dihapus.", r.UserID))
		}
		remove = append(remove, r.UserID)
	}
	var add []string
	for _, id := range newSignerIDs {
		if !current[id] {
			add = append(add, id)
		}
	}
	if err := s.requireMembers(ctx, groupID, add); err != nil {
		return nil, err
	}

	for _, uid := range remove {
		if err := s.store.RemoveSigner(ctx, d.ID, uid); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, document.NewError(document.KindCannotRemoveSignedSigner,
					fmt.Sprintf("Penanda tangan %s sudah menandatangani dan tidak dapat dihapus.", uid))
			}
			return nil, fmt.Errorf("remove signer %s: %w", uid, err)
		}
	}
	if _, err := s.store.AddSigners(ctx, d.ID, add); err != nil {
		return nil, fmt.Errorf("add signers: %w", err)
	}

	hasSigners := len(rows)-len(remove)+len(add) > 0
	switch {
	case d.Status == document.StatusDraft && hasSigners:
		err = s.moveStatus(ctx, d, document.StatusPending)
	case d.Status == document.StatusPending && !hasSigners:
		err = s.moveStatus(ctx, d, document.StatusDraft)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.GroupRoom(groupID), EventSignersUpdated, map[string]interface{}{
		"documentId": d.ID, "status": d.Status, "added": add, "removed": remove,
	})
	s.record(ctx, rc, audit.ActionUpdateSigners, requestorID, d.ID,
		fmt.Sprintf("penanda tangan +%d -%d", len(add), len(remove)))
	return d, nil
}

// CountPending is the finalization gate.
func (s *Service) CountPending(ctx context.Context, documentID string) (int, error) {
	return s.store.CountPending(ctx, documentID)
}

// ListSigners returns the signer rows of a group document to its members.
func (s *Service) ListSigners(ctx context.Context, groupID, documentID, requestorID string) ([]*document.GroupDocumentSigner, error) {
	if _, err := s.member(ctx, groupID, requestorID); err != nil {
		return nil, err
	}
	if _, err := s.groupDocument(ctx, groupID, documentID); err != nil {
		return nil, err
	}
	return s.store.ListSigners(ctx, documentID)
}

func (s *Service) signerRow(ctx context.Context, documentID, userID string) (*document.GroupDocumentSigner, error) {
	rows, err := s.store.ListSigners(ctx, documentID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.UserID == userID {
			return r, nil
		}
	}
	return nil, document.NewError(document.KindUnauthorized, "Anda tidak ditunjuk sebagai penanda tangan dokumen ini.")
}

// SaveSignature stores the signer's placed signature on the current version
// and marks the signer SIGNED. Saving again replaces the earlier placement.
func (s *Service) SaveSignature(ctx context.Context, groupID, documentID, signerID string, in SignatureInput, rc RequestContext) (*document.Signature, error) {
	if _, err := s.member(ctx, groupID, signerID); err != nil {
		return nil, err
	}
	d, err := s.groupDocument(ctx, groupID, documentID)
	if err != nil {
		return nil, err
	}
	if err := lockedError(d); err != nil {
		return nil, err
	}
	if d.CurrentVersionID == "" {
		return nil, document.NewError(document.KindNotFound, "Dokumen belum memiliki versi.")
	}
	row, err := s.signerRow(ctx, d.ID, signerID)
	if err != nil {
		return nil, err
	}
	if row.Status == document.SignerRejected {
		return nil, document.NewError(document.KindInvalidInput, "Anda sudah menolak dokumen ini.")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	if err := s.store.DeleteBySigner(ctx, d.CurrentVersionID, signerID); err != nil {
		return nil, err
	}
	sig := &document.Signature{
		Kind:       document.KindGroup,
		DocumentID: d.ID,
		VersionID:  d.CurrentVersionID,
		SignerID:   signerID,
		SignerName: in.SignerName,
		PageNumber: in.PageNumber,
		PositionX:  in.PositionX,
		PositionY:  in.PositionY,
		Width:      in.Width,
		Height:     in.Height,
		ImageData:  in.ImageData,
		IPAddress:  rc.IPAddress,
		UserAgent:  rc.UserAgent,
		SignedAt:   s.now().UTC(),
	}
	if err := s.store.CreateSignatures(ctx, []*document.Signature{sig}); err != nil {
		return nil, fmt.Errorf("store signature: %w", err)
	}
	if err := s.store.SetSignerStatus(ctx, d.ID, signerID, document.SignerSigned); err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.GroupRoom(groupID), EventDocumentSigned, map[string]interface{}{
		"documentId": d.ID, "signerId": signerID,
	})
	s.record(ctx, rc, audit.ActionSignDocument, signerID, d.ID,
		fmt.Sprintf("tanda tangan pada halaman %d", in.PageNumber))
	return sig, nil
}

// RejectDocument marks the signer's row REJECTED and drops any placement.
func (s *Service) RejectDocument(ctx context.Context, groupID, documentID, signerID, reason string, rc RequestContext) error {
	if _, err := s.member(ctx, groupID, signerID); err != nil {
		return err
	}
	d, err := s.groupDocument(ctx, groupID, documentID)
	if err != nil {
		return err
	}
	if err := lockedError(d); err != nil {
		return err
	}
	if _, err := s.signerRow(ctx, d.ID, signerID); err != nil {
		return err
	}
	if d.CurrentVersionID != "" {
		if err := s.store.DeleteBySigner(ctx, d.CurrentVersionID, signerID); err != nil {
			return err
		}
	}
	if err := s.store.SetSignerStatus(ctx, d.ID, signerID, document.SignerRejected); err != nil {
		return err
	}
	s.publish(ctx, realtime.GroupRoom(groupID), EventDocumentRejected, map[string]interface{}{
		"documentId": d.ID, "signerId": signerID, "reason": reason,
	})
	s.record(ctx, rc, audit.ActionRejectDocument, signerID, d.ID, reason)
	return nil
}

func signerIDsOf(rows []*document.GroupDocumentSigner) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.UserID)
	}
	return out
}
