package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/locks"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/quota"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/realtime"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/metrics"
)

// FinalizeResult is returned by Finalize. AccessCode is the plain PIN and is
// only ever available here.
type FinalizeResult struct {
	Document   *document.Document `json:"document"`
	URL        string             `json:"url"`
	AccessCode string             `json:"accessCode,omitempty"`
}

func errAlreadyFinalized() error {
	return document.NewError(document.KindAlreadyFinalized, "Dokumen sudah difinalisasi.")
}

// Finalize burns every signature of the current version into a new signed
// version and completes the document.
func (s *Service) Finalize(ctx context.Context, groupID, documentID, requestorID string, rc RequestContext) (res *FinalizeResult, err error) {
	defer func() {
		result := "ok"
		if err != nil {
			if k := document.KindOf(err); k != "" {
				result = string(k)
			} else {
				result = "error"
			}
		}
		metrics.FinalizeResults.WithLabelValues(result).Inc()
	}()

	m, err := s.member(ctx, groupID, requestorID)
	if err != nil {
		return nil, err
	}
	d, err := s.groupDocument(ctx, groupID, documentID)
	if err != nil {
		return nil, err
	}
	if d.CurrentVersionID == "" {
		return nil, document.NewError(document.KindNotFound, "Dokumen belum memiliki versi.")
	}
	if !canManage(m, d) {
		return nil, document.NewError(document.KindUnauthorized, "Hanya admin grup atau pemilik dokumen yang dapat memfinalisasi dokumen.")
	}
	pending, err := s.store.CountPending(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		e := document.NewError(document.KindIncompleteSignatures,
			fmt.Sprintf("Masih ada %d penanda tangan yang belum menandatangani dokumen.", pending))
		e.Remaining = pending
		return nil, e
	}
	if d.Status == document.StatusCompleted {
		return nil, errAlreadyFinalized()
	}
	if err := s.checkVersionQuota(ctx, groupID, d.ID); err != nil {
		return nil, err
	}
	sigs, err := s.store.ListByVersion(ctx, d.CurrentVersionID, document.KindGroup)
	if err != nil {
		return nil, err
	}
	if len(sigs) == 0 {
		return nil, document.NewError(document.KindNoSignaturesFound, "Tidak ada tanda tangan pada versi dokumen ini.")
	}

	release, err := s.locker.TryLock(ctx, "finalize:"+d.ID, s.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, locks.ErrHeld) {
			return nil, document.NewError(document.KindAlreadyFinalized, "Dokumen sedang difinalisasi.")
		}
		return nil, fmt.Errorf("lock document %s: %w", d.ID, err)
	}
	defer release()

	// another holder may have committed between the checks and the lock
	if d, err = s.store.GetDocument(ctx, d.ID); err != nil {
		return nil, err
	}
	if !d.Status.CanTransitionTo(document.StatusCompleted) || d.Status == document.StatusCompleted {
		return nil, errAlreadyFinalized()
	}
	version, err := s.store.GetVersion(ctx, d.CurrentVersionID)
	if err != nil {
		return nil, fmt.Errorf("load version %s: %w", d.CurrentVersionID, err)
	}

	ref := sigs[0]
	out, err := s.engine.GenerateSignedPDF(ctx, version, stamps(sigs), pdfengine.Options{
		DisplayQRCode:   true,
		VerificationURL: s.verifyURL(ref.ID),
		RequirePIN:      s.cfg.RequirePIN,
	})
	if err != nil {
		return nil, err
	}

	if out.AccessCode != "" {
		if err := s.storeAccessCode(ctx, ref.ID, out.AccessCode); err != nil {
			return nil, err
		}
	}
	next := &document.DocumentVersion{
		DocumentID:     d.ID,
		URL:            out.PublicURL,
		Hash:           out.Hash,
		SignedFileHash: out.Hash,
		CreatedBy:      requestorID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.CommitFinalization(ctx, d.ID, next, out.PublicURL); err != nil {
		if out.AccessCode != "" {
			if cerr := s.store.ClearAccessCode(ctx, ref.ID); cerr != nil {
				logger.Errorf("finalize %s: clear access code of %s: %v", d.ID, ref.ID, cerr)
			}
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, errAlreadyFinalized()
		}
		return nil, fmt.Errorf("commit finalization: %w", err)
	}
	d.Status = document.StatusCompleted
	d.CurrentVersionID = next.ID
	d.SignedFileURL = out.PublicURL

	s.publish(ctx, realtime.GroupRoom(groupID), EventDocumentFinalized, map[string]interface{}{
		"documentId": d.ID, "versionId": next.ID, "url": out.PublicURL,
	})
	s.record(ctx, rc, audit.ActionFinalize, requestorID, d.ID,
		fmt.Sprintf("%d tanda tangan difinalisasi ke versi %s", len(sigs), next.ID))
	logger.Infof("finalized document %s as version %s", d.ID, next.ID)
	return &FinalizeResult{Document: d, URL: out.PublicURL, AccessCode: out.AccessCode}, nil
}

// checkVersionQuota resolves the limit through the group owner's tier.
func (s *Service) checkVersionQuota(ctx context.Context, groupID, documentID string) error {
	g, err := s.group(ctx, groupID)
	if err != nil {
		return err
	}
	premium, err := s.isPremium(ctx, g.OwnerID)
	if err != nil {
		return err
	}
	n, err := s.store.CountVersions(ctx, documentID)
	if err != nil {
		return err
	}
	return quota.Check(quota.DocumentVersions, n, premium)
}

func (s *Service) storeAccessCode(ctx context.Context, signatureID, code string) error {
	hash, err := s.hashCode(code)
	if err != nil {
		return fmt.Errorf("hash access code: %w", err)
	}
	if err := s.store.SetAccessCode(ctx, signatureID, hash); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return errAlreadyFinalized()
		}
		return fmt.Errorf("store access code: %w", err)
	}
	return nil
}
