package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
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

// PackageSignatureInput is one placed signature addressed to a package document.
type PackageSignatureInput struct {
	PackageDocumentID string `json:"packageDocumentId"`
	SignatureInput
}

type PackageFailure struct {
	DocumentID string `json:"documentId"`
	Error      string `json:"error"`
}

// PackageResult reports a signing run. Success and Failed together always
// cover every document of the package.
type PackageResult struct {
	PackageID string                 `json:"packageId"`
	Status    document.PackageStatus `json:"status"`
	Success   []string               `json:"success"`
	Failed    []PackageFailure       `json:"failed"`
}

func (s *Service) ownedPackage(ctx context.Context, packageID, userID string) (*document.Package, error) {
	p, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, document.NewError(document.KindNotFound, "Paket tidak ditemukan.")
		}
		return nil, err
	}
	if p.OwnerID != userID {
		return nil, document.NewError(document.KindUnauthorized, "Anda bukan pemilik paket ini.")
	}
	return p, nil
}

// CreatePackage opens an empty package owned by ownerID.
func (s *Service) CreatePackage(ctx context.Context, ownerID, title string) (*document.Package, error) {
	p := &document.Package{OwnerID: ownerID, Title: title, Status: document.PackageDraft}
	if err := s.store.CreatePackage(ctx, p); err != nil {
		return nil, fmt.Errorf("create package: %w", err)
	}
	return p, nil
}

// GetPackage returns the package with its documents in signing order.
func (s *Service) GetPackage(ctx context.Context, packageID, userID string) (*document.Package, []*document.PackageDocument, error) {
	p, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.store.ListPackageDocuments(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, docs, nil
}

// AddPackageDocument puts the current version of one of the owner's
// documents into the package.
func (s *Service) AddPackageDocument(ctx context.Context, packageID, userID, documentID string) (*document.PackageDocument, error) {
	p, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, err
	}
	if p.Status == document.PackageCompleted {
		return nil, document.NewError(document.KindAlreadyFinalized, "Paket sudah ditandatangani.")
	}
	d, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, document.NewError(document.KindNotFound, "Dokumen tidak ditemukan.")
		}
		return nil, err
	}
	if d.OwnerID != userID {
		return nil, document.NewError(document.KindUnauthorized, "Anda bukan pemilik dokumen ini.")
	}
	if d.CurrentVersionID == "" {
		return nil, document.NewError(document.KindNotFound, "Dokumen belum memiliki versi.")
	}
	if err := lockedError(d); err != nil {
		return nil, err
	}
	if err := packageable(d); err != nil {
		return nil, err
	}
	existing, err := s.store.ListPackageDocuments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, e := range existing {
		if e.DocumentID == d.ID {
			return nil, document.NewError(document.KindInvalidInput, "Dokumen sudah ada di paket ini.")
		}
	}

	premium, err := s.isPremium(ctx, userID)
	if err != nil {
		return nil, err
	}
	n := len(existing)
	if err := quota.Check(quota.PackageDocuments, n, premium); err != nil {
		return nil, err
	}
	pd := &document.PackageDocument{
		PackageID:  p.ID,
		DocumentID: d.ID,
		VersionID:  d.CurrentVersionID,
		Position:   n,
	}
	if err := s.store.AddPackageDocument(ctx, pd); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, document.NewError(document.KindInvalidInput, "Dokumen sudah ada di paket ini.")
		}
		return nil, fmt.Errorf("add package document: %w", err)
	}
	return pd, nil
}

// SignPackage signs every document of the package one after the other. A
// failing document is rolled back and reported without stopping the run.
// Documents signed by an earlier run count as success, so a partial_failure
// package can be retried with the same payload.
func (s *Service) SignPackage(ctx context.Context, packageID, userID string, payload []PackageSignatureInput, rc RequestContext) (*PackageResult, error) {
	p, err := s.ownedPackage(ctx, packageID, userID)
	if err != nil {
		return nil, err
	}
	if p.Status == document.PackageCompleted {
		return nil, document.NewError(document.KindAlreadyFinalized, "Paket sudah ditandatangani.")
	}
	docs, err := s.store.ListPackageDocuments(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, document.NewError(document.KindInvalidInput, "Paket tidak memiliki dokumen.")
	}

	release, err := s.locker.TryLock(ctx, "package:"+p.ID, s.cfg.LockTTL*time.Duration(len(docs)))
	if err != nil {
		if errors.Is(err, locks.ErrHeld) {
			return nil, document.NewError(document.KindAlreadyFinalized, "Paket sedang ditandatangani.")
		}
		return nil, fmt.Errorf("lock package %s: %w", p.ID, err)
	}
	defer release()

	if err := s.store.SetPackageStatus(ctx, p.ID, document.PackagePending); err != nil {
		return nil, err
	}

	res := &PackageResult{PackageID: p.ID, Success: []string{}, Failed: []PackageFailure{}}
	for _, pd := range docs {
		if pd.SignedVersionID != "" {
			res.Success = append(res.Success, pd.DocumentID)
			continue
		}
		if err := s.signPackageDocument(ctx, p, pd, userID, payload, rc); err != nil {
			metrics.PackageDocuments.WithLabelValues("failed").Inc()
			logger.Warnf("package %s: document %s failed: %v", p.ID, pd.DocumentID, err)
			res.Failed = append(res.Failed, PackageFailure{DocumentID: pd.DocumentID, Error: failureMessage(err)})
			continue
		}
		metrics.PackageDocuments.WithLabelValues("signed").Inc()
		res.Success = append(res.Success, pd.DocumentID)
	}

	res.Status = document.PackageCompleted
	if len(res.Failed) > 0 {
		res.Status = document.PackagePartialFailure
	}
	if err := s.store.SetPackageStatus(ctx, p.ID, res.Status); err != nil {
		return nil, err
	}

	s.publish(ctx, realtime.PackageRoom(p.ID), EventPackageSigned, res)
	s.record(ctx, rc, audit.ActionSignPackage, userID, p.ID,
		fmt.Sprintf("%d berhasil, %d gagal", len(res.Success), len(res.Failed)))
	return res, nil
}

// packageable rejects group documents; they finalize through their group
// once every assigned signer has signed.
func packageable(d *document.Document) error {
	if d.GroupID != "" {
		return document.NewError(document.KindInvalidInput, "Dokumen grup harus difinalisasi melalui grup.")
	}
	return nil
}

func failureMessage(err error) string {
	var e *document.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// signPackageDocument owns the signed buffer of one document; it is
// released when the call returns.
func (s *Service) signPackageDocument(ctx context.Context, p *document.Package, pd *document.PackageDocument, userID string, payload []PackageSignatureInput, rc RequestContext) error {
	premium, err := s.isPremium(ctx, userID)
	if err != nil {
		return err
	}
	n, err := s.store.CountVersions(ctx, pd.DocumentID)
	if err != nil {
		return err
	}
	if err := quota.Check(quota.DocumentVersions, n, premium); err != nil {
		return err
	}

	var entries []SignatureInput
	for _, in := range payload {
		if in.PackageDocumentID == pd.ID {
			entries = append(entries, in.SignatureInput)
		}
	}
	if len(entries) == 0 {
		return document.NewError(document.KindMissingSignatureConfig, "Tidak ada konfigurasi tanda tangan untuk dokumen ini.")
	}
	for _, in := range entries {
		if err := in.validate(); err != nil {
			return err
		}
	}

	d, err := s.store.GetDocument(ctx, pd.DocumentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return document.NewError(document.KindNotFound, "Dokumen tidak ditemukan.")
		}
		return err
	}
	if err := lockedError(d); err != nil {
		return err
	}
	if err := packageable(d); err != nil {
		return err
	}
	version, err := s.store.GetVersion(ctx, pd.VersionID)
	if err != nil {
		return fmt.Errorf("load version %s: %w", pd.VersionID, err)
	}

	now := s.now().UTC()
	rows := make([]*document.Signature, 0, len(entries))
	for _, in := range entries {
		rows = append(rows, &document.Signature{
			Kind:              document.KindPackage,
			DocumentID:        d.ID,
			VersionID:         version.ID,
			PackageID:         p.ID,
			PackageDocumentID: pd.ID,
			SignerID:          userID,
			SignerName:        in.SignerName,
			PageNumber:        in.PageNumber,
			PositionX:         in.PositionX,
			PositionY:         in.PositionY,
			Width:             in.Width,
			Height:            in.Height,
			ImageData:         in.ImageData,
			IPAddress:         rc.IPAddress,
			UserAgent:         rc.UserAgent,
			SignedAt:          now,
		})
	}
	if err := s.store.CreateSignatures(ctx, rows); err != nil {
		return fmt.Errorf("store signatures: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	if err := s.commitPackageDocument(ctx, d, pd, version, rows, userID); err != nil {
		if derr := s.store.DeleteSignatures(ctx, ids); derr != nil {
			logger.Errorf("package %s: roll back signatures of %s: %v", p.ID, d.ID, derr)
		}
		return err
	}
	return nil
}

func (s *Service) commitPackageDocument(ctx context.Context, d *document.Document, pd *document.PackageDocument, version *document.DocumentVersion, rows []*document.Signature, userID string) error {
	ref := rows[0]
	out, err := s.engine.GenerateSignedPDF(ctx, version, stamps(rows), pdfengine.Options{
		DisplayQRCode:   true,
		VerificationURL: s.verifyURL(ref.ID),
		RequirePIN:      s.cfg.RequirePIN,
	})
	if err != nil {
		return err
	}
	if out.AccessCode != "" {
		if err := s.storeAccessCode(ctx, ref.ID, out.AccessCode); err != nil {
			return err
		}
	}

	next := &document.DocumentVersion{
		ID:             uuid.NewString(),
		DocumentID:     d.ID,
		URL:            out.PublicURL,
		Hash:           out.Hash,
		SignedFileHash: out.Hash,
		CreatedBy:      userID,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.SetSignedVersion(ctx, pd.ID, next.ID); err != nil {
		return fmt.Errorf("point package document at %s: %w", next.ID, err)
	}
	if err := s.store.CommitFinalization(ctx, d.ID, next, out.PublicURL); err != nil {
		if rerr := s.store.SetSignedVersion(ctx, pd.ID, ""); rerr != nil {
			logger.Errorf("package document %s: reset signed version: %v", pd.ID, rerr)
		}
		if errors.Is(err, repository.ErrConflict) {
			return errAlreadyFinalized()
		}
		return fmt.Errorf("commit signed version: %w", err)
	}
	return nil
}
