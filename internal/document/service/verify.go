package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/integrity"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/metrics"
	"golang.org/x/crypto/bcrypt"
)

const (
	MaxPinAttempts = 3
	LockDuration   = 30 * time.Minute
)

// VerificationPayload is what the public verification page shows. Locked
// payloads only carry the signature id.
type VerificationPayload struct {
	SignatureID   string     `json:"signatureId"`
	DocumentID    string     `json:"documentId,omitempty"`
	DocumentTitle string     `json:"documentTitle,omitempty"`
	SignerName    string     `json:"signerName,omitempty"`
	SignedAt      *time.Time `json:"signedAt,omitempty"`
	IsLocked      bool       `json:"isLocked"`
	RequireUpload bool       `json:"requireUpload"`
	UnlockToken   string     `json:"unlockToken,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// FileVerification is the outcome of comparing an uploaded file with the
// signed version it claims to be.
type FileVerification struct {
	SignatureID string `json:"signatureId"`
	DocumentID  string `json:"documentId"`
	VersionID   string `json:"versionId"`
	Hash        string `json:"hash"`
	Size        int64  `json:"size"`
	Match       bool   `json:"match"`
}

func (s *Service) verifiable(ctx context.Context, signatureID string) (*document.Signature, *document.Document, error) {
	sig, err := s.store.GetSignature(ctx, signatureID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, document.NewError(document.KindNotFound, "Tanda tangan tidak ditemukan.")
		}
		return nil, nil, err
	}
	d, err := s.store.GetDocument(ctx, sig.DocumentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, document.NewError(document.KindNotFound, "Dokumen tidak ditemukan.")
		}
		return nil, nil, err
	}
	if d.Status != document.StatusCompleted && d.Status != document.StatusArchived {
		return nil, nil, document.NewError(document.KindNotFound, "Dokumen belum difinalisasi.")
	}
	return sig, d, nil
}

func unlocked(sig *document.Signature, d *document.Document) *VerificationPayload {
	at := sig.SignedAt
	return &VerificationPayload{
		SignatureID:   sig.ID,
		DocumentID:    d.ID,
		DocumentTitle: d.Title,
		SignerName:    sig.SignerName,
		SignedAt:      &at,
		IsLocked:      false,
		RequireUpload: true,
	}
}

// VerificationInfo returns the public view of a signature. PIN protected
// signatures stay locked until Unlock succeeds.
func (s *Service) VerificationInfo(ctx context.Context, signatureID string) (*VerificationPayload, error) {
	sig, d, err := s.verifiable(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	if sig.HasAccessCode() {
		return &VerificationPayload{SignatureID: sig.ID, IsLocked: true}, nil
	}
	return unlocked(sig, d), nil
}

// Unlock checks code against the stored access code. Three consecutive wrong
// codes lock the signature for LockDuration. A correct code clears earlier
// failures and returns an unlock token for VerifyFile. Each attempt is
// counted before the code is checked, so parallel guesses share the limit.
func (s *Service) Unlock(ctx context.Context, signatureID, code string, rc RequestContext) (*VerificationPayload, error) {
	sig, d, err := s.verifiable(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	if !sig.HasAccessCode() {
		return unlocked(sig, d), nil
	}

	now := s.now().UTC()
	attempt, lockedUntil, err := s.store.ReserveAttempt(ctx, sig.ID, now)
	if err != nil {
		return nil, fmt.Errorf("reserve verification attempt: %w", err)
	}
	if lockedUntil != nil {
		return nil, temporarilyLocked(lockedUntil.Sub(now))
	}
	// a concurrent attempt already used the last try and is locking the gate
	if attempt > MaxPinAttempts {
		return nil, temporarilyLocked(LockDuration)
	}

	if bcrypt.CompareHashAndPassword([]byte(sig.AccessCodeHash), []byte(code)) != nil {
		if attempt == MaxPinAttempts {
			until := now.Add(LockDuration)
			if err := s.store.UpdateGate(ctx, sig.ID, attempt, &until); err != nil {
				return nil, err
			}
			metrics.PinAttempts.WithLabelValues("locked_out").Inc()
			s.record(ctx, rc, audit.ActionVerifyLockedOut, "", sig.ID, "PIN salah 3 kali")
			e := document.NewError(document.KindLockedOut,
				fmt.Sprintf("PIN salah %d kali. Verifikasi dikunci selama %d menit.", attempt, int(LockDuration.Minutes())))
			e.RetryAfterMinutes = int(LockDuration.Minutes())
			return nil, e
		}
		metrics.PinAttempts.WithLabelValues("incorrect").Inc()
		left := MaxPinAttempts - attempt
		e := document.NewError(document.KindIncorrectPin, fmt.Sprintf("PIN salah. Sisa percobaan: %d kali", left))
		e.Remaining = left
		return nil, e
	}

	if err := s.store.UpdateGate(ctx, sig.ID, 0, nil); err != nil {
		return nil, err
	}
	g, err := s.grants.Issue(ctx, sig.ID)
	if err != nil {
		return nil, fmt.Errorf("issue unlock grant: %w", err)
	}
	metrics.PinAttempts.WithLabelValues("ok").Inc()
	s.record(ctx, rc, audit.ActionVerifyUnlock, "", sig.ID, "verifikasi dibuka")

	out := unlocked(sig, d)
	out.UnlockToken = g.Token
	out.ExpiresAt = &g.ExpiresAt
	return out, nil
}

func temporarilyLocked(remaining time.Duration) error {
	metrics.PinAttempts.WithLabelValues("locked").Inc()
	minutes := int(math.Ceil(remaining.Minutes()))
	e := document.NewError(document.KindTemporarilyLocked,
		fmt.Sprintf("Verifikasi dikunci. Coba lagi dalam %d menit.", minutes))
	e.RetryAfterMinutes = minutes
	return e
}

// VerifyFile hashes an uploaded file and compares it with the document's
// signed version. PIN protected signatures need a token from Unlock.
func (s *Service) VerifyFile(ctx context.Context, signatureID, token string, file io.Reader) (*FileVerification, error) {
	sig, d, err := s.verifiable(ctx, signatureID)
	if err != nil {
		return nil, err
	}
	if sig.HasAccessCode() {
		ok, err := s.grants.Valid(ctx, token, sig.ID)
		if err != nil {
			return nil, fmt.Errorf("check unlock grant: %w", err)
		}
		if !ok {
			return nil, document.NewError(document.KindUnauthorized, "Masukkan PIN terlebih dahulu.")
		}
	}
	v, err := s.store.GetVersion(ctx, d.CurrentVersionID)
	if err != nil {
		return nil, fmt.Errorf("load version %s: %w", d.CurrentVersionID, err)
	}
	hash, size, err := integrity.HashReader(file)
	if err != nil {
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return &FileVerification{
		SignatureID: sig.ID,
		DocumentID:  d.ID,
		VersionID:   v.ID,
		Hash:        hash,
		Size:        size,
		Match:       integrity.Equal(hash, v.Hash),
	}, nil
}
