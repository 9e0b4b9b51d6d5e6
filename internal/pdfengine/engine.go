// Package pdfengine burns placed signature images, and optionally a
// verification QR code, into a PDF and uploads the result.
package pdfengine

import (
	"context"
	"fmt"
	"time"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/integrity"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/metrics"
)

// Storage is the file store the engine reads sources from and writes
// signed files to.
type Storage interface {
	DownloadFileAsBuffer(ctx context.Context, url string) ([]byte, error)
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Stamp is one signature placement. Page is 1-based; X, Y, Width and Height
// are fractions of the page with the origin at the top-left corner.
type Stamp struct {
	SignatureID string
	SignerName  string
	Page        int
	X, Y        float64
	Width       float64
	Height      float64
	Image       string
	SignedAt    time.Time
}

type Options struct {
	// DisplayQRCode puts a QR code encoding VerificationURL on the last page.
	DisplayQRCode   bool
	VerificationURL string
	// RequirePIN asks the engine for a fresh access code.
	RequirePIN bool
	Reason     string
}

type Result struct {
	SignedFile []byte
	Hash       string
	PublicURL  string
	// AccessCode is empty unless Options.RequirePIN was set. The caller
	// persists it.
	AccessCode string
}

type Engine struct {
	storage Storage
	stamper Stamper
	pin     func() (string, error)
}

func New(storage Storage, stamper Stamper) *Engine {
	return &Engine{storage: storage, stamper: stamper, pin: GeneratePIN}
}

// GenerateSignedPDF loads the file of version, applies stamps in order and
// uploads the result to signed/<documentID>/<sha256>.pdf.
func (e *Engine) GenerateSignedPDF(ctx context.Context, version *document.DocumentVersion, stamps []Stamp, opts Options) (*Result, error) {
	start := time.Now()
	defer func() { metrics.SigningDuration.Observe(time.Since(start).Seconds()) }()

	src, err := e.storage.DownloadFileAsBuffer(ctx, version.URL)
	if err != nil {
		return nil, fmt.Errorf("download version %s: %w", version.ID, err)
	}
	rdr, err := openPDF(src)
	if err != nil {
		return nil, err
	}

	reason := opts.Reason
	if reason == "" {
		reason = "Ditandatangani secara elektronik"
	}
	boxes := map[int]Rect{}
	box := func(n int) (Rect, error) {
		if r, ok := boxes[n]; ok {
			return r, nil
		}
		r, err := pageBox(rdr, n)
		if err == nil {
			boxes[n] = r
		}
		return r, err
	}

	marks := make([]Mark, 0, len(stamps)+1)
	for _, s := range stamps {
		page, err := box(s.Page)
		if err != nil {
			return nil, err
		}
		img, err := DecodeImage(s.Image)
		if err != nil {
			return nil, document.NewError(document.KindInvalidInput,
				fmt.Sprintf("gambar tanda tangan %s tidak valid: %v", s.SignatureID, err))
		}
		jpg, err := ToJPEG(img)
		if err != nil {
			return nil, fmt.Errorf("encode signature %s: %w", s.SignatureID, err)
		}
		b := img.Bounds()
		marks = append(marks, Mark{
			Page:   s.Page,
			Rect:   Fit(Place(page, s.X, s.Y, s.Width, s.Height), b.Dx(), b.Dy()),
			JPEG:   jpg,
			Name:   s.SignerName,
			Reason: reason,
			Date:   s.SignedAt,
		})
	}

	if opts.DisplayQRCode && opts.VerificationURL != "" {
		last := rdr.NumPage()
		page, err := box(last)
		if err != nil {
			return nil, err
		}
		qr, err := QRImage(opts.VerificationURL)
		if err != nil {
			return nil, fmt.Errorf("render qr: %w", err)
		}
		jpg, err := ToJPEG(qr)
		if err != nil {
			return nil, fmt.Errorf("encode qr: %w", err)
		}
		marks = append(marks, Mark{
			Page:   last,
			Rect:   QRRect(page),
			JPEG:   jpg,
			Name:   "Verifikasi",
			Reason: opts.VerificationURL,
			Date:   time.Now().UTC(),
		})
	}

	signed, err := e.stamper.Apply(ctx, src, marks)
	if err != nil {
		return nil, fmt.Errorf("apply signatures: %w", err)
	}
	hash := integrity.HashBytes(signed)
	key := fmt.Sprintf("signed/%s/%s.pdf", version.DocumentID, hash)
	url, err := e.storage.UploadFile(ctx, key, signed, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("upload signed file: %w", err)
	}

	res := &Result{SignedFile: signed, Hash: hash, PublicURL: url}
	if opts.RequirePIN {
		if res.AccessCode, err = e.pin(); err != nil {
			return nil, err
		}
	}
	logger.Debugf("pdfengine: signed document %s with %d marks -> %s", version.DocumentID, len(marks), key)
	return res, nil
}
