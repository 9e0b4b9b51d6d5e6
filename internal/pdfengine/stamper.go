package pdfengine

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/digitorus/pdf"
	"github.com/digitorus/pdfsign/sign"
)

// Mark is one image to burn into the document.
type Mark struct {
	Page   int
	Rect   Rect
	JPEG   []byte
	Name   string
	Reason string
	Date   time.Time
}

// Stamper writes marks into a PDF and returns the new file.
type Stamper interface {
	Apply(ctx context.Context, src []byte, marks []Mark) ([]byte, error)
}

// SealStamper adds every mark as a visible approval signature sealed with the
// platform certificate. Each mark is one incremental update, so earlier
// marks stay covered by the byte range of later ones.
type SealStamper struct {
	signer   crypto.Signer
	cert     *x509.Certificate
	location string
}

func NewSealStamper(seal *Seal, location string) *SealStamper {
	return &SealStamper{signer: seal.Signer, cert: seal.Certificate, location: location}
}

func (s *SealStamper) Apply(ctx context.Context, src []byte, marks []Mark) ([]byte, error) {
	buf := src
	for i, m := range marks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rdr, err := pdf.NewReader(bytes.NewReader(buf), int64(len(buf)))
		if err != nil {
			return nil, fmt.Errorf("reopen pdf for mark %d: %w", i, err)
		}
		var out bytes.Buffer
		err = sign.Sign(bytes.NewReader(buf), &out, rdr, int64(len(buf)), sign.SignData{
			Signature: sign.SignDataSignature{
				CertType:   sign.ApprovalSignature,
				DocMDPPerm: sign.AllowFillingExistingFormFieldsAndSignaturesPerms,
				Info: sign.SignDataSignatureInfo{
					Name:     m.Name,
					Location: s.location,
					Reason:   m.Reason,
					Date:     m.Date,
				},
			},
			Signer:          s.signer,
			DigestAlgorithm: crypto.SHA256,
			Certificate:     s.cert,
			Appearance: sign.Appearance{
				Visible:     true,
				Page:        uint32(m.Page),
				LowerLeftX:  m.Rect.LLX,
				LowerLeftY:  m.Rect.LLY,
				UpperRightX: m.Rect.URX,
				UpperRightY: m.Rect.URY,
				Image:       m.JPEG,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("stamp mark %d on page %d: %w", i, m.Page, err)
		}
		buf = out.Bytes()
	}
	return buf, nil
}
