package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tandatangan/tandatangan/backend/go-services/internal/audit"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/document/repository"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/locks"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/pdfengine"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/realtime"
	"github.com/tandatangan/tandatangan/backend/go-services/internal/sessions"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/logger"
	"github.com/tandatangan/tandatangan/backend/go-services/pkg/metrics"
	"golang.org/x/crypto/bcrypt"
)

// Engine produces signed PDFs.
type Engine interface {
	GenerateSignedPDF(ctx context.Context, version *document.DocumentVersion, stamps []pdfengine.Stamp, opts pdfengine.Options) (*pdfengine.Result, error)
}

// Files stores uploaded source documents.
type Files interface {
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// PremiumOracle answers the subscription tier of a user. It is asked again
// at every quota checkpoint.
type PremiumOracle interface {
	IsUserPremium(ctx context.Context, userID string) (bool, error)
}

// EventPublisher notifies real-time observers. Failures never affect the
// operation that fired the event.
type EventPublisher interface {
	Publish(ctx context.Context, room, event string, payload interface{}) error
}

// AuditLogger records business actions, best effort.
type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry) error
}

// Event names.
const (
	EventSignersUpdated    = "signers_updated"
	EventDocumentSigned    = "document_signed"
	EventDocumentRejected  = "document_rejected"
	EventDocumentFinalized = "document_finalized"
	EventPackageSigned     = "package_signed"
	EventMembersUpdated    = "members_updated"
)

// RequestContext carries caller metadata into audit records and signatures.
type RequestContext struct {
	IPAddress string
	UserAgent string
}

type Config struct {
	// VerifyBaseURL prefixes verification links: {VerifyBaseURL}/verify/{signatureID}.
	VerifyBaseURL string
	// RequirePIN makes finalization and package signing issue an access code.
	RequirePIN bool
	BcryptCost int
	// LockTTL bounds how long one finalization may hold its document.
	LockTTL time.Duration
}

// Service implements signer tracking, group finalization, package signing
// and the verification gate.
type Service struct {
	store  repository.Store
	engine Engine
	files  Files
	tiers  PremiumOracle
	events EventPublisher
	audit  AuditLogger
	locker locks.Locker
	grants *sessions.Service
	cfg    Config
	now    func() time.Time
}

type Option func(*Service)

func WithEvents(p EventPublisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithAudit(a AuditLogger) Option {
	return func(s *Service) {
		if a != nil {
			s.audit = a
		}
	}
}

func WithLocker(l locks.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithGrants(g *sessions.Service) Option {
	return func(s *Service) {
		if g != nil {
			s.grants = g
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store repository.Store, engine Engine, files Files, tiers PremiumOracle, cfg Config, opts ...Option) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	cfg.VerifyBaseURL = strings.TrimRight(cfg.VerifyBaseURL, "/")
	s := &Service{
		store:  store,
		engine: engine,
		files:  files,
		tiers:  tiers,
		events: realtime.Noop{},
		audit:  audit.Noop{},
		locker: locks.NewMemory(),
		grants: sessions.NewService(sessions.NewMemoryRepository(), sessions.DefaultTTL),
		cfg:    cfg,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) verifyURL(signatureID string) string {
	return s.cfg.VerifyBaseURL + "/verify/" + signatureID
}

func (s *Service) publish(ctx context.Context, room, event string, payload interface{}) {
	if err := s.events.Publish(ctx, room, event, payload); err != nil {
		metrics.SideEffectFailures.WithLabelValues("event").Inc()
		logger.Warnf("publish %s to %s: %v", event, room, err)
	}
}

func (s *Service) record(ctx context.Context, rc RequestContext, action, actorID, subjectID, description string) {
	e := audit.Entry{
		Action:      action,
		ActorID:     actorID,
		SubjectID:   subjectID,
		Description: description,
		IPAddress:   rc.IPAddress,
		UserAgent:   rc.UserAgent,
		At:          s.now().UTC(),
	}
	if err := s.audit.Log(ctx, e); err != nil {
		metrics.SideEffectFailures.WithLabelValues("audit").Inc()
		logger.Warnf("audit %s on %s: %v", e.Action, e.SubjectID, err)
	}
}

func (s *Service) isPremium(ctx context.Context, userID string) (bool, error) {
	p, err := s.tiers.IsUserPremium(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("resolve tier of %s: %w", userID, err)
	}
	return p, nil
}

func (s *Service) hashCode(code string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(code), s.cfg.BcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// member returns the requestor's membership or Unauthorized.
func (s *Service) member(ctx context.Context, groupID, userID string) (*document.GroupMember, error) {
	m, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, document.NewError(document.KindUnauthorized, "Anda bukan anggota grup ini.")
		}
		return nil, err
	}
	return m, nil
}

// groupDocument returns the document when it belongs to the group.
func (s *Service) groupDocument(ctx context.Context, groupID, documentID string) (*document.Document, error) {
	d, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, document.NewError(document.KindNotFound, "Dokumen tidak ditemukan.")
		}
		return nil, err
	}
	if d.GroupID != groupID {
		return nil, document.NewError(document.KindNotFound, "Dokumen tidak ditemukan di grup ini.")
	}
	return d, nil
}

func (s *Service) group(ctx context.Context, groupID string) (*document.Group, error) {
	g, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, document.NewError(document.KindNotFound, "Grup tidak ditemukan.")
		}
		return nil, err
	}
	return g, nil
}

func stamps(sigs []*document.Signature) []pdfengine.Stamp {
	out := make([]pdfengine.Stamp, 0, len(sigs))
	for _, sg := range sigs {
		out = append(out, pdfengine.Stamp{
			SignatureID: sg.ID,
			SignerName:  sg.SignerName,
			Page:        sg.PageNumber,
			X:           sg.PositionX,
			Y:           sg.PositionY,
			Width:       sg.Width,
			Height:      sg.Height,
			Image:       sg.ImageData,
			SignedAt:    sg.SignedAt,
		})
	}
	return out
}
