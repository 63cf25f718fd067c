package documents

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/osk4114/GestionDocumentaria-sub001/pkg/realtime"
)

// Emitter is the sliver of the dispatcher the service needs. Emission is
// strictly post-commit and best-effort: it can never fail a business
// operation.
type Emitter interface {
	Emit(env realtime.Envelope, target realtime.Target)
}

// Tracking codes are read over the phone, so stick to unambiguous uppercase.
const (
	trackingAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	trackingLength   = 10
)

type Service struct {
	repo    Repository
	emitter Emitter
	logger  *slog.Logger
}

func NewService(logger *slog.Logger, repo Repository, emitter Emitter) *Service {
	return &Service{
		repo:    repo,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "documents")),
	}
}

type IntakeInput struct {
	Subject     string
	SenderName  string
	SenderEmail string
	Notes       string
	AreaID      int64
}

// Intake registers a document submitted through the public form and notifies
// the receiving area.
func (s *Service) Intake(ctx context.Context, in IntakeInput) (*Document, error) {
	code, err := gonanoid.Generate(trackingAlphabet, trackingLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tracking code: %w", err)
	}

	now := time.Now().UTC()
	doc := &Document{
		ID:           uuid.NewString(),
		TrackingCode: code,
		Subject:      in.Subject,
		SenderName:   in.SenderName,
		SenderEmail:  in.SenderEmail,
		Notes:        in.Notes,
		Status:       StatusReceived,
		AreaID:       in.AreaID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventDocumentCreated)
	env.Document = doc
	env.Message = "Nuevo documento recibido: " + doc.Subject
	s.emitter.Emit(env, realtime.ByArea(doc.AreaID))
	return doc, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Document, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Track(ctx context.Context, code string) (*Document, error) {
	return s.repo.GetByTrackingCode(ctx, code)
}

func (s *Service) ListByArea(ctx context.Context, areaID int64) ([]*Document, error) {
	return s.repo.ListByArea(ctx, areaID)
}

// UpdateInput uses pointers so absent fields are left untouched while an
// explicit empty string clears the value (notes only; a document always
// keeps a subject).
type UpdateInput struct {
	Subject *string
	Notes   *string
}

// Update edits the mutable fields of a circulating document.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.canUpdate() {
		return nil, ErrInvalidTransition
	}
	if in.Subject != nil && *in.Subject != "" {
		doc.Subject = *in.Subject
	}
	if in.Notes != nil {
		doc.Notes = *in.Notes
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventDocumentUpdated)
	env.Document = doc
	env.Message = "Documento actualizado: " + doc.TrackingCode
	s.emitter.Emit(env, realtime.ByArea(doc.AreaID))
	return doc, nil
}

type DeriveInput struct {
	ToAreaID       int64
	AssignedUserID string
	Note           string
}

// Derive routes a document to another area, optionally pre-assigning it to a
// user there. Both the sending and receiving areas are notified, plus the
// assignee's own connections when one is named.
func (s *Service) Derive(ctx context.Context, id string, in DeriveInput) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.canDerive() {
		return nil, ErrInvalidTransition
	}
	if in.ToAreaID == doc.AreaID {
		return nil, ErrSameArea
	}

	fromAreaID := doc.AreaID
	doc.AreaID = in.ToAreaID
	doc.AssignedUserID = in.AssignedUserID
	doc.Status = StatusInProgress
	if in.Note != "" {
		doc.Notes = in.Note
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventDocumentDerived)
	env.Document = doc
	env.FromAreaID = fromAreaID
	env.ToAreaID = doc.AreaID
	env.AssignedUserID = doc.AssignedUserID
	env.Message = "Documento derivado: " + doc.TrackingCode
	s.emitter.Emit(env, realtime.ByArea(fromAreaID))
	s.emitter.Emit(env, realtime.ByArea(doc.AreaID))
	if doc.AssignedUserID != "" {
		s.emitter.Emit(env, realtime.ByUser(doc.AssignedUserID))
	}
	return doc, nil
}

// Assign hands a document to a user within its current area.
func (s *Service) Assign(ctx context.Context, id, userID string) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.canAssign() {
		return nil, ErrInvalidTransition
	}
	doc.AssignedUserID = userID
	if doc.Status == StatusReceived {
		doc.Status = StatusInProgress
	}
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventDocumentAssigned)
	env.Document = doc
	env.AssignedUserID = userID
	env.Message = "Documento asignado: " + doc.TrackingCode
	s.emitter.Emit(env, realtime.ByUser(userID))
	s.emitter.Emit(env, realtime.ByArea(doc.AreaID))
	return doc, nil
}

// Finalize concludes processing of a document.
func (s *Service) Finalize(ctx context.Context, id string) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.canFinalize() {
		return nil, ErrInvalidTransition
	}
	doc.Status = StatusFinalized
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventDocumentFinalized)
	env.Document = doc
	env.Message = "Documento finalizado: " + doc.TrackingCode
	s.emitter.Emit(env, realtime.ByArea(doc.AreaID))
	return doc, nil
}

// Archive takes a document out of circulation.
func (s *Service) Archive(ctx context.Context, id string) (*Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.canArchive() {
		return nil, ErrInvalidTransition
	}
	doc.Status = StatusArchived
	doc.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	env := realtime.NewEnvelope(realtime.EventDocumentArchived)
	env.Document = doc
	env.Message = "Documento archivado: " + doc.TrackingCode
	s.emitter.Emit(env, realtime.ByArea(doc.AreaID))
	return doc, nil
}
