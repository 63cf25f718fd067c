// Package documents implements the document lifecycle: public intake,
// derivation between areas, assignment, finalization and archiving. Its
// command handlers are the producer side of the realtime channel.
package documents

import (
	"errors"
	"time"
)

// Status is a document's position in its lifecycle.
type Status string

const (
	StatusReceived   Status = "recibido"
	StatusInProgress Status = "en_tramite"
	StatusFinalized  Status = "finalizado"
	StatusArchived   Status = "archivado"
)

var (
	ErrNotFound          = errors.New("documents: not found")
	ErrInvalidTransition = errors.New("documents: invalid status transition")
	ErrSameArea          = errors.New("documents: cannot derive to the same area")
)

type Document struct {
	ID             string    `json:"id"`
	TrackingCode   string    `json:"trackingCode"`
	Subject        string    `json:"subject"`
	SenderName     string    `json:"senderName"`
	SenderEmail    string    `json:"senderEmail,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	Status         Status    `json:"status"`
	AreaID         int64     `json:"areaId"`
	AssignedUserID string    `json:"assignedUserId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// canDerive reports whether a document may be routed to another area.
func (d *Document) canDerive() bool {
	return d.Status == StatusReceived || d.Status == StatusInProgress
}

// canAssign reports whether a document may be assigned within its area.
func (d *Document) canAssign() bool {
	return d.Status == StatusReceived || d.Status == StatusInProgress
}

// canFinalize reports whether processing may be concluded.
func (d *Document) canFinalize() bool {
	return d.Status == StatusInProgress
}

// canArchive allows archiving concluded documents, plus direct archiving of
// intake that never entered processing (spam or duplicates).
func (d *Document) canArchive() bool {
	return d.Status == StatusFinalized || d.Status == StatusReceived
}

// canUpdate rejects edits to documents already out of circulation.
func (d *Document) canUpdate() bool {
	return d.Status == StatusReceived || d.Status == StatusInProgress
}
