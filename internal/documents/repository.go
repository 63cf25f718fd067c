package documents

import (
	"context"
	"database/sql"
	"fmt"
)

// Repository is the persistence surface the service depends on.
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
	GetByTrackingCode(ctx context.Context, code string) (*Document, error)
	ListByArea(ctx context.Context, areaID int64) ([]*Document, error)
	// Save persists mutable fields of an existing document.
	Save(ctx context.Context, doc *Document) error
}

const documentColumns = `id, tracking_code, subject, sender_name, sender_email,
	notes, status, area_id, assigned_user_id, created_at, updated_at`

// PostgresRepository stores documents in the documents table.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

var _ Repository = (*PostgresRepository)(nil)

func (r *PostgresRepository) Create(ctx context.Context, doc *Document) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, tracking_code, subject, sender_name,
			sender_email, notes, status, area_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		doc.ID, doc.TrackingCode, doc.Subject, doc.SenderName,
		doc.SenderEmail, doc.Notes, doc.Status, doc.AreaID,
		doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	return scanDocument(row)
}

func (r *PostgresRepository) GetByTrackingCode(ctx context.Context, code string) (*Document, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE tracking_code = $1`, code)
	return scanDocument(row)
}

func (r *PostgresRepository) ListByArea(ctx context.Context, areaID int64) ([]*Document, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE area_id = $1 AND status <> 'archivado'
		 ORDER BY created_at DESC`, areaID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return docs, nil
}

func (r *PostgresRepository) Save(ctx context.Context, doc *Document) error {
	assigned := sql.NullString{String: doc.AssignedUserID, Valid: doc.AssignedUserID != ""}
	res, err := r.db.ExecContext(ctx,
		`UPDATE documents
		 SET subject = $2, notes = $3, status = $4, area_id = $5,
		     assigned_user_id = $6, updated_at = $7
		 WHERE id = $1`,
		doc.ID, doc.Subject, doc.Notes, doc.Status, doc.AreaID,
		assigned, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	doc := &Document{}
	var assigned sql.NullString
	err := row.Scan(
		&doc.ID, &doc.TrackingCode, &doc.Subject, &doc.SenderName,
		&doc.SenderEmail, &doc.Notes, &doc.Status, &doc.AreaID,
		&assigned, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	doc.AssignedUserID = assigned.String
	return doc, nil
}
