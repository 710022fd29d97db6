package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	UpdateText(ctx context.Context, id, text string, sentenceCount int, status models.DocumentStatus) error
	Delete(ctx context.Context, id string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Document, error)
	Ping(ctx context.Context) error
}

type documentRepository struct {
	*PostgresRepository
}

func NewDocumentRepository(db *sql.DB, logger zerolog.Logger) DocumentRepository {
	return &documentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

const documentColumns = `
	id, original_name, format, size, hash, uploaded_by, storage_bucket,
	storage_path, text, sentence_count, status, uploaded_at, expires_at`

func (r *documentRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.ID,
		doc.OriginalName,
		string(doc.Format),
		doc.Size,
		doc.Hash,
		doc.UploadedBy,
		doc.StorageBucket,
		doc.StoragePath,
		doc.Text,
		doc.SentenceCount,
		doc.Status,
		doc.UploadedAt,
		doc.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (r *documentRepository) UpdateText(ctx context.Context, id, text string, sentenceCount int, status models.DocumentStatus) error {
	query := `
		UPDATE documents
		SET text = $2, sentence_count = $3, status = $4
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, text, sentenceCount, status.String())
	if err != nil {
		return fmt.Errorf("failed to update document text: %w", err)
	}
	return expectAffected(res)
}

// Delete removes the document row. Analyses and fingerprints go with it through ON DELETE CASCADE.
func (r *documentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return expectAffected(res)
}

func (r *documentRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	doc := &models.Document{}
	var format string

	err := row.Scan(
		&doc.ID,
		&doc.OriginalName,
		&format,
		&doc.Size,
		&doc.Hash,
		&doc.UploadedBy,
		&doc.StorageBucket,
		&doc.StoragePath,
		&doc.Text,
		&doc.SentenceCount,
		&doc.Status,
		&doc.UploadedAt,
		&doc.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Format = models.Format(format)
	return doc, nil
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
