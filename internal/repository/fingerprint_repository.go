package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// FingerprintRepository stores hashed normalized sentences per document so
// later uploads from the same uploader can be checked against earlier ones.
type FingerprintRepository interface {
	Save(ctx context.Context, uploadedBy string, fingerprints []models.Fingerprint) error
	FindHits(ctx context.Context, uploadedBy, excludeDocumentID string, hashes []string) ([]models.FingerprintHit, error)
}

type fingerprintRepository struct {
	*PostgresRepository
}

func NewFingerprintRepository(db *sql.DB, logger zerolog.Logger) FingerprintRepository {
	return &fingerprintRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *fingerprintRepository) Save(ctx context.Context, uploadedBy string, fingerprints []models.Fingerprint) error {
	if len(fingerprints) == 0 {
		return nil
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO sentence_fingerprints (document_id, hash, sentence_index, uploaded_by)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (document_id, hash) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare fingerprint insert: %w", err)
		}
		defer stmt.Close()

		for _, f := range fingerprints {
			if _, err := stmt.ExecContext(ctx, f.DocumentID, f.Hash, f.SentenceIndex, uploadedBy); err != nil {
				return fmt.Errorf("failed to insert fingerprint: %w", err)
			}
		}
		return nil
	})
}

// FindHits returns, per hash, the earliest other document of the uploader containing it.
func (r *fingerprintRepository) FindHits(ctx context.Context, uploadedBy, excludeDocumentID string, hashes []string) ([]models.FingerprintHit, error) {
	if uploadedBy == "" || len(hashes) == 0 {
		return nil, nil
	}

	query := `
		SELECT DISTINCT ON (f.hash) f.hash, d.id, d.original_name, f.sentence_index
		FROM sentence_fingerprints f
		JOIN documents d ON d.id = f.document_id
		WHERE f.uploaded_by = $1 AND f.document_id <> $2 AND f.hash = ANY($3)
		ORDER BY f.hash, d.uploaded_at
	`

	rows, err := r.db.QueryContext(ctx, query, uploadedBy, excludeDocumentID, pq.Array(hashes))
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	var hits []models.FingerprintHit
	for rows.Next() {
		var h models.FingerprintHit
		if err := rows.Scan(&h.Hash, &h.DocumentID, &h.DocumentName, &h.SentenceIndex); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
