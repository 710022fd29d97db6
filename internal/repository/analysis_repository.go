package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
)

type AnalysisRepository interface {
	Create(ctx context.Context, analysis *models.AnalysisResult) error
	GetByID(ctx context.Context, id string) (*models.AnalysisResult, error)
	// MarkProcessing moves a pending analysis to processing. A redelivered
	// analysis that is still processing is claimed again. It reports false
	// when the analysis is already finished.
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)
	Complete(ctx context.Context, analysis *models.AnalysisResult) error
	Fail(ctx context.Context, id, message string) error
	ResetFailed(ctx context.Context, id string) error
	// Release puts a processing analysis back to pending after its run was
	// interrupted.
	Release(ctx context.Context, id string) error
	// ListUnfinished returns the ids of pending and processing analyses,
	// oldest first.
	ListUnfinished(ctx context.Context, limit int) ([]string, error)
	Search(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisSummary, int, error)
	Ping(ctx context.Context) error
}

type analysisRepository struct {
	*PostgresRepository
}

func NewAnalysisRepository(db *sql.DB, logger zerolog.Logger) AnalysisRepository {
	return &analysisRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *analysisRepository) Create(ctx context.Context, a *models.AnalysisResult) error {
	query := `
		INSERT INTO analyses (id, document_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, a.ID, a.DocumentID, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

func (r *analysisRepository) GetByID(ctx context.Context, id string) (*models.AnalysisResult, error) {
	query := `
		SELECT
			a.id, a.document_id, d.original_name, d.uploaded_by, a.status,
			a.similarity, a.originality, a.total_sentences, a.checked_sentences,
			a.total_words, a.flagged_words, a.matches, a.stages, a.error,
			a.processing_time_ms, a.created_at, a.started_at, a.completed_at, a.updated_at
		FROM analyses a
		JOIN documents d ON d.id = a.document_id
		WHERE a.id = $1
	`

	a := &models.AnalysisResult{}
	var (
		matches, stages []byte
		processingTime  sql.NullInt64
		startedAt       sql.NullTime
		completedAt     sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID,
		&a.DocumentID,
		&a.DocumentName,
		&a.UploadedBy,
		&a.Status,
		&a.Similarity,
		&a.Originality,
		&a.TotalSentences,
		&a.CheckedSentences,
		&a.TotalWords,
		&a.FlaggedWords,
		&matches,
		&stages,
		&a.Error,
		&processingTime,
		&a.CreatedAt,
		&startedAt,
		&completedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}

	if err := json.Unmarshal(matches, &a.Matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	if err := json.Unmarshal(stages, &a.Stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages: %w", err)
	}

	if processingTime.Valid {
		ms := int(processingTime.Int64)
		a.ProcessingTimeMs = &ms
	}
	a.StartedAt = timePtr(startedAt)
	a.CompletedAt = timePtr(completedAt)

	return a, nil
}

func (r *analysisRepository) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	query := `
		UPDATE analyses
		SET status = $2, started_at = $3, error = '', updated_at = $3
		WHERE id = $1 AND status IN ($4, $2)
	`

	res, err := r.db.ExecContext(ctx, query, id,
		models.AnalysisStatusProcessing.String(), startedAt, models.AnalysisStatusPending.String())
	if err != nil {
		return false, fmt.Errorf("failed to mark analysis processing: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *analysisRepository) Complete(ctx context.Context, a *models.AnalysisResult) error {
	matches, err := json.Marshal(nonNilMatches(a.Matches))
	if err != nil {
		return fmt.Errorf("failed to encode matches: %w", err)
	}
	stages, err := json.Marshal(a.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		UPDATE analyses
		SET status = $2, similarity = $3, originality = $4, total_sentences = $5,
			checked_sentences = $6, total_words = $7, flagged_words = $8,
			matches = $9, stages = $10, processing_time_ms = $11,
			completed_at = $12, updated_at = $13, error = ''
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query,
		a.ID,
		models.AnalysisStatusCompleted.String(),
		a.Similarity,
		a.Originality,
		a.TotalSentences,
		a.CheckedSentences,
		a.TotalWords,
		a.FlaggedWords,
		matches,
		stages,
		a.ProcessingTimeMs,
		nullTime(a.CompletedAt),
		a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store analysis result: %w", err)
	}
	return expectAffected(res)
}

func (r *analysisRepository) Fail(ctx context.Context, id, message string) error {
	query := `
		UPDATE analyses
		SET status = $2, error = $3, completed_at = $4, updated_at = $4
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, models.AnalysisStatusFailed.String(), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark analysis failed: %w", err)
	}
	return expectAffected(res)
}

func (r *analysisRepository) ResetFailed(ctx context.Context, id string) error {
	query := `
		UPDATE analyses
		SET status = $2, error = '', started_at = NULL, completed_at = NULL, updated_at = $4
		WHERE id = $1 AND status = $3
	`

	res, err := r.db.ExecContext(ctx, query, id,
		models.AnalysisStatusPending.String(), models.AnalysisStatusFailed.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reset analysis: %w", err)
	}
	return expectAffected(res)
}

func (r *analysisRepository) Release(ctx context.Context, id string) error {
	query := `
		UPDATE analyses
		SET status = $2, started_at = NULL, updated_at = $4
		WHERE id = $1 AND status = $3
	`

	_, err := r.db.ExecContext(ctx, query, id,
		models.AnalysisStatusPending.String(), models.AnalysisStatusProcessing.String(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to release analysis: %w", err)
	}
	return nil
}

func (r *analysisRepository) ListUnfinished(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT id FROM analyses
		WHERE status IN ($1, $2)
		ORDER BY created_at
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query,
		models.AnalysisStatusPending.String(), models.AnalysisStatusProcessing.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished analyses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan analysis id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *analysisRepository) Search(ctx context.Context, filter models.AnalysisFilter) ([]models.AnalysisSummary, int, error) {
	var (
		conditions []string
		args       []any
	)
	addCondition := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	addCondition("a.status", filter.Status)
	addCondition("a.document_id", filter.DocumentID)
	addCondition("d.uploaded_by", filter.UploadedBy)

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM analyses a JOIN documents d ON d.id = a.document_id ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT
			a.id, a.document_id, d.original_name, d.uploaded_by, a.status,
			a.similarity, a.originality, jsonb_array_length(a.matches),
			a.created_at, a.completed_at
		FROM analyses a
		JOIN documents d ON d.id = a.document_id
		%s
		ORDER BY a.created_at DESC
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search analyses: %w", err)
	}
	defer rows.Close()

	items := []models.AnalysisSummary{}
	for rows.Next() {
		var (
			s           models.AnalysisSummary
			completedAt sql.NullTime
		)
		if err := rows.Scan(
			&s.ID,
			&s.DocumentID,
			&s.DocumentName,
			&s.UploadedBy,
			&s.Status,
			&s.Similarity,
			&s.Originality,
			&s.MatchCount,
			&s.CreatedAt,
			&completedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		s.CompletedAt = timePtr(completedAt)
		items = append(items, s)
	}

	return items, total, rows.Err()
}

func nonNilMatches(m []models.Match) []models.Match {
	if m == nil {
		return []models.Match{}
	}
	return m
}
