package models

import "time"

type DocumentUploadedEvent struct {
	AnalysisID string    `json:"analysis_id"`
	DocumentID string    `json:"document_id"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

type AnalysisCompletedEvent struct {
	AnalysisID  string    `json:"analysis_id"`
	DocumentID  string    `json:"document_id"`
	Status      string    `json:"status"`
	Similarity  float64   `json:"similarity"`
	Originality float64   `json:"originality"`
	MatchCount  int       `json:"match_count"`
	CompletedAt time.Time `json:"completed_at"`
}
