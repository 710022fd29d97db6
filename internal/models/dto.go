package models

import "time"

type UploadDocumentResponse struct {
	DocumentID string    `json:"document_id"`
	AnalysisID string    `json:"analysis_id"`
	Status     string    `json:"status"`
	Hash       string    `json:"hash"`
	StatusURL  string    `json:"status_url"`
	ReportURL  string    `json:"report_url"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type AnalysisFilter struct {
	Status     string
	DocumentID string
	UploadedBy string
	Limit      int
	Offset     int
}

type AnalysisSummary struct {
	ID           string     `json:"id"`
	DocumentID   string     `json:"document_id"`
	DocumentName string     `json:"document_name"`
	UploadedBy   string     `json:"uploaded_by,omitempty"`
	Status       string     `json:"status"`
	Similarity   float64    `json:"similarity"`
	Originality  float64    `json:"originality"`
	MatchCount   int        `json:"match_count"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

type AnalysisListResponse struct {
	Items []AnalysisSummary `json:"items"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
