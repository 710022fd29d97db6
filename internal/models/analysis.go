package models

import (
	"time"
)

// Stage identifies which check produced a match.
type Stage string

const (
	StageSelf     Stage = "self"
	StageAcademic Stage = "academic"
	StageWeb      Stage = "web"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageSelf, StageAcademic, StageWeb}

func (s Stage) String() string {
	return string(s)
}

func (s Stage) Title() string {
	switch s {
	case StageSelf:
		return "Self-Plagiarism Check"
	case StageAcademic:
		return "Academic Check"
	case StageWeb:
		return "Web Check"
	default:
		return string(s)
	}
}

func ParseStage(s string) (Stage, bool) {
	for _, st := range Stages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

func (s AnalysisStatus) String() string {
	return string(s)
}

// Source is the reference a match points at. Which fields are set depends on the stage.
type Source struct {
	Title        string `json:"title,omitempty"`
	Authors      string `json:"authors,omitempty"`
	URL          string `json:"url,omitempty"`
	DocumentID   string `json:"document_id,omitempty"`
	DocumentName string `json:"document_name,omitempty"`
}

type Occurrence struct {
	SentenceIndex int `json:"sentence_index"`
	Start         int `json:"start"`
	End           int `json:"end"`
}

type Match struct {
	Stage         Stage   `json:"stage"`
	SentenceIndex int     `json:"sentence_index"`
	Sentence      string  `json:"sentence"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Source        Source  `json:"source"`
	Score         float64 `json:"score"`
	// Count is how many times a repeated sentence appears in the document.
	Count int `json:"count,omitempty"`
	// Repeats are the occurrences after the first one.
	Repeats []Occurrence `json:"repeats,omitempty"`
}

// IsRepeat reports whether the match is a sentence repeated inside the same document.
func (m Match) IsRepeat() bool {
	return m.Stage == StageSelf && m.Count > 1
}

type StageSummary struct {
	Stage   Stage `json:"stage"`
	Enabled bool  `json:"enabled"`
	Checked int   `json:"checked"`
	Matches int   `json:"matches"`
	Errors  int   `json:"errors"`
}

type AnalysisResult struct {
	ID               string         `json:"id" db:"id"`
	DocumentID       string         `json:"document_id" db:"document_id"`
	DocumentName     string         `json:"document_name,omitempty" db:"-"`
	UploadedBy       string         `json:"uploaded_by,omitempty" db:"-"`
	Status           string         `json:"status" db:"status"`
	Similarity       float64        `json:"similarity" db:"similarity"`
	Originality      float64        `json:"originality" db:"originality"`
	TotalSentences   int            `json:"total_sentences" db:"total_sentences"`
	CheckedSentences int            `json:"checked_sentences" db:"checked_sentences"`
	TotalWords       int            `json:"total_words" db:"total_words"`
	FlaggedWords     int            `json:"flagged_words" db:"flagged_words"`
	Matches          []Match        `json:"matches" db:"matches"`
	Stages           []StageSummary `json:"stages" db:"stages"`
	Error            string         `json:"error,omitempty" db:"error"`
	ProcessingTimeMs *int           `json:"processing_time_ms,omitempty" db:"processing_time_ms"`
	CreatedAt        time.Time      `json:"created_at" db:"created_at"`
	StartedAt        *time.Time     `json:"started_at,omitempty" db:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt        time.Time      `json:"updated_at" db:"updated_at"`
}

func (r *AnalysisResult) MatchesByStage(stage Stage) []Match {
	var out []Match
	for _, m := range r.Matches {
		if m.Stage == stage {
			out = append(out, m)
		}
	}
	return out
}

func (r *AnalysisResult) StageSummary(stage Stage) (StageSummary, bool) {
	for _, s := range r.Stages {
		if s.Stage == stage {
			return s, true
		}
	}
	return StageSummary{}, false
}

func (r *AnalysisResult) IsFinished() bool {
	return r.Status == AnalysisStatusCompleted.String() || r.Status == AnalysisStatusFailed.String()
}

// HighlightSpan is one contiguous piece of the document text. Flagged spans carry the stages that matched.
type HighlightSpan struct {
	Text   string  `json:"text"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
	Stages []Stage `json:"stages,omitempty"`
}

type Highlights struct {
	AnalysisID string          `json:"analysis_id"`
	DocumentID string          `json:"document_id"`
	Spans      []HighlightSpan `json:"spans"`
}

type StageFindings struct {
	Stage   Stage   `json:"stage"`
	Title   string  `json:"title"`
	Enabled bool    `json:"enabled"`
	Errors  int     `json:"errors"`
	Count   int     `json:"count"`
	Matches []Match `json:"matches"`
}

type Findings struct {
	AnalysisID  string          `json:"analysis_id"`
	Similarity  float64         `json:"similarity"`
	Originality float64         `json:"originality"`
	Stages      []StageFindings `json:"stages"`
}
