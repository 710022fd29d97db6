package models

import (
	"path/filepath"
	"strings"
	"time"
)

type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatTXT  Format = "txt"
)

// FormatFromName detects the declared format from a file extension.
func FormatFromName(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDOCX, true
	case ".txt":
		return FormatTXT, true
	default:
		return "", false
	}
}

func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case FormatTXT:
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

type DocumentStatus string

const (
	DocumentStatusUploaded DocumentStatus = "uploaded"
	DocumentStatusAnalyzed DocumentStatus = "analyzed"
)

func (s DocumentStatus) String() string {
	return string(s)
}

type Document struct {
	ID            string    `json:"id" db:"id"`
	OriginalName  string    `json:"original_name" db:"original_name"`
	Format        Format    `json:"format" db:"format"`
	Size          int64     `json:"size" db:"size"`
	Hash          string    `json:"hash" db:"hash"`
	UploadedBy    string    `json:"uploaded_by,omitempty" db:"uploaded_by"`
	StorageBucket string    `json:"-" db:"storage_bucket"`
	StoragePath   string    `json:"-" db:"storage_path"`
	Text          string    `json:"-" db:"text"`
	SentenceCount int       `json:"sentence_count" db:"sentence_count"`
	Status        string    `json:"status" db:"status"`
	UploadedAt    time.Time `json:"uploaded_at" db:"uploaded_at"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
}

// BaseName is the original file name without its extension.
func (d *Document) BaseName() string {
	name := filepath.Base(d.OriginalName)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// Fingerprint is a hashed normalized sentence kept for cross-document self checks.
type Fingerprint struct {
	DocumentID    string `db:"document_id"`
	Hash          string `db:"hash"`
	SentenceIndex int    `db:"sentence_index"`
}

// FingerprintHit is a fingerprint of the current document found in an earlier one.
type FingerprintHit struct {
	Hash          string
	DocumentID    string
	DocumentName  string
	SentenceIndex int
}
