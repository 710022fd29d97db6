package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

var ErrUnsupportedExportFormat = errors.New("unsupported export format")

// Export serializes analysis summaries as "json" or "csv" and returns the content type.
func Export(items []models.AnalysisSummary, format string) ([]byte, string, error) {
	switch format {
	case "", "json":
		data, err := exportJSON(items)
		return data, "application/json", err
	case "csv":
		data, err := exportCSV(items)
		return data, "text/csv", err
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupportedExportFormat, format)
	}
}

func exportJSON(items []models.AnalysisSummary) ([]byte, error) {
	if items == nil {
		items = []models.AnalysisSummary{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyses: %w", err)
	}
	return data, nil
}

func exportCSV(items []models.AnalysisSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"Analysis ID", "Document ID", "Document", "Uploaded By", "Status",
		"Similarity %", "Originality %", "Matches", "Created At", "Completed At"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, it := range items {
		completed := ""
		if it.CompletedAt != nil {
			completed = it.CompletedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			it.ID,
			it.DocumentID,
			it.DocumentName,
			it.UploadedBy,
			it.Status,
			strconv.FormatFloat(it.Similarity, 'f', 2, 64),
			strconv.FormatFloat(it.Originality, 'f', 2, 64),
			strconv.Itoa(it.MatchCount),
			it.CreatedAt.UTC().Format(time.RFC3339),
			completed,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return buf.Bytes(), nil
}
