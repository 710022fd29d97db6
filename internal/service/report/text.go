// Package report renders analysis results as the downloadable text report,
// the highlights view, the findings view and listing exports.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/mattn/go-runewidth"
)

const noMatchesVerdict = "Excellent! No significant plagiarism matches were found."

// FileName is the download name of a document's text report.
func FileName(doc *models.Document) string {
	base := doc.BaseName()
	if base == "" {
		base = doc.ID
	}
	return base + "_report.txt"
}

// WriteText renders the full plain-text report of a finished analysis.
func WriteText(w io.Writer, doc *models.Document, result *models.AnalysisResult) error {
	bw := bufio.NewWriter(w)

	title := "PLAGIARISM CHECK REPORT"
	fmt.Fprintln(bw, title)
	fmt.Fprintln(bw, strings.Repeat("=", len(title)))
	fmt.Fprintln(bw)

	analyzedAt := result.UpdatedAt
	if result.CompletedAt != nil {
		analyzedAt = *result.CompletedAt
	}

	for _, line := range renderTable([][]string{
		{"Document", doc.OriginalName},
		{"Document ID", doc.ID},
		{"Analysis ID", result.ID},
		{"Analyzed at", analyzedAt.UTC().Format(time.RFC3339)},
		{"Status", result.Status},
	}, false) {
		fmt.Fprintln(bw, line)
	}
	fmt.Fprintln(bw)

	if result.Status == models.AnalysisStatusFailed.String() {
		fmt.Fprintf(bw, "Analysis failed: %s\n", result.Error)
		return bw.Flush()
	}

	summary := [][]string{
		{"Metric", "Value"},
		{"Similarity", formatPercent(result.Similarity)},
		{"Originality", formatPercent(result.Originality)},
		{"Sentences", strconv.Itoa(result.TotalSentences)},
		{"Checked against external sources", strconv.Itoa(result.CheckedSentences)},
	}
	for _, stage := range models.Stages {
		summary = append(summary, []string{stage.Title() + " matches", stageCount(result, stage)})
	}
	for _, line := range renderTable(summary, true) {
		fmt.Fprintln(bw, line)
	}

	writeSelfSection(bw, result)
	writeExternalSection(bw, result, models.StageAcademic, "Stage 2: Checking Academic Databases")
	writeExternalSection(bw, result, models.StageWeb, "Stage 3: Checking the Web")

	fmt.Fprintln(bw)
	writeHeading(bw, "Check Complete")
	if len(result.Matches) == 0 {
		fmt.Fprintln(bw, noMatchesVerdict)
	} else {
		fmt.Fprintf(bw, "%d match(es) found. Similarity %s, originality %s.\n",
			len(result.Matches), formatPercent(result.Similarity), formatPercent(result.Originality))
	}

	return bw.Flush()
}

func writeSelfSection(w io.Writer, result *models.AnalysisResult) {
	fmt.Fprintln(w)
	writeHeading(w, "Stage 1: Checking for Repeated Lines (Self-Plagiarism)")

	if skipped(w, result, models.StageSelf) {
		return
	}

	matches := result.MatchesByStage(models.StageSelf)
	if len(matches) == 0 {
		fmt.Fprintln(w, "No significant internal repetitions found.")
		return
	}

	for _, m := range matches {
		if m.IsRepeat() {
			fmt.Fprintf(w, "Repeated Line: \"%s\" (Found %d times)\n", oneLine(m.Sentence), m.Count)
			continue
		}
		fmt.Fprintf(w, "Line: \"%s\"\n", oneLine(m.Sentence))
		fmt.Fprintf(w, "  Source: earlier document '%s' (%s)\n", m.Source.DocumentName, m.Source.DocumentID)
	}
}

func writeExternalSection(w io.Writer, result *models.AnalysisResult, stage models.Stage, heading string) {
	fmt.Fprintln(w)
	writeHeading(w, heading)

	if skipped(w, result, stage) {
		return
	}

	matches := result.MatchesByStage(stage)
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches found.")
	}

	for _, m := range matches {
		fmt.Fprintf(w, "Line: \"%s\"\n", oneLine(m.Sentence))
		switch stage {
		case models.StageAcademic:
			fmt.Fprintf(w, "  Source: '%s' by %s\n", m.Source.Title, orUnknown(m.Source.Authors))
			if m.Source.URL != "" {
				fmt.Fprintf(w, "  URL: %s\n", m.Source.URL)
			}
		default:
			fmt.Fprintf(w, "  Source: %s\n", m.Source.URL)
		}
		fmt.Fprintf(w, "  Confidence: %s\n", formatPercent(m.Score*100))
	}

	if s, ok := result.StageSummary(stage); ok && s.Errors > 0 {
		fmt.Fprintf(w, "Note: %d lookup(s) failed and were treated as no match.\n", s.Errors)
	}
}

func skipped(w io.Writer, result *models.AnalysisResult, stage models.Stage) bool {
	s, ok := result.StageSummary(stage)
	if ok && !s.Enabled {
		fmt.Fprintln(w, "Skipped.")
		return true
	}
	return false
}

func writeHeading(w io.Writer, heading string) {
	fmt.Fprintln(w, heading)
	fmt.Fprintln(w, strings.Repeat("-", runewidth.StringWidth(heading)))
}

func stageCount(result *models.AnalysisResult, stage models.Stage) string {
	if s, ok := result.StageSummary(stage); ok && !s.Enabled {
		return "skipped"
	}
	return strconv.Itoa(len(result.MatchesByStage(stage)))
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "%"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown authors"
	}
	return s
}

// renderTable pads cells to the widest display width in each column.
// With header set, the first row is followed by a separator row.
func renderTable(rows [][]string, header bool) []string {
	if len(rows) == 0 {
		return nil
	}

	colCount := 0
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}

	widths := make([]int, colCount)
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	lines := make([]string, 0, len(rows)+1)
	for r, row := range rows {
		lines = append(lines, renderRow(row, widths, header))
		if header && r == 0 {
			sep := make([]string, colCount)
			for i, w := range widths {
				sep[i] = strings.Repeat("-", w)
			}
			lines = append(lines, renderRow(sep, widths, header))
		}
	}
	return lines
}

func renderRow(row []string, widths []int, boxed bool) string {
	var sb strings.Builder
	if boxed {
		sb.WriteString("|")
	}
	for i, w := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}
		if boxed {
			sb.WriteString(" ")
		}
		sb.WriteString(runewidth.FillRight(cell, w))
		if boxed {
			sb.WriteString(" |")
		} else if i < len(widths)-1 {
			sb.WriteString("  ")
		}
	}
	if boxed {
		return sb.String()
	}
	return strings.TrimRight(sb.String(), " ")
}
