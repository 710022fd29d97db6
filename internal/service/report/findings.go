package report

import (
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

// BuildFindings groups matches by stage in execution order.
func BuildFindings(result *models.AnalysisResult) models.Findings {
	findings := models.Findings{
		AnalysisID:  result.ID,
		Similarity:  result.Similarity,
		Originality: result.Originality,
	}

	for _, stage := range models.Stages {
		sf := models.StageFindings{
			Stage:   stage,
			Title:   stage.Title(),
			Enabled: true,
			Matches: result.MatchesByStage(stage),
		}
		if s, ok := result.StageSummary(stage); ok {
			sf.Enabled = s.Enabled
			sf.Errors = s.Errors
		}
		if sf.Matches == nil {
			sf.Matches = []models.Match{}
		}
		sf.Count = len(sf.Matches)
		findings.Stages = append(findings.Stages, sf)
	}

	return findings
}
