package app

import (
	"fmt"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/internal/config"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/lookup"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/rs/zerolog"
)

// ParseStages turns configured stage names into stages, keeping the canonical order.
func ParseStages(names []string) ([]models.Stage, error) {
	wanted := make(map[models.Stage]bool, len(names))
	for _, name := range names {
		stage, ok := models.ParseStage(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return nil, fmt.Errorf("unknown stage %q", name)
		}
		wanted[stage] = true
	}

	var stages []models.Stage
	for _, s := range models.Stages {
		if wanted[s] {
			stages = append(stages, s)
		}
	}
	return stages, nil
}

// NewChecker builds the plagiarism checker with cached academic and web
// lookups for the enabled stages. prior may be nil.
func NewChecker(
	cfg *config.Config,
	stages []models.Stage,
	prior analyzer.PriorDocuments,
	hasher *hash.Hasher,
	log zerolog.Logger,
) analyzer.PlagiarismChecker {
	var academic, web lookup.Searcher
	cache := lookup.NewCache(cfg.Analysis.CacheSize, cfg.Analysis.CacheTTL)

	for _, s := range stages {
		switch s {
		case models.StageAcademic:
			academic = lookup.WithCache(lookup.NewSemanticScholarClient(lookup.AcademicConfig{
				BaseURL:    cfg.Academic.BaseURL,
				APIKey:     cfg.Academic.APIKey,
				Timeout:    cfg.Academic.Timeout,
				RetryCount: cfg.Academic.RetryCount,
				RetryDelay: cfg.Academic.RetryDelay,
			}, log), cache)
		case models.StageWeb:
			web = lookup.WithCache(lookup.NewDuckDuckGoClient(lookup.WebConfig{
				BaseURL:      cfg.Web.BaseURL,
				UserAgent:    cfg.Web.UserAgent,
				Timeout:      cfg.Web.Timeout,
				RateInterval: cfg.Web.RateInterval,
			}, log), cache)
		}
	}

	return analyzer.NewPlagiarismChecker(
		academic,
		web,
		prior,
		hasher,
		log,
		analyzer.PlagiarismCheckerConfig{
			Stages:             stages,
			SelfMinWords:       cfg.Analysis.SelfMinWords,
			ExternalMinWords:   cfg.Analysis.ExternalMinWords,
			MaxParallelLookups: cfg.Analysis.MaxParallelLookups,
		},
	)
}
