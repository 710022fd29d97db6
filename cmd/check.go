package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/app"
	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/analyzer"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/extractor"
	"github.com/RubachokBoss/plagiarism-checker/internal/service/report"
	"github.com/RubachokBoss/plagiarism-checker/pkg/hash"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	checkOutput string
	checkStages []string
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check a single .txt, .docx or .pdf file and print the text report",
	Long: `Runs the configured stages on a local file without a database, broker or
object storage. Self-plagiarism is limited to repetition inside the file.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkOutput, "output", "o", "", "Write the report to this file instead of stdout")
	checkCmd.Flags().StringSliceVar(&checkStages, "stages", nil, "Stages to run (self,academic,web); defaults to analysis.stages")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	names := cfg.Analysis.Stages
	if len(checkStages) > 0 {
		names = checkStages
	}
	stages, err := app.ParseStages(names)
	if err != nil {
		return err
	}

	hasher, err := hash.New(cfg.Documents.HashAlgorithm)
	if err != nil {
		return err
	}

	text, format, err := extractor.New(log).Extract(ctx, path, data)
	if err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:           uuid.NewString(),
		OriginalName: filepath.Base(path),
		Format:       format,
		Size:         int64(len(data)),
		Hash:         hasher.Sum(data),
		Text:         text,
		Status:       models.DocumentStatusAnalyzed.String(),
		UploadedAt:   now,
	}

	checker := app.NewChecker(cfg, stages, nil, hasher, log)
	outcome, err := checker.Check(ctx, analyzer.CheckInput{
		DocumentID:   doc.ID,
		DocumentName: doc.OriginalName,
		Text:         text,
	}, func(done, total int) {
		log.Info().Msgf("Checked %d/%d sentences", done, total)
	})
	if err != nil {
		return err
	}

	result := &models.AnalysisResult{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		CreatedAt:  now,
	}
	outcome.Apply(result, time.Now().UTC())

	var out io.Writer = cmd.OutOrStdout()
	if checkOutput != "" {
		f, err := os.Create(checkOutput)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", checkOutput, err)
		}
		defer f.Close()
		out = f
	}

	if err := report.WriteText(out, doc, result); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if checkOutput != "" {
		log.Info().Str("path", checkOutput).Msg("Report saved")
	}
	return nil
}
