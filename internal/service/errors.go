package service

import "errors"

var (
	ErrDocumentNotFound    = errors.New("document not found")
	ErrAnalysisNotFound    = errors.New("analysis not found")
	ErrAnalysisNotFinished = errors.New("analysis is not finished yet")
	ErrAnalysisNotFailed   = errors.New("only failed analyses can be retried")
	ErrEmptyFile           = errors.New("file is empty")
	ErrFileTooLarge        = errors.New("file size exceeds limit")
	ErrFileTypeNotAllowed  = errors.New("file type not allowed")

	// ErrAnalysisFailed wraps every error after which the analysis has been
	// stored as failed. Processing it again cannot succeed.
	ErrAnalysisFailed = errors.New("analysis failed")

	// ErrAnalysisInterrupted is returned when shutdown stopped an analysis
	// midway. The analysis is pending again and must be redelivered.
	ErrAnalysisInterrupted = errors.New("analysis interrupted")

	// ErrDispatchFailed means the upload was rolled back because its analysis
	// could not be queued.
	ErrDispatchFailed = errors.New("analysis could not be queued")
)
