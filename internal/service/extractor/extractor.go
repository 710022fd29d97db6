package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file type")
	ErrUnreadable        = errors.New("could not read file")
	ErrInvalidEncoding   = errors.New("text file is not valid UTF-8")
	ErrEmptyDocument     = errors.New("document contains no extractable text")
)

// Extractor turns raw uploaded bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, name string, data []byte) (string, models.Format, error)
	ExtractFormat(ctx context.Context, format models.Format, data []byte) (string, error)
}

type extractor struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) Extractor {
	return &extractor{logger: logger}
}

func (e *extractor) Extract(ctx context.Context, name string, data []byte) (string, models.Format, error) {
	format, ok := models.FormatFromName(name)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	text, err := e.ExtractFormat(ctx, format, data)
	if err != nil {
		return "", format, err
	}
	return text, format, nil
}

func (e *extractor) ExtractFormat(ctx context.Context, format models.Format, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch format {
	case models.FormatTXT:
		text, err = extractText(data)
	case models.FormatPDF:
		text, err = extractPDF(ctx, data)
	case models.FormatDOCX:
		text, err = extractDOCX(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		e.logger.Debug().Err(err).Str("format", string(format)).Msg("Text extraction failed")
		return "", err
	}

	text = normalizeNewlines(text)
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}

	e.logger.Debug().
		Str("format", string(format)).
		Int("bytes", len(data)).
		Int("text_length", len(text)).
		Msg("Text extracted")

	return text, nil
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, utf8BOM)
}
