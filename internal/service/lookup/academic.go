package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
)

const paperSearchPath = "/graph/v1/paper/search"

type AcademicConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration
}

type paperSearchResponse struct {
	Total int `json:"total"`
	Data  []struct {
		PaperID  string `json:"paperId"`
		Title    string `json:"title"`
		Abstract string `json:"abstract"`
		URL      string `json:"url"`
		Authors  []struct {
			Name string `json:"name"`
		} `json:"authors"`
	} `json:"data"`
}

// SemanticScholarClient searches the Semantic Scholar Graph API for a paper containing the exact sentence.
type SemanticScholarClient struct {
	config AcademicConfig
	client *http.Client
	logger zerolog.Logger
}

func NewSemanticScholarClient(cfg AcademicConfig, logger zerolog.Logger) *SemanticScholarClient {
	return &SemanticScholarClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With().Str("stage", string(models.StageAcademic)).Logger(),
	}
}

func (c *SemanticScholarClient) Stage() models.Stage {
	return models.StageAcademic
}

func (c *SemanticScholarClient) Search(ctx context.Context, sentence string) (Result, error) {
	params := url.Values{}
	params.Set("query", quote(sentence))
	params.Set("fields", "title,authors,abstract,url")
	params.Set("limit", "1")
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + paperSearchPath + "?" + params.Encode()

	var lastErr error

	for i := 0; i <= c.config.RetryCount; i++ {
		if i > 0 {
			c.logger.Debug().Int("attempt", i).Err(lastErr).Msg("Retrying paper search")
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(c.config.RetryDelay * time.Duration(i)):
			}
		}

		res, retry, err := c.do(ctx, endpoint)
		if err == nil {
			return res, nil
		}
		if !retry || ctx.Err() != nil {
			return Result{}, err
		}
		lastErr = err
	}

	return Result{}, fmt.Errorf("paper search failed after %d attempts: %w", c.config.RetryCount+1, lastErr)
}

// do performs one request. The bool result tells whether the failure is worth retrying.
func (c *SemanticScholarClient) do(ctx context.Context, endpoint string) (Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("x-api-key", c.config.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, true, fmt.Errorf("paper search request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, true, ErrRateLimited
	case resp.StatusCode >= 500:
		return Result{}, true, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, false, fmt.Errorf("%w: status %d: %s", ErrBadResponse, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload paperSearchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload); err != nil {
		return Result{}, false, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	if payload.Total == 0 || len(payload.Data) == 0 {
		return Result{}, false, nil
	}

	paper := payload.Data[0]
	names := make([]string, 0, len(paper.Authors))
	for _, a := range paper.Authors {
		names = append(names, a.Name)
	}

	c.logger.Debug().Str("title", paper.Title).Msg("Academic match")

	return Result{
		Found:    true,
		Title:    paper.Title,
		Authors:  strings.Join(names, ", "),
		URL:      paper.URL,
		Evidence: paper.Abstract,
	}, false, nil
}
