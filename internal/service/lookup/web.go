package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

const ddgRedirectPrefix = "//duckduckgo.com/l/?uddg="

type WebConfig struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RateInterval time.Duration
}

// DuckDuckGoClient runs exact-phrase queries against the DuckDuckGo HTML endpoint.
// All queries share one limiter regardless of how many analyses run at once.
type DuckDuckGoClient struct {
	config  WebConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

func NewDuckDuckGoClient(cfg WebConfig, logger zerolog.Logger) *DuckDuckGoClient {
	limit := rate.Inf
	if cfg.RateInterval > 0 {
		limit = rate.Every(cfg.RateInterval)
	}

	return &DuckDuckGoClient{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("stage", string(models.StageWeb)).Logger(),
	}
}

func (c *DuckDuckGoClient) Stage() models.Stage {
	return models.StageWeb
}

func (c *DuckDuckGoClient) Search(ctx context.Context, sentence string) (Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + "/html/?q=" + url.QueryEscape(quote(sentence))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("web search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Result{}, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %d", ErrBadResponse, resp.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	res := firstResult(doc)
	if res.Found {
		c.logger.Debug().Str("url", res.URL).Msg("Web match")
	}
	return res, nil
}

// firstResult walks the result page and returns the first organic link.
func firstResult(doc *html.Node) Result {
	var res Result

	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") && !hasClass(n, "result--ad") {
			r := extractResult(n)
			if r.URL != "" {
				res = r
				return true
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if walk(child) {
				return true
			}
		}
		return false
	}

	walk(doc)
	return res
}

func extractResult(n *html.Node) Result {
	var res Result

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a") && res.URL == "":
				res.URL = resolveRedirect(attr(n, "href"))
				res.Title = textContent(n)
			case hasClass(n, "result__snippet") && res.Evidence == "":
				res.Evidence = textContent(n)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}

	walk(n)
	res.Found = res.URL != ""
	return res
}

func resolveRedirect(href string) string {
	if !strings.HasPrefix(href, ddgRedirectPrefix) {
		return href
	}
	raw := strings.TrimPrefix(href, ddgRedirectPrefix)
	if i := strings.Index(raw, "&"); i >= 0 {
		raw = raw[:i]
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return href
	}
	return decoded
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
