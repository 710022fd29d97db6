package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAcademic(baseURL string) *SemanticScholarClient {
	return NewSemanticScholarClient(AcademicConfig{
		BaseURL:    baseURL,
		APIKey:     "secret",
		Timeout:    2 * time.Second,
		RetryCount: 2,
		RetryDelay: time.Millisecond,
	}, zerolog.Nop())
}

func TestSemanticScholarMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, paperSearchPath, r.URL.Path)
		assert.Equal(t, `"deep residual learning for image recognition"`, r.URL.Query().Get("query"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"total": 3, "data": [{"paperId": "p1", "title": "Deep Residual Learning",
			"abstract": "We present deep residual learning for image recognition.",
			"url": "https://example.org/p1",
			"authors": [{"name": "Kaiming He"}, {"name": "Xiangyu Zhang"}]}]}`))
	}))
	defer srv.Close()

	res, err := newAcademic(srv.URL).Search(context.Background(), "deep residual learning for image recognition")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "Deep Residual Learning", res.Title)
	assert.Equal(t, "Kaiming He, Xiangyu Zhang", res.Authors)
	assert.Equal(t, "https://example.org/p1", res.URL)
	assert.NotEmpty(t, res.Evidence)
}

func TestSemanticScholarNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total": 0, "data": []}`))
	}))
	defer srv.Close()

	res, err := newAcademic(srv.URL).Search(context.Background(), "nothing like this exists")
	require.NoError(t, err)
	assert.False(t, res.Found)
}

func TestSemanticScholarRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"total": 1, "data": [{"title": "T", "authors": []}]}`))
	}))
	defer srv.Close()

	res, err := newAcademic(srv.URL).Search(context.Background(), "some sentence")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSemanticScholarGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newAcademic(srv.URL).Search(context.Background(), "some sentence")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSemanticScholarClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newAcademic(srv.URL).Search(context.Background(), "some sentence")
	assert.ErrorIs(t, err, ErrBadResponse)
	assert.Equal(t, int32(1), calls.Load())
}
