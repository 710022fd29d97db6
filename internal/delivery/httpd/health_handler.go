package httpd

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
)

const readyTimeout = 3 * time.Second

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// ReadyCheck pings every dependency concurrently and reports 503 if any is down.
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		components = make(map[string]string, len(h.dependencies))
		ready      = true
	)
	for name, pinger := range h.dependencies {
		wg.Add(1)
		go func(name string, p Pinger) {
			defer wg.Done()
			status := "up"
			if err := p.Ping(ctx); err != nil {
				h.logger.Warn().Err(err).Str("component", name).Msg("Readiness check failed")
				status = "down"
			}

			mu.Lock()
			defer mu.Unlock()
			components[name] = status
			if status != "up" {
				ready = false
			}
		}(name, pinger)
	}
	wg.Wait()

	response := models.HealthStatus{
		Status:     "ready",
		Components: components,
		Timestamp:  time.Now().UTC(),
	}
	if !ready {
		response.Status = "not_ready"
		writeJSON(w, http.StatusServiceUnavailable, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.worker.Stats())
}
