package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/internal/worker/queue"
	"github.com/rs/zerolog"
)

// AnalysisWorker consumes document.uploaded events and runs each analysis on the pool.
type AnalysisWorker interface {
	Start(ctx context.Context) error
	Stop() error
	Stats() WorkerStats
}

type WorkerStats struct {
	Pool           PoolStats `json:"pool"`
	TotalProcessed int64     `json:"total_processed"`
	FailedJobs     int64     `json:"failed_jobs"`
	QueueLength    int       `json:"queue_length"`
}

type analysisWorker struct {
	workerPool    *WorkerPool
	queueConsumer queue.RabbitMQConsumer
	processor     service.AnalysisProcessor
	logger        zerolog.Logger

	processed atomic.Int64
	failed    atomic.Int64
	startTime time.Time

	cancel context.CancelFunc
	loop   sync.WaitGroup
}

func NewAnalysisWorker(
	workerPool *WorkerPool,
	queueConsumer queue.RabbitMQConsumer,
	processor service.AnalysisProcessor,
	logger zerolog.Logger,
) AnalysisWorker {
	return &analysisWorker{
		workerPool:    workerPool,
		queueConsumer: queueConsumer,
		processor:     processor,
		logger:        logger,
		startTime:     time.Now(),
	}
}

func (w *analysisWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting analysis worker...")

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.workerPool.Start()

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	w.loop.Add(1)
	go func() {
		defer w.loop.Done()
		w.processMessages(ctx, msgs)
	}()

	w.logger.Info().Msg("Analysis worker started successfully")
	return nil
}

func (w *analysisWorker) Stop() error {
	w.logger.Info().Msg("Stopping analysis worker...")

	if w.cancel != nil {
		w.cancel()
	}
	w.loop.Wait()
	w.workerPool.Stop()

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	w.logger.Info().
		Int64("total_processed", w.processed.Load()).
		Int64("failed_jobs", w.failed.Load()).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Analysis worker stopped")

	return nil
}

func (w *analysisWorker) processMessages(ctx context.Context, msgs <-chan queue.RabbitMQMessage) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			err := w.workerPool.Submit(func() {
				w.handle(ctx, msg)
			})
			if err != nil {
				w.logger.Error().Err(err).Msg("Failed to submit message to worker pool")
				if nackErr := msg.Nack(false, true); nackErr != nil {
					w.logger.Error().Err(nackErr).Msg("Failed to nack message")
				}
			}
		}
	}
}

func (w *analysisWorker) handle(ctx context.Context, msg queue.RabbitMQMessage) {
	err := w.processMessage(ctx, msg)
	if err == nil {
		w.processed.Add(1)
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	if errors.Is(err, service.ErrAnalysisInterrupted) {
		w.logger.Info().Err(err).Msg("Analysis interrupted, returning message to the queue")
		if nackErr := msg.Nack(false, true); nackErr != nil {
			w.logger.Error().Err(nackErr).Msg("Failed to nack message")
		}
		return
	}

	w.failed.Add(1)

	if isPermanentError(err) {
		w.logger.Warn().Err(err).Msg("Dropping message after permanent failure")
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	w.logger.Error().Err(err).Bool("redelivered", msg.Redelivered).Msg("Failed to process message, requeueing")
	if nackErr := msg.Nack(false, true); nackErr != nil {
		w.logger.Error().Err(nackErr).Msg("Failed to nack message")
	}
}

func (w *analysisWorker) processMessage(ctx context.Context, msg queue.RabbitMQMessage) error {
	var event models.DocumentUploadedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return permanent(fmt.Errorf("failed to unmarshal event: %w", err))
	}

	if strings.TrimSpace(event.AnalysisID) == "" {
		return permanent(errors.New("empty analysis_id"))
	}

	w.logger.Info().
		Str("analysis_id", event.AnalysisID).
		Str("document_id", event.DocumentID).
		Msg("Processing document analysis")

	return w.processor.Process(ctx, event.AnalysisID)
}

func (w *analysisWorker) Stats() WorkerStats {
	stats := WorkerStats{
		Pool:           w.workerPool.Stats(),
		TotalProcessed: w.processed.Load(),
		FailedJobs:     w.failed.Load(),
	}

	queueLength, err := w.queueConsumer.QueueLength()
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to get queue length")
	} else {
		stats.QueueLength = queueLength
	}

	return stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p) ||
		errors.Is(err, service.ErrAnalysisFailed) ||
		errors.Is(err, service.ErrAnalysisNotFound)
}
