package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/internal/worker/queue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConsumer struct {
	msgs chan queue.RabbitMQMessage
	once sync.Once
}

func newFakeConsumer(size int) *fakeConsumer {
	return &fakeConsumer{msgs: make(chan queue.RabbitMQMessage, size)}
}

func (c *fakeConsumer) Consume(context.Context) (<-chan queue.RabbitMQMessage, error) {
	return c.msgs, nil
}

func (c *fakeConsumer) QueueLength() (int, error) { return len(c.msgs), nil }

func (c *fakeConsumer) Close() error {
	c.once.Do(func() { close(c.msgs) })
	return nil
}

type fakeProcessor struct {
	mu    sync.Mutex
	errs  map[string]error
	calls []string
}

func (p *fakeProcessor) Process(_ context.Context, analysisID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, analysisID)
	return p.errs[analysisID]
}

func (p *fakeProcessor) called() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// outcome records how a message was settled.
type outcome struct {
	mu      sync.Mutex
	acked   bool
	nacked  bool
	requeue bool
	done    chan struct{}
}

func newMessage(body string) (queue.RabbitMQMessage, *outcome) {
	o := &outcome{done: make(chan struct{})}
	msg := queue.RabbitMQMessage{
		Body:      []byte(body),
		Timestamp: time.Now(),
		Ack: func(bool) error {
			o.mu.Lock()
			o.acked = true
			o.mu.Unlock()
			close(o.done)
			return nil
		},
		Nack: func(_ bool, requeue bool) error {
			o.mu.Lock()
			o.nacked = true
			o.requeue = requeue
			o.mu.Unlock()
			close(o.done)
			return nil
		},
	}
	return msg, o
}

func eventBody(analysisID string) string {
	return fmt.Sprintf(`{"analysis_id":%q,"document_id":"doc-1"}`, analysisID)
}

func waitSettled(t *testing.T, o *outcome) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(2 * time.Second):
		t.Fatal("message was not settled")
	}
}

func TestAnalysisWorker_SettlesMessages(t *testing.T) {
	processor := &fakeProcessor{errs: map[string]error{
		"failed":      fmt.Errorf("%w: document is empty", service.ErrAnalysisFailed),
		"missing":     service.ErrAnalysisNotFound,
		"transient":   errors.New("connection refused"),
		"interrupted": fmt.Errorf("%w: %w", service.ErrAnalysisInterrupted, context.Canceled),
	}}
	consumer := newFakeConsumer(10)
	w := NewAnalysisWorker(NewWorkerPool(2, zerolog.Nop()), consumer, processor, zerolog.Nop())

	tests := []struct {
		name        string
		body        string
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", body: eventBody("ok"), wantAck: true},
		{name: "bad json", body: "{not json", wantAck: true},
		{name: "empty id", body: eventBody(" "), wantAck: true},
		{name: "analysis failed", body: eventBody("failed"), wantAck: true},
		{name: "analysis missing", body: eventBody("missing"), wantAck: true},
		{name: "transient", body: eventBody("transient"), wantRequeue: true},
		{name: "interrupted by shutdown", body: eventBody("interrupted"), wantRequeue: true},
	}

	outcomes := make([]*outcome, len(tests))
	for i, tt := range tests {
		msg, o := newMessage(tt.body)
		outcomes[i] = o
		consumer.msgs <- msg
	}

	require.NoError(t, w.Start(context.Background()))

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := outcomes[i]
			waitSettled(t, o)
			o.mu.Lock()
			defer o.mu.Unlock()
			assert.Equal(t, tt.wantAck, o.acked)
			assert.Equal(t, tt.wantRequeue, o.requeue)
		})
	}

	stats := w.Stats()
	assert.Equal(t, int64(1), stats.TotalProcessed)
	assert.Equal(t, int64(5), stats.FailedJobs)

	require.NoError(t, w.Stop())
	assert.ElementsMatch(t, []string{"ok", "failed", "missing", "transient", "interrupted"}, processor.called())
}

func TestLocalDispatcher_RunsAnalysis(t *testing.T) {
	processor := &fakeProcessor{}
	d := NewLocalDispatcher(context.Background(), NewWorkerPool(1, zerolog.Nop()), processor, zerolog.Nop())

	require.NoError(t, d.DispatchUploaded(context.Background(), models.DocumentUploadedEvent{AnalysisID: "a-1"}))
	require.NoError(t, d.DispatchUploaded(context.Background(), models.DocumentUploadedEvent{AnalysisID: "a-2"}))
	d.Stop()

	assert.Equal(t, []string{"a-1", "a-2"}, processor.called())
	assert.ErrorIs(t, d.DispatchUploaded(context.Background(), models.DocumentUploadedEvent{AnalysisID: "a-3"}), ErrPoolStopped)
}

type fakeCleaner struct {
	mu    sync.Mutex
	calls int
}

func (c *fakeCleaner) CleanupExpired(context.Context, time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return 1, nil
}

func (c *fakeCleaner) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRetentionSweeper_RunsPeriodically(t *testing.T) {
	cleaner := &fakeCleaner{}
	s := NewRetentionSweeper(cleaner, 5*time.Millisecond, zerolog.Nop())
	s.Start(context.Background())

	assert.Eventually(t, func() bool { return cleaner.count() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}
