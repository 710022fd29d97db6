package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RubachokBoss/plagiarism-checker/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const publishTimeout = 5 * time.Second

type PublisherConfig struct {
	Exchange            string
	UploadedRoutingKey  string
	CompletedRoutingKey string
}

// Publisher sends JSON events to the plagiarism exchange. It serves both as
// the upload dispatcher and as the completion publisher.
type Publisher struct {
	channel *amqp.Channel
	logger  zerolog.Logger
	config  PublisherConfig
}

func NewPublisher(channel *amqp.Channel, logger zerolog.Logger, config PublisherConfig) *Publisher {
	return &Publisher{
		channel: channel,
		logger:  logger,
		config:  config,
	}
}

func (p *Publisher) DispatchUploaded(ctx context.Context, event models.DocumentUploadedEvent) error {
	return p.publishJSON(ctx, p.config.UploadedRoutingKey, event)
}

func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event models.AnalysisCompletedEvent) error {
	return p.publishJSON(ctx, p.config.CompletedRoutingKey, event)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		publishCtx,
		p.config.Exchange, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}

	p.logger.Debug().
		Str("exchange", p.config.Exchange).
		Str("routing_key", routingKey).
		Int("bytes", len(body)).
		Msg("Event published")

	return nil
}
