package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"rental-ingest-service/internal/constants"
	"rental-ingest-service/internal/core/domain"
	"rental-ingest-service/internal/core/port"
)

// runReportDTO is the wire form of a reconcile summary.
type runReportDTO struct {
	RunID         string    `json:"run_id"`
	SnapshotPath  string    `json:"snapshot_path"`
	New           int       `json:"new"`
	Updated       int       `json:"updated"`
	Unchanged     int       `json:"unchanged"`
	OffMarket     int       `json:"off_market"`
	Relisted      int       `json:"relisted"`
	NewListingIDs []string  `json:"new_listing_ids,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// RunReportQueueAdapter publishes reconcile summaries to the ingest exchange
// so downstream consumers (alerting, analytics) can react to each run.
type RunReportQueueAdapter struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	routingKey string
	logger     port.LoggerPort
}

// NewRunReportQueueAdapter dials the broker and declares the exchange.
func NewRunReportQueueAdapter(url string, logger port.LoggerPort) (*RunReportQueueAdapter, error) {
	if url == "" {
		return nil, fmt.Errorf("rabbitmq url cannot be empty")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		constants.ExchangeName,
		constants.ExchangeType,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", constants.ExchangeName, err)
	}

	return &RunReportQueueAdapter{
		connection: conn,
		channel:    ch,
		routingKey: constants.RoutingKeyRunReports,
		logger:     logger,
	}, nil
}

// Report publishes one summary as a persistent JSON message.
func (a *RunReportQueueAdapter) Report(ctx context.Context, summary domain.ReconcileSummary) error {
	body, err := json.Marshal(runReportDTO{
		RunID:         summary.RunID.String(),
		SnapshotPath:  summary.SnapshotPath,
		New:           summary.New,
		Updated:       summary.Updated,
		Unchanged:     summary.Unchanged,
		OffMarket:     summary.OffMarket,
		Relisted:      summary.Relisted,
		NewListingIDs: summary.NewListingIDs,
		StartedAt:     summary.StartedAt,
		FinishedAt:    summary.FinishedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal run report: %w", err)
	}

	err = a.channel.PublishWithContext(ctx,
		constants.ExchangeName,
		a.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    summary.RunID.String(),
			Timestamp:    time.Now(),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish run report: %w", err)
	}

	a.logger.Info("run report published", port.Fields{
		"run_id":      summary.RunID.String(),
		"routing_key": a.routingKey,
	})
	return nil
}

// Close releases the channel and connection.
func (a *RunReportQueueAdapter) Close() error {
	if a.channel != nil {
		_ = a.channel.Close()
	}
	if a.connection != nil {
		return a.connection.Close()
	}
	return nil
}
