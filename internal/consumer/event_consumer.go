package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/usil/eventhos-relay/internal/config"
	"github.com/usil/eventhos-relay/internal/contracts"
	"github.com/usil/eventhos-relay/internal/dispatch"
	"github.com/usil/eventhos-relay/internal/gate"
	applog "github.com/usil/eventhos-relay/internal/logger"
	"github.com/usil/eventhos-relay/internal/rabbitmq"
)

// EventEnvelope is the message shape producers publish to the event
// queue. It carries the same credentials as the HTTP endpoint; queued
// events pass through the same authentication gate.
type EventEnvelope struct {
	AccessKey       string `json:"access_key"`
	EventIdentifier string `json:"event_identifier"`
	Payload         any    `json:"payload"`
}

// EventConsumer feeds queued event notifications into the same
// gate -> resolve -> dispatch pipeline as the HTTP endpoint.
type EventConsumer struct {
	cfg          *config.RabbitMQConfig
	conn         *rabbitmq.Connection
	gate         *gate.Gate
	resolver     *contracts.Resolver
	orchestrator *dispatch.Orchestrator
	logger       *zap.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	consumerTag  string
}

// NewEventConsumer creates a new consumer instance with dependencies
func NewEventConsumer(cfg *config.RabbitMQConfig, conn *rabbitmq.Connection, g *gate.Gate, r *contracts.Resolver, o *dispatch.Orchestrator, logger *zap.Logger) *EventConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventConsumer{
		cfg:          cfg,
		conn:         conn,
		gate:         g,
		resolver:     r,
		orchestrator: o,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		consumerTag:  fmt.Sprintf("eventhos-relay-%d", time.Now().Unix()),
	}
}

// Start begins consuming from the configured event queue
func (ec *EventConsumer) Start() error {
	if ec.cfg.Queue == "" {
		return fmt.Errorf("event queue is required")
	}

	if err := ec.conn.SetQoS(10, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	if err := ec.startConsuming(); err != nil {
		return err
	}

	ec.logger.Info("Event consumer started and consuming messages",
		applog.Queue(ec.cfg.Queue),
		zap.String("consumer_tag", ec.consumerTag),
	)
	return nil
}

func (ec *EventConsumer) startConsuming() error {
	messages, err := ec.conn.ConsumeMessages(
		ec.cfg.Queue,
		ec.consumerTag,
		false, // autoAck (we'll manually ACK)
		false, // exclusive
		false, // noLocal
		false, // noWait
	)
	if err != nil {
		return fmt.Errorf("failed to start consuming from queue %s: %w", ec.cfg.Queue, err)
	}

	go ec.processMessages(messages)

	return nil
}

// Stop gracefully stops the consumer
func (ec *EventConsumer) Stop() error {
	ec.logger.Info("Stopping event consumer",
		zap.String("consumer_tag", ec.consumerTag),
	)
	ec.cancel()

	ch := ec.conn.GetChannel()
	if ch != nil {
		if err := ch.Cancel(ec.consumerTag, false); err != nil {
			ec.logger.Error("Failed to cancel consumer",
				zap.String("consumer_tag", ec.consumerTag),
				zap.Error(err),
			)
		}
	}

	ec.logger.Info("Event consumer stopped")
	return nil
}

func (ec *EventConsumer) processMessages(messages <-chan amqp.Delivery) {
	for {
		select {
		case <-ec.ctx.Done():
			ec.logger.Info("Event consumer context cancelled, stopping message processing")
			return
		case msg, ok := <-messages:
			if !ok {
				ec.logger.Warn("Message channel closed, attempting to restart consumer...",
					applog.Queue(ec.cfg.Queue),
				)
				// Channel closed - keep retrying until successful or
				// context is cancelled; the connection reconnects itself.
				for ec.ctx.Err() == nil {
					time.Sleep(2 * time.Second)

					if !ec.conn.IsHealthy() {
						continue
					}

					if err := ec.startConsuming(); err != nil {
						ec.logger.Error("Failed to restart consuming after channel close, will retry",
							applog.Queue(ec.cfg.Queue),
							zap.Error(err),
						)
						time.Sleep(5 * time.Second)
						continue
					}

					ec.logger.Info("Successfully restarted consumer after channel close",
						applog.Queue(ec.cfg.Queue),
					)
					return
				}
				return
			}
			ProcessMessage(ec.logger, ec.cfg.Queue, msg, ec)
		}
	}
}

// HandleEvent implements the EventHandler interface
// This method is called by the abstract consumer after base64 decoding
func (ec *EventConsumer) HandleEvent(decodedMessage string) error {
	var envelope EventEnvelope
	if err := json.Unmarshal([]byte(decodedMessage), &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}

	eventID, rejection := ec.gate.Authenticate(envelope.AccessKey, envelope.EventIdentifier)
	if rejection != nil {
		// A refused envelope is a poison message; rejecting it without
		// requeue keeps the queue moving.
		return fmt.Errorf("event envelope rejected: %s (%s)", rejection.Message, rejection.Code)
	}

	snapshot := dispatch.RequestSnapshot{
		Headers: map[string]any{},
		Query:   map[string]any{},
		Body:    envelope.Payload,
		Method:  "QUEUE",
		URL:     ec.cfg.Queue,
	}

	list, err := ec.resolver.ResolveForEvent(eventID)
	if err != nil {
		return fmt.Errorf("failed to resolve contracts: %w", err)
	}

	if len(list) == 0 {
		if _, err := ec.orchestrator.RecordReceivedEvent(eventID, snapshot); err != nil {
			ec.logger.Error("Failed to record received event without contracts",
				applog.EventID(eventID),
				zap.Error(err),
			)
		}
		ec.logger.Info("Queued event has no contracts associated",
			applog.EventID(eventID),
		)
		return nil
	}

	correlationID := ec.orchestrator.Dispatch(eventID, list, snapshot)
	ec.logger.Info("Queued event accepted for dispatch",
		applog.EventID(eventID),
		zap.Int("contract_count", len(list)),
		applog.CorrelationID(correlationID.String()),
	)
	return nil
}
