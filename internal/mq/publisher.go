package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/flowgen/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunEvent     MessageType = "run.event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — конверт любого сообщения flowgen.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunRequestedPayload — payload заявки на запуск.
// Сама заявка лежит в RequestStore, в сообщении только ссылка.
type RunRequestedPayload struct {
	RequestID string `json:"request_id"`
	FlowID    string `json:"flow_id"`
}

// NewMessage собирает конверт с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunRequested сообщает воркерам о новой заявке.
func (p *Publisher) PublishRunRequested(ctx context.Context, req *domain.RunRequest) error {
	msg := NewMessage(MessageTypeRunRequested, RunRequestedPayload{
		RequestID: req.ID,
		FlowID:    req.FlowID,
	})
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, msg)
}

// PublishEvent публикует событие журнала выполнения.
// Ключ маршрутизации — тип события в нижнем регистре ("node_failed").
func (p *Publisher) PublishEvent(ctx context.Context, event domain.ExecutionEvent) error {
	msg := NewMessage(MessageTypeRunEvent, event)
	return p.Publish(ctx, ExchangeEvents, EventRoutingKey(event.Type), msg)
}

// EventRoutingKey возвращает ключ маршрутизации для типа события.
func EventRoutingKey(t domain.EventType) RoutingKey {
	return RoutingKey(strings.ToLower(string(t)))
}
