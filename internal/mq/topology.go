package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

const (
	// ExchangeRuns — заявки на запуск flow (direct).
	ExchangeRuns Exchange = "flowgen.runs"

	// ExchangeEvents — журнал выполнения (topic, ключ = тип события).
	ExchangeEvents Exchange = "flowgen.events"
)

const (
	QueueRunsPending Queue = "runs.pending"
	QueueRunEvents   Queue = "runs.events"
)

const (
	RoutingKeyRequested RoutingKey = "requested"
	RoutingKeyAllEvents RoutingKey = "#"
)

// SetupTopology объявляет обменники, очереди и привязки.
// Повторный вызов безопасен: все объявления идемпотентны.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeRuns, "direct"},
		{ExchangeEvents, "topic"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

func declareQueues(ch *amqp.Channel) error {
	queues := []struct {
		name Queue
		args amqp.Table
	}{
		{QueueRunsPending, nil},
		// журнал для внешних подписчиков, старые события не нужны
		{QueueRunEvents, amqp.Table{"x-message-ttl": int32(24 * 60 * 60 * 1000)}},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueRunsPending, RoutingKeyRequested, ExchangeRuns},
		{QueueRunEvents, RoutingKeyAllEvents, ExchangeEvents},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  flowgen RabbitMQ topology:

    flowgen.runs (direct)
    └── runs.pending [routing: requested]
            Consumer: flowgen-worker

    flowgen.events (topic)
    └── runs.events [routing: #]
            Consumer: external subscribers
`
}
