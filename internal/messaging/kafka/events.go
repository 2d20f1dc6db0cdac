package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// EventType определяет тип события
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicDeadLetterQueue = "storefront.order.dlq"
)

// AggregateOrder: тип агрегата в outbox.
const AggregateOrder = "order"

// HeaderEventType: Kafka header с типом события.
const HeaderEventType = "x-event-type"

// OrderLineEvent: снимок позиции в событии.
type OrderLineEvent struct {
	ProductID      *string `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Quantity       int32   `json:"quantity"`
	UnitPriceMinor int64   `json:"unit_price_minor"`
}

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType      EventType        `json:"event_type"`
	OrderID        string           `json:"order_id"`
	AccountID      string           `json:"account_id"`
	Status         string           `json:"status"`
	PreviousStatus string           `json:"previous_status,omitempty"`
	TotalMinor     int64            `json:"total_minor"`
	Lines          []OrderLineEvent `json:"lines,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
	// Trace хранит W3C trace context запроса, породившего событие.
	Trace map[string]string `json:"trace,omitempty"`
}

// NewOrderCreatedEvent создаёт событие о новом заказе.
func NewOrderCreatedEvent(order domain.Order) *OrderEvent {
	lines := make([]OrderLineEvent, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, OrderLineEvent{
			ProductID:      line.ProductID,
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
		})
	}
	return &OrderEvent{
		EventType:  EventTypeOrderCreated,
		OrderID:    order.ID,
		AccountID:  order.AccountID,
		Status:     string(order.Status),
		TotalMinor: order.TotalMinor,
		Lines:      lines,
		Timestamp:  order.CreatedAt,
	}
}

// NewOrderStatusChangedEvent создаёт событие о смене статуса.
func NewOrderStatusChangedEvent(order domain.Order, previous domain.OrderStatus) *OrderEvent {
	return &OrderEvent{
		EventType:      EventTypeOrderStatusChanged,
		OrderID:        order.ID,
		AccountID:      order.AccountID,
		Status:         string(order.Status),
		PreviousStatus: string(previous),
		TotalMinor:     order.TotalMinor,
		Timestamp:      order.UpdatedAt,
	}
}

// OutboxMessage сериализует событие для transactional outbox и
// сохраняет trace context из ctx, чтобы связать публикацию с исходным запросом.
func (e *OrderEvent) OutboxMessage(ctx context.Context) (domain.OutboxMessage, error) {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) > 0 {
		e.Trace = carrier
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("marshal %s event: %w", e.EventType, err)
	}
	return domain.OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   e.OrderID,
		EventType:     string(e.EventType),
		Payload:       payload,
	}, nil
}

// traceFromPayload достаёт trace context из сериализованного события.
func traceFromPayload(payload []byte) map[string]string {
	var envelope struct {
		Trace map[string]string `json:"trace"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil
	}
	return envelope.Trace
}

// ContextFromHeaders восстанавливает trace context из заголовков сообщения.
func ContextFromHeaders(ctx context.Context, headers map[string]string) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}
