package domain

import "time"

const (
	// TimelineOrderCreated фиксирует создание заказа.
	TimelineOrderCreated = "OrderCreated"
	// TimelineOrderStatusChanged фиксирует смену статуса, Reason хранит "from->to".
	TimelineOrderStatusChanged = "OrderStatusChanged"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
