package domain

import (
	"math"
	"strconv"
	"time"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан и ждёт оплаты.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid: оплата подтверждена.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusShipped: заказ отправлен, терминальный статус.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusCancelled: заказ отменён, терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderTransitions: допустимые рёбра автомата статусов.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending: {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:    {OrderStatusShipped, OrderStatusCancelled},
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusShipped, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderStatus) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// CanTransitionTo проверяет наличие ребра s -> target.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, next := range orderTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// OrderLine: позиция заказа с зафиксированной на момент создания ценой.
type OrderLine struct {
	ID      string
	OrderID string
	// ProductID: слабая ссылка: при удалении товара становится nil, позиция остаётся.
	ProductID *string
	// ProductName: снимок названия товара.
	ProductName string
	Quantity    int32
	// UnitPriceMinor: снимок цены, никогда не пересчитывается от текущей цены товара.
	UnitPriceMinor int64
	Position       int
}

// Subtotal возвращает quantity * unit price. Для сохранённых заказов переполнение исключено SumLines.
func (l OrderLine) Subtotal() int64 {
	return int64(l.Quantity) * l.UnitPriceMinor
}

// CheckedSubtotal возвращает quantity * unit price и false, если произведение не помещается в int64.
func (l OrderLine) CheckedSubtotal() (int64, bool) {
	qty := int64(l.Quantity)
	if qty <= 0 || l.UnitPriceMinor <= 0 {
		return qty * l.UnitPriceMinor, true
	}
	if l.UnitPriceMinor > math.MaxInt64/qty {
		return 0, false
	}
	return qty * l.UnitPriceMinor, true
}

// Order агрегирует заказ и его позиции. Позиции принадлежат заказу (каскадное удаление).
type Order struct {
	ID         string
	AccountID  string
	TotalMinor int64
	Status     OrderStatus
	PostalCode string
	Address    string
	Lines      []OrderLine
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// LineRequest: запрошенная клиентом позиция.
type LineRequest struct {
	ProductID string
	Quantity  int32
}

// SumLines считает сумму позиций. Если позиция или накопленная сумма выходит за int64,
// возвращается ошибка валидации по quantity этой позиции.
func SumLines(lines []OrderLine) (int64, error) {
	var total int64
	for i, line := range lines {
		sub, ok := line.CheckedSubtotal()
		if ok && sub > 0 && total > math.MaxInt64-sub {
			ok = false
		}
		if !ok {
			return 0, NewValidationError(map[string]string{
				"items[" + strconv.Itoa(i) + "].quantity": "order total exceeds the supported amount",
			})
		}
		total += sub
	}
	return total, nil
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.AccountID == "" {
		errs = append(errs, ErrAccountRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}

	for _, line := range o.Lines {
		if line.Quantity <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.UnitPriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
	}
	total, err := SumLines(o.Lines)
	switch {
	case err != nil:
		errs = append(errs, ErrAmountOverflow)
	case total != o.TotalMinor:
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// Transition переводит заказ в target либо возвращает InvalidTransition без изменений.
func (o *Order) Transition(target OrderStatus, now time.Time) error {
	if !target.Valid() || !o.Status.CanTransitionTo(target) {
		return InvalidTransition(o.Status, target)
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}
