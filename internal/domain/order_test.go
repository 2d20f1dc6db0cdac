package domain_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// helper для создания базового заказа с одной позицией.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	productID := "product-1"
	return domain.Order{
		ID:         "order-1",
		AccountID:  "account-1",
		Status:     domain.OrderStatusPending,
		TotalMinor: 3000,
		PostalCode: "00000",
		Lines: []domain.OrderLine{
			{
				ID:             "line-1",
				OrderID:        "order-1",
				ProductID:      &productID,
				ProductName:    "Sabonete",
				Quantity:       2,
				UnitPriceMinor: 1500,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{name: "no account", mut: func(o *domain.Order) { o.AccountID = "" }},
		{name: "negative total", mut: func(o *domain.Order) { o.TotalMinor = -1 }},
		{name: "no lines", mut: func(o *domain.Order) { o.Lines = nil }},
		{name: "qty invalid", mut: func(o *domain.Order) { o.Lines[0].Quantity = 0 }},
		{name: "price invalid", mut: func(o *domain.Order) { o.Lines[0].UnitPriceMinor = -5 }},
		{name: "total mismatch", mut: func(o *domain.Order) { o.TotalMinor = 999 }},
		{name: "total overflow", mut: func(o *domain.Order) {
			o.Lines[0].UnitPriceMinor = 1 << 62
			o.Lines[0].Quantity = 4
			o.TotalMinor = 0
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestSumLinesRejectsOverflow(t *testing.T) {
	cases := []struct {
		name  string
		lines []domain.OrderLine
		field string
	}{
		{
			name:  "product overflow",
			lines: []domain.OrderLine{{Quantity: 4, UnitPriceMinor: 1 << 62}},
			field: "items[0].quantity",
		},
		{
			name: "sum overflow",
			lines: []domain.OrderLine{
				{Quantity: 1, UnitPriceMinor: math.MaxInt64 - 10},
				{Quantity: 2, UnitPriceMinor: 6},
			},
			field: "items[1].quantity",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := domain.SumLines(tc.lines)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			var derr *domain.Error
			if !errors.As(err, &derr) {
				t.Fatalf("expected *domain.Error, got %T", err)
			}
			if _, ok := derr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %s, got %v", tc.field, derr.Fields)
			}
		})
	}
}

func TestSumLinesAtLimit(t *testing.T) {
	total, err := domain.SumLines([]domain.OrderLine{
		{Quantity: 1, UnitPriceMinor: math.MaxInt64 - 10},
		{Quantity: 2, UnitPriceMinor: 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != math.MaxInt64 {
		t.Fatalf("expected %d, got %d", int64(math.MaxInt64), total)
	}
}

func TestOrderTransition(t *testing.T) {
	now := time.Now().UTC()

	order := makeOrder()
	for _, target := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusShipped} {
		if err := order.Transition(target, now); err != nil {
			t.Fatalf("transition to %s: %v", target, err)
		}
	}

	if err := order.Transition(domain.OrderStatusPaid, now); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition from shipped, got %v", err)
	}
	if order.Status != domain.OrderStatusShipped {
		t.Fatalf("status changed after failed transition: %s", order.Status)
	}
}

func TestOrderStatusEdges(t *testing.T) {
	cases := []struct {
		from, to domain.OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusPaid, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPaid, domain.OrderStatusShipped, true},
		{domain.OrderStatusPaid, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusShipped, false},
		{domain.OrderStatusPaid, domain.OrderStatusPending, false},
		{domain.OrderStatusShipped, domain.OrderStatusPaid, false},
		{domain.OrderStatusShipped, domain.OrderStatusCancelled, false},
		{domain.OrderStatusCancelled, domain.OrderStatusPaid, false},
		{domain.OrderStatusPending, domain.OrderStatus("refunded"), false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
				t.Fatalf("CanTransitionTo = %v, want %v", got, tc.want)
			}
		})
	}

	if !domain.OrderStatusShipped.Terminal() || !domain.OrderStatusCancelled.Terminal() {
		t.Fatal("shipped and cancelled must be terminal")
	}
	if domain.OrderStatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
}
