package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const defaultTransitionAttempts = 3

// ProductSource: синхронное чтение каталога при оформлении заказа.
type ProductSource interface {
	Get(ctx context.Context, id string) (domain.Product, error)
}

// Details: заказ вместе с историей статусов.
type Details struct {
	Order   domain.Order
	History []domain.TimelineEvent
}

// Service: журнал заказов: создание со снимком цен, чтение по правам и смена статусов.
type Service struct {
	orders   domain.OrderRepository
	products ProductSource
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.Metrics
	logger   *log.Entry
	tracer   trace.Tracer
	now      func() time.Time
	attempts int
}

// Option настраивает Service.
type Option func(*Service)

// WithOutbox включает публикацию доменных событий через outbox. Если репозиторий заказов
// реализует domain.OrderEventWriter, событие пишется в одной транзакции с заказом.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(s *Service) { s.outbox = outbox }
}

// WithMetrics задаёт набор метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithTransitionAttempts ограничивает число повторов при конфликте версий.
func WithTransitionAttempts(n int) Option {
	return func(s *Service) { s.attempts = n }
}

// NewService создаёт журнал заказов.
func NewService(orders domain.OrderRepository, products ProductSource, timeline domain.TimelineRepository, options ...Option) *Service {
	s := &Service{
		orders:   orders,
		products: products,
		timeline: timeline,
		tracer:   otel.Tracer("storefront/ledger"),
		now:      func() time.Time { return time.Now().UTC() },
		attempts: defaultTransitionAttempts,
	}
	for _, option := range options {
		option(s)
	}
	if s.logger == nil {
		s.logger = log.New().WithField("component", "ledger")
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
	}
	if s.attempts <= 0 {
		s.attempts = defaultTransitionAttempts
	}
	return s
}

// Create оформляет заказ от имени requester. Цены и названия фиксируются на момент создания,
// заказ с позициями сохраняется атомарно; при недоступном товаре ничего не сохраняется.
func (s *Service) Create(ctx context.Context, requester *domain.Account, lines []domain.LineRequest, postalCode, address string) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Create")
	defer span.End()

	order, err := s.create(ctx, requester, lines, postalCode, address)
	if err != nil {
		s.metrics.RecordOrderRejected(domain.KindName(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.Int64("order.total_minor", order.TotalMinor),
	)
	s.metrics.RecordOrderCreated()
	s.appendTimeline(order.ID, domain.TimelineOrderCreated, "")

	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"account_id":  order.AccountID,
		"total_minor": order.TotalMinor,
		"lines":       len(order.Lines),
	}).Info("order created")
	return order, nil
}

func (s *Service) create(ctx context.Context, requester *domain.Account, lines []domain.LineRequest, postalCode, address string) (domain.Order, error) {
	if requester == nil {
		return domain.Order{}, &domain.Error{Kind: domain.ErrUnauthenticated}
	}
	if !domain.Can(requester, domain.ActionPlaceOrder, nil) {
		return domain.Order{}, domain.Denied("account %s cannot place orders", requester.ID)
	}
	if err := validateLines(lines); err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:         uuid.NewString(),
		AccountID:  requester.ID,
		Status:     domain.OrderStatusPending,
		PostalCode: postalCode,
		Address:    address,
		Lines:      make([]domain.OrderLine, 0, len(lines)),
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for i, req := range lines {
		product, err := s.products.Get(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Order{}, domain.ProductUnavailable(req.ProductID, "not found")
			}
			return domain.Order{}, fmt.Errorf("resolve product %s: %w", req.ProductID, err)
		}
		if !product.Active {
			return domain.Order{}, domain.ProductUnavailable(req.ProductID, "inactive")
		}

		productID := product.ID
		order.Lines = append(order.Lines, domain.OrderLine{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			ProductID:      &productID,
			ProductName:    product.Name,
			Quantity:       req.Quantity,
			UnitPriceMinor: product.PriceMinor,
			Position:       i,
		})
	}
	total, err := domain.SumLines(order.Lines)
	if err != nil {
		return domain.Order{}, err
	}
	order.TotalMinor = total

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order invariants: %w", errors.Join(errs...))
	}
	if writer, ok := s.eventWriter(); ok {
		msg, err := kafka.NewOrderCreatedEvent(order).OutboxMessage(ctx)
		if err != nil {
			return domain.Order{}, fmt.Errorf("encode order event: %w", err)
		}
		if err := writer.CreateWithEvent(ctx, order, msg); err != nil {
			return domain.Order{}, fmt.Errorf("persist order: %w", err)
		}
		s.metrics.RecordOutboxEnqueued()
		return order, nil
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	s.enqueue(ctx, kafka.NewOrderCreatedEvent(order))
	return order, nil
}

func validateLines(lines []domain.LineRequest) error {
	if len(lines) == 0 {
		return domain.NewValidationError(map[string]string{"items": "at least one item is required"})
	}
	fields := map[string]string{}
	for i, line := range lines {
		prefix := "items[" + strconv.Itoa(i) + "]"
		if line.ProductID == "" {
			fields[prefix+".product_id"] = "is required"
		}
		if line.Quantity < 1 {
			fields[prefix+".quantity"] = "must be at least 1"
		}
	}
	if len(fields) > 0 {
		return domain.NewValidationError(fields)
	}
	return nil
}

// Get возвращает заказ с историей владельцу или администратору.
func (s *Service) Get(ctx context.Context, requester *domain.Account, id string) (Details, error) {
	if requester == nil {
		return Details{}, &domain.Error{Kind: domain.ErrUnauthenticated}
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return Details{}, err
	}
	if !domain.Can(requester, domain.ActionReadOrder, &order) {
		return Details{}, domain.Denied("order %s belongs to another account", id)
	}

	history, err := s.timeline.List(id)
	if err != nil {
		return Details{}, fmt.Errorf("load order history %s: %w", id, err)
	}
	return Details{Order: order, History: history}, nil
}

// List возвращает все заказы администратору и собственные заказы покупателю,
// по возрастанию времени создания.
func (s *Service) List(ctx context.Context, requester *domain.Account) ([]domain.Order, error) {
	if requester == nil {
		return nil, &domain.Error{Kind: domain.ErrUnauthenticated}
	}

	var (
		orders []domain.Order
		err    error
	)
	if domain.Can(requester, domain.ActionListAllOrders, nil) {
		orders, err = s.orders.ListAll(ctx)
	} else {
		orders, err = s.orders.ListByAccount(ctx, requester.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Transition переводит заказ в target. Только для администратора.
// При конфликте версий заказ перечитывается и ребро проверяется заново.
func (s *Service) Transition(ctx context.Context, requester *domain.Account, id string, target domain.OrderStatus) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.Transition", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.target_status", string(target)),
	))
	defer span.End()

	order, previous, err := s.transition(ctx, requester, id, target)
	if err != nil {
		s.metrics.RecordTransition(string(previous), string(target), domain.KindName(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.Order{}, err
	}

	s.metrics.RecordTransition(string(previous), string(target), "ok")
	s.appendTimeline(order.ID, domain.TimelineOrderStatusChanged, string(previous)+"->"+string(target))

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous,
		"to":       target,
		"actor_id": requester.ID,
	}).Info("order status changed")
	return order, nil
}

func (s *Service) transition(ctx context.Context, requester *domain.Account, id string, target domain.OrderStatus) (domain.Order, domain.OrderStatus, error) {
	if requester == nil {
		return domain.Order{}, "", &domain.Error{Kind: domain.ErrUnauthenticated}
	}
	if !domain.Can(requester, domain.ActionTransitionOrder, nil) {
		return domain.Order{}, "", domain.Denied("only administrators can change order status")
	}
	if !target.Valid() {
		return domain.Order{}, "", domain.NewValidationError(map[string]string{"status": "must be one of pending, paid, shipped, cancelled"})
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		order, err := s.load(ctx, id)
		if err != nil {
			return domain.Order{}, "", err
		}

		previous := order.Status
		if err := order.Transition(target, s.now()); err != nil {
			return domain.Order{}, previous, err
		}

		queued, err := s.saveStatus(ctx, order, previous)
		switch {
		case err == nil:
			order.Version++
			if !queued {
				s.enqueue(ctx, kafka.NewOrderStatusChangedEvent(order, previous))
			}
			return order, previous, nil
		case domain.IsVersionConflict(err):
			s.logger.WithFields(log.Fields{
				"order_id": id,
				"attempt":  attempt,
			}).Debug("order version conflict, reloading")
			continue
		case errors.Is(err, domain.ErrNotFound):
			return domain.Order{}, previous, domain.NotFound("order", id)
		default:
			return domain.Order{}, previous, fmt.Errorf("save order status %s: %w", id, err)
		}
	}

	return domain.Order{}, "", fmt.Errorf("transition order %s after %d attempts: %w", id, s.attempts, domain.ErrVersionConflict)
}

// eventWriter возвращает репозиторий, который пишет событие в транзакции заказа.
// Без outbox или без поддержки в хранилище события ставятся в очередь после фиксации.
func (s *Service) eventWriter() (domain.OrderEventWriter, bool) {
	if s.outbox == nil {
		return nil, false
	}
	writer, ok := s.orders.(domain.OrderEventWriter)
	return writer, ok
}

// saveStatus сохраняет статус; queued сообщает, что событие записано вместе с ним.
func (s *Service) saveStatus(ctx context.Context, order domain.Order, previous domain.OrderStatus) (bool, error) {
	writer, ok := s.eventWriter()
	if !ok {
		return false, s.orders.SaveStatus(ctx, order)
	}
	msg, err := kafka.NewOrderStatusChangedEvent(order, previous).OutboxMessage(ctx)
	if err != nil {
		return false, fmt.Errorf("encode order event: %w", err)
	}
	if err := writer.SaveStatusWithEvent(ctx, order, msg); err != nil {
		return false, err
	}
	s.metrics.RecordOutboxEnqueued()
	return true, nil
}

func (s *Service) load(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Order{}, domain.NotFound("order", id)
		}
		return domain.Order{}, fmt.Errorf("load order %s: %w", id, err)
	}
	return order, nil
}

func (s *Service) appendTimeline(orderID, eventType, reason string) {
	if s.timeline == nil {
		return
	}
	err := s.timeline.Append(domain.TimelineEvent{
		OrderID:  orderID,
		Type:     eventType,
		Reason:   reason,
		Occurred: s.now(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).Warn("failed to append timeline event")
		return
	}
	s.metrics.RecordTimelineEvent()
}

func (s *Service) enqueue(ctx context.Context, event *kafka.OrderEvent) {
	if s.outbox == nil {
		return
	}
	msg, err := event.OutboxMessage(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Warn("failed to encode order event")
		return
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("order_id", event.OrderID).Warn("failed to enqueue order event")
		return
	}
	s.metrics.RecordOutboxEnqueued()
}
