package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// orderRecord хранит заказ и порядковый номер вставки для стабильной сортировки.
type orderRecord struct {
	order domain.Order
	seq   int64
}

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]*orderRecord
	seq   int64
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items: make(map[string]*orderRecord),
	}
}

// cloneOrder копирует заказ вместе с позициями, чтобы исключить мутации извне.
func cloneOrder(order domain.Order) domain.Order {
	lines := make([]domain.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		if line.ProductID != nil {
			id := *line.ProductID
			line.ProductID = &id
		}
		lines[i] = line
	}
	order.Lines = lines
	return order
}

// Create сохраняет заказ и позиции под одной блокировкой: либо всё, либо ничего.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createLocked(order, nil)
}

// createLocked вызывается под r.mu. before выполняется после проверок и до записи;
// его ошибка отменяет вставку.
func (r *orderRepositoryInMemory) createLocked(order domain.Order, before func() error) error {
	if _, exists := r.items[order.ID]; exists {
		return domain.ErrVersionConflict
	}
	if before != nil {
		if err := before(); err != nil {
			return err
		}
	}
	order = cloneOrder(order)
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		order.Lines[i].Position = i
	}
	r.seq++
	r.items[order.ID] = &orderRecord{order: order, seq: r.seq}
	return nil
}

// Get возвращает заказ или ErrNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrNotFound
	}
	return cloneOrder(rec.order), nil
}

// ListByAccount возвращает заказы владельца по возрастанию времени создания.
func (r *orderRepositoryInMemory) ListByAccount(_ context.Context, accountID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(o domain.Order) bool { return o.AccountID == accountID }), nil
}

// ListAll возвращает все заказы по возрастанию времени создания.
func (r *orderRepositoryInMemory) ListAll(_ context.Context) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(func(domain.Order) bool { return true }), nil
}

func (r *orderRepositoryInMemory) collect(keep func(domain.Order) bool) []domain.Order {
	records := make([]*orderRecord, 0, len(r.items))
	for _, rec := range r.items {
		if keep(rec.order) {
			records = append(records, rec)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.Before(b.order.CreatedAt)
		}
		return a.seq < b.seq
	})

	result := make([]domain.Order, 0, len(records))
	for _, rec := range records {
		result = append(result, cloneOrder(rec.order))
	}
	return result
}

// SaveStatus меняет статус, проверяя версию (optimistic locking).
// Сумма, позиции и снимки цен не трогаются.
func (r *orderRepositoryInMemory) SaveStatus(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saveStatusLocked(order, nil)
}

func (r *orderRepositoryInMemory) saveStatusLocked(order domain.Order, before func() error) error {
	rec, ok := r.items[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if rec.order.Version != order.Version {
		return domain.ErrVersionConflict
	}
	if before != nil {
		if err := before(); err != nil {
			return err
		}
	}
	rec.order.Status = order.Status
	rec.order.UpdatedAt = order.UpdatedAt
	rec.order.Version++
	return nil
}

// orderRepositoryWithOutbox пишет outbox-сообщение под той же блокировкой, что и заказ.
type orderRepositoryWithOutbox struct {
	*orderRepositoryInMemory
	outbox *OutboxRepository
}

// NewOrderRepositoryWithOutbox возвращает репозиторий заказов, который реализует
// domain.OrderEventWriter поверх переданного outbox.
func NewOrderRepositoryWithOutbox(outbox *OutboxRepository) domain.OrderRepository {
	return &orderRepositoryWithOutbox{
		orderRepositoryInMemory: &orderRepositoryInMemory{items: make(map[string]*orderRecord)},
		outbox:                  outbox,
	}
}

func (r *orderRepositoryWithOutbox) CreateWithEvent(_ context.Context, order domain.Order, event domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.createLocked(order, func() error {
		_, err := r.outbox.Enqueue(event)
		return err
	})
}

func (r *orderRepositoryWithOutbox) SaveStatusWithEvent(_ context.Context, order domain.Order, event domain.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.saveStatusLocked(order, func() error {
		_, err := r.outbox.Enqueue(event)
		return err
	})
}

var (
	_ domain.OrderRepository  = (*orderRepositoryInMemory)(nil)
	_ domain.OrderEventWriter = (*orderRepositoryWithOutbox)(nil)
)
