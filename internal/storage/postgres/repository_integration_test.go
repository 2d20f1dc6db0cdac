package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func seedAccount(t *testing.T, store *Store, id, username string) domain.Account {
	t.Helper()
	account := domain.Account{
		ID:           id,
		Username:     username,
		PasswordHash: "hash",
		Role:         domain.RoleCustomer,
		CreatedAt:    time.Now().UTC().Round(time.Microsecond),
	}
	require.NoError(t, NewAccountRepository(store).Create(context.Background(), account))
	return account
}

func seedProduct(t *testing.T, store *Store, id, name string, channels domain.Channels) domain.Product {
	t.Helper()
	product := domain.NewProduct(id, domain.ProductFields{
		Name:        name,
		Description: "Fórmula vegana " + name,
		Category:    "Skincare",
		PriceMinor:  4590,
		Tags:        []string{"vegano"},
		Channels:    channels,
	}, time.Now().UTC().Round(time.Microsecond))
	require.NoError(t, NewProductRepository(store).Create(context.Background(), product))
	return product
}

func sampleOrder(id, accountID, productID string, createdAt time.Time) domain.Order {
	pid := productID
	return domain.Order{
		ID:         id,
		AccountID:  accountID,
		TotalMinor: 9180,
		Status:     domain.OrderStatusPending,
		PostalCode: "01001-000",
		Address:    "Praça da Sé, 1",
		Lines: []domain.OrderLine{
			{ID: id + "-l1", ProductID: &pid, ProductName: "Sérum", Quantity: 2, UnitPriceMinor: 4590},
		},
		Version:   1,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestAccountRepository_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewAccountRepository(store)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")

	err := repo.Create(ctx, domain.Account{ID: "a-2", Username: "maria", PasswordHash: "x", Role: domain.RoleCustomer, CreatedAt: time.Now()})
	require.True(t, errors.Is(err, domain.ErrDuplicateUsername), "got %v", err)

	got, err := repo.GetByUsername(ctx, "maria")
	require.NoError(t, err)
	require.Equal(t, "a-1", got.ID)

	got.Email = "maria@example.com"
	got.SkinType = "mista"
	require.NoError(t, repo.Update(ctx, got))

	updated, err := repo.Get(ctx, "a-1")
	require.NoError(t, err)
	require.Equal(t, "maria@example.com", updated.Email)
	require.Equal(t, "mista", updated.SkinType)

	_, err = repo.Get(ctx, "missing")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestProductRepository_PostgresFilters(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)
	ctx := context.Background()

	seedProduct(t, store, "p-1", "Sérum Vitamina C", domain.Channels{"site": domain.Published(true), "ml": domain.ExternalListing("MLB-1")})
	seedProduct(t, store, "p-2", "Sabonete 100%", domain.Channels{"site": domain.Published(false)})
	third := seedProduct(t, store, "p-3", "Hidratante", domain.Channels{"shopee": domain.ExternalListing("SH-9")})

	all, err := repo.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, []string{"p-1", "p-2", "p-3"}, []string{all[0].ID, all[1].ID, all[2].ID})
	require.Equal(t, []string{"vegano"}, all[0].Tags)
	id, ok := all[0].Channels["ml"].ExternalID()
	require.True(t, ok)
	require.Equal(t, "MLB-1", id)

	site, err := repo.List(ctx, domain.ProductFilter{Channel: "site"})
	require.NoError(t, err)
	require.Len(t, site, 1)
	require.Equal(t, "p-1", site[0].ID)

	search, err := repo.List(ctx, domain.ProductFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, search, 1)
	require.Equal(t, "p-2", search[0].ID)

	third.Active = false
	third.UpdatedAt = time.Now().UTC()
	require.NoError(t, repo.Update(ctx, third))

	active, err := repo.List(ctx, domain.ProductFilter{ActiveOnly: true, Category: "skincare"})
	require.NoError(t, err)
	require.Len(t, active, 2)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestOrderRepository_PostgresCreateGetListAndSaveStatus(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")
	seedAccount(t, store, "a-2", "joao")
	seedProduct(t, store, "p-1", "Sérum", nil)

	now := time.Now().UTC().Round(time.Microsecond)
	require.NoError(t, repo.Create(ctx, sampleOrder("order-2", "a-1", "p-1", now.Add(-time.Minute))))
	require.NoError(t, repo.Create(ctx, sampleOrder("order-1", "a-1", "p-1", now.Add(-2*time.Minute))))
	require.NoError(t, repo.Create(ctx, sampleOrder("order-3", "a-2", "p-1", now)))

	got, err := repo.Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, "a-1", got.AccountID)
	require.Len(t, got.Lines, 1)
	require.Equal(t, int64(4590), got.Lines[0].UnitPriceMinor)
	require.Equal(t, "p-1", *got.Lines[0].ProductID)

	own, err := repo.ListByAccount(ctx, "a-1")
	require.NoError(t, err)
	require.Len(t, own, 2)
	require.Equal(t, "order-1", own[0].ID)
	require.Equal(t, "order-2", own[1].ID)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)

	got.Status = domain.OrderStatusPaid
	got.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, repo.SaveStatus(ctx, got))

	stale := got
	stale.Status = domain.OrderStatusCancelled
	require.True(t, domain.IsVersionConflict(repo.SaveStatus(ctx, stale)))

	reloaded, err := repo.Get(ctx, "order-1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPaid, reloaded.Status)
	require.Equal(t, got.Version+1, reloaded.Version)

	missing := sampleOrder("order-x", "a-1", "p-1", now)
	require.True(t, errors.Is(repo.SaveStatus(ctx, missing), domain.ErrNotFound))
}

func TestOrderRepository_PostgresCreateIsAtomic(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")
	seedProduct(t, store, "p-1", "Sérum", nil)

	order := sampleOrder("order-1", "a-1", "p-1", time.Now().UTC())
	order.Lines = append(order.Lines, domain.OrderLine{ID: "bad", ProductName: "x", Quantity: 0, UnitPriceMinor: 1})
	require.Error(t, repo.Create(ctx, order))

	_, err := repo.Get(ctx, "order-1")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestOrderRepository_PostgresProductRemovalKeepsLine(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")
	seedProduct(t, store, "p-1", "Sérum", nil)
	require.NoError(t, repo.Create(ctx, sampleOrder("order-1", "a-1", "p-1", time.Now().UTC())))

	_, err := store.DB().ExecContext(ctx, `DELETE FROM products WHERE id = 'p-1'`)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "order-1")
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	require.Nil(t, got.Lines[0].ProductID)
	require.Equal(t, int64(9180), got.TotalMinor)
}

func TestOrderRepository_PostgresConcurrentTransitionsSingleWinner(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")
	seedProduct(t, store, "p-1", "Sérum", nil)
	order := sampleOrder("order-1", "a-1", "p-1", time.Now().UTC())
	require.NoError(t, repo.Create(ctx, order))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for _, target := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusCancelled} {
		wg.Add(1)
		go func(target domain.OrderStatus) {
			defer wg.Done()
			candidate := order
			candidate.Status = target
			if repo.SaveStatus(ctx, candidate) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(target)
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestTimelineAndOutbox_PostgresFlow(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")
	seedProduct(t, store, "p-1", "Sérum", nil)
	require.NoError(t, NewOrderRepository(store).Create(ctx, sampleOrder("order-1", "a-1", "p-1", time.Now().UTC())))

	timeline := NewTimelineRepository(store)
	base := time.Now().UTC().Round(time.Microsecond)
	require.NoError(t, timeline.Append(domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelineOrderCreated, Occurred: base}))
	require.NoError(t, timeline.Append(domain.TimelineEvent{OrderID: "order-1", Type: domain.TimelineOrderStatusChanged, Reason: "pending->paid", Occurred: base.Add(time.Second)}))
	require.Error(t, timeline.Append(domain.TimelineEvent{Type: domain.TimelineOrderCreated}))

	events, err := timeline.List("order-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "pending->paid", events[1].Reason)

	outbox := NewOutboxRepository(store)
	first, err := outbox.Enqueue(domain.OutboxMessage{AggregateType: "order", AggregateID: "order-1", EventType: "order.created", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	second, err := outbox.Enqueue(domain.OutboxMessage{ID: "fixed", AggregateType: "order", AggregateID: "order-1", EventType: "order.status_changed", Payload: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, "fixed", second.ID)

	pending, err := outbox.PullPending(0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	stats, err := outbox.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, stats.PendingCount)
	require.False(t, stats.OldestPendingAt.IsZero())

	require.NoError(t, outbox.MarkSent(first.ID))
	require.NoError(t, outbox.MarkFailed(second.ID))
	require.ErrorIs(t, outbox.MarkSent("missing"), domain.ErrOutboxPublish)

	stats, err = outbox.Stats()
	require.NoError(t, err)
	require.Equal(t, 0, stats.PendingCount)
	require.Equal(t, 1, stats.FailedCount)
}

func TestOrderRepository_PostgresEventWrittenInOrderTransaction(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	writer, ok := repo.(domain.OrderEventWriter)
	require.True(t, ok)
	outbox := NewOutboxRepository(store)
	ctx := context.Background()

	seedAccount(t, store, "a-1", "maria")
	seedProduct(t, store, "p-1", "Sérum", nil)

	created := domain.OutboxMessage{AggregateType: "order", AggregateID: "order-1", EventType: "order.created", Payload: []byte(`{}`)}
	order := sampleOrder("order-1", "a-1", "p-1", time.Now().UTC().Round(time.Microsecond))
	require.NoError(t, writer.CreateWithEvent(ctx, order, created))

	// Ошибка вставки сообщения откатывает заказ.
	_, err := outbox.Enqueue(domain.OutboxMessage{ID: "taken", AggregateType: "order", AggregateID: "x", EventType: "order.created", Payload: []byte(`{}`)})
	require.NoError(t, err)
	clash := created
	clash.ID = "taken"
	require.Error(t, writer.CreateWithEvent(ctx, sampleOrder("order-2", "a-1", "p-1", time.Now().UTC()), clash))
	_, err = repo.Get(ctx, "order-2")
	require.True(t, errors.Is(err, domain.ErrNotFound))

	// Конфликт версий не оставляет сообщения.
	changed := domain.OutboxMessage{AggregateType: "order", AggregateID: "order-1", EventType: "order.status_changed", Payload: []byte(`{}`)}
	stale := order
	stale.Version = 7
	stale.Status = domain.OrderStatusPaid
	require.True(t, errors.Is(writer.SaveStatusWithEvent(ctx, stale, changed), domain.ErrVersionConflict))

	paid := order
	paid.Status = domain.OrderStatusPaid
	paid.UpdatedAt = time.Now().UTC()
	require.NoError(t, writer.SaveStatusWithEvent(ctx, paid, changed))

	pending, err := outbox.PullPending(0)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	types := []string{pending[0].EventType, pending[1].EventType, pending[2].EventType}
	require.ElementsMatch(t, []string{"order.created", "order.created", "order.status_changed"}, types)
	for _, msg := range pending {
		require.NotEqual(t, "order-2", msg.AggregateID)
	}
}
