package domain

import "context"

// AccountRepository хранит учётные записи.
type AccountRepository interface {
	// Create сохраняет аккаунт или возвращает ErrDuplicateUsername.
	Create(ctx context.Context, account Account) error
	// Get возвращает аккаунт по ID или ErrNotFound.
	Get(ctx context.Context, id string) (Account, error)
	// GetByUsername ищет аккаунт по имени или возвращает ErrNotFound.
	GetByUsername(ctx context.Context, username string) (Account, error)
	// Update перезаписывает изменяемые поля профиля.
	Update(ctx context.Context, account Account) error
}

// ProductRepository хранит товары каталога. Удаление не предусмотрено.
type ProductRepository interface {
	Create(ctx context.Context, product Product) error
	// Get возвращает товар или ErrNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает товары в порядке добавления.
	List(ctx context.Context, filter ProductFilter) ([]Product, error)
	// Update перезаписывает товар или возвращает ErrNotFound.
	Update(ctx context.Context, product Product) error
	Count(ctx context.Context) (int, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ вместе с позициями.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByAccount возвращает заказы владельца по возрастанию времени создания.
	ListByAccount(ctx context.Context, accountID string) ([]Order, error)
	// ListAll возвращает все заказы по возрастанию времени создания.
	ListAll(ctx context.Context) ([]Order, error)
	// SaveStatus меняет только статус с учётом optimistic locking.
	SaveStatus(ctx context.Context, order Order) error
}

// OrderEventWriter сохраняет изменение заказа и outbox-сообщение в одной транзакции:
// сообщение появляется в outbox тогда и только тогда, когда изменение заказа зафиксировано.
type OrderEventWriter interface {
	CreateWithEvent(ctx context.Context, order Order, event OutboxMessage) error
	SaveStatusWithEvent(ctx context.Context, order Order, event OutboxMessage) error
}
