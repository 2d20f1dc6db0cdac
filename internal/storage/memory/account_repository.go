package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// accountRepositoryInMemory хранит аккаунты с индексом по username.
type accountRepositoryInMemory struct {
	mu         sync.RWMutex
	byID       map[string]domain.Account
	byUsername map[string]string
}

// NewAccountRepository создаёт in-memory реализацию AccountRepository.
func NewAccountRepository() domain.AccountRepository {
	return &accountRepositoryInMemory{
		byID:       make(map[string]domain.Account),
		byUsername: make(map[string]string),
	}
}

// Create проверяет уникальность username и сохраняет аккаунт атомарно.
func (r *accountRepositoryInMemory) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[account.Username]; taken {
		return domain.ErrDuplicateUsername
	}
	r.byID[account.ID] = account
	r.byUsername[account.Username] = account.ID
	return nil
}

func (r *accountRepositoryInMemory) Get(_ context.Context, id string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.byID[id]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return account, nil
}

func (r *accountRepositoryInMemory) GetByUsername(_ context.Context, username string) (domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return domain.Account{}, domain.ErrNotFound
	}
	return r.byID[id], nil
}

// Update меняет только поля профиля; username, роль и пароль неизменны.
func (r *accountRepositoryInMemory) Update(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[account.ID]
	if !ok {
		return domain.ErrNotFound
	}
	current.Email = account.Email
	current.Phone = account.Phone
	current.SkinType = account.SkinType
	r.byID[account.ID] = current
	return nil
}

var _ domain.AccountRepository = (*accountRepositoryInMemory)(nil)
