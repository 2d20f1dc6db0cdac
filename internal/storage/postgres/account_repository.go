package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const accountColumns = `id, username, password_hash, role, email, phone, skin_type, created_at`

type accountRepository struct {
	db *sql.DB
}

// NewAccountRepository создаёт PostgreSQL-реализацию AccountRepository.
func NewAccountRepository(store *Store) domain.AccountRepository {
	return &accountRepository{db: store.DB()}
}

// Create полагается на UNIQUE(username): гонка двух регистраций разрешается базой.
func (r *accountRepository) Create(ctx context.Context, account domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		account.ID, account.Username, account.PasswordHash, string(account.Role),
		account.Email, account.Phone, account.SkinType, account.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateUsername
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *accountRepository) Get(ctx context.Context, id string) (domain.Account, error) {
	return r.getBy(ctx, "id", id)
}

func (r *accountRepository) GetByUsername(ctx context.Context, username string) (domain.Account, error) {
	return r.getBy(ctx, "username", username)
}

func (r *accountRepository) getBy(ctx context.Context, column, value string) (domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		account domain.Account
		role    string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE `+column+` = $1
	`, value).Scan(
		&account.ID, &account.Username, &account.PasswordHash, &role,
		&account.Email, &account.Phone, &account.SkinType, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("select account: %w", err)
	}
	account.Role = domain.Role(role)
	account.CreatedAt = account.CreatedAt.UTC()
	return account, nil
}

func (r *accountRepository) Update(ctx context.Context, account domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts
		SET email = $2,
		    phone = $3,
		    skin_type = $4
		WHERE id = $1
	`, account.ID, account.Email, account.Phone, account.SkinType)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var _ domain.AccountRepository = (*accountRepository)(nil)
