package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const productColumns = `id, name, description, ingredients, benefits, tags, price_minor, channels,
	image_url, category, is_subscription, active, created_at, updated_at`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func encodeProductJSON(product domain.Product) (tags, channels []byte, err error) {
	if product.Tags == nil {
		product.Tags = []string{}
	}
	if tags, err = json.Marshal(product.Tags); err != nil {
		return nil, nil, fmt.Errorf("encode product tags: %w", err)
	}
	if product.Channels == nil {
		product.Channels = domain.Channels{}
	}
	if channels, err = json.Marshal(product.Channels); err != nil {
		return nil, nil, fmt.Errorf("encode product channels: %w", err)
	}
	return tags, channels, nil
}

func (r *productRepository) Create(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tags, channels, err := encodeProductJSON(product)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		product.ID, product.Name, product.Description, product.Ingredients, product.Benefits,
		tags, product.PriceMinor, channels, product.ImageURL, product.Category,
		product.IsSubscription, product.Active, product.CreatedAt, product.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *productRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	product, err := scanProduct(r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}
	return product, nil
}

// List фильтрует на стороне БД и сохраняет порядок добавления (seq).
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActiveOnly {
		where = append(where, "active")
	}
	if filter.Category != "" {
		where = append(where, "LOWER(category) = LOWER("+arg(filter.Category)+")")
	}
	if filter.Channel != "" {
		key := arg(filter.Channel)
		where = append(where, fmt.Sprintf(
			"(channels -> %[1]s = 'true'::jsonb OR jsonb_typeof(channels -> %[1]s) = 'string')", key))
	}
	if q := strings.TrimSpace(filter.Search); q != "" {
		pattern := arg("%" + likeEscaper.Replace(q) + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %[1]s OR description ILIKE %[1]s)", pattern))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}
	return products, nil
}

func (r *productRepository) Update(ctx context.Context, product domain.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	tags, channels, err := encodeProductJSON(product)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2,
		    description = $3,
		    ingredients = $4,
		    benefits = $5,
		    tags = $6,
		    price_minor = $7,
		    channels = $8,
		    image_url = $9,
		    category = $10,
		    is_subscription = $11,
		    active = $12,
		    updated_at = $13
		WHERE id = $1
	`,
		product.ID, product.Name, product.Description, product.Ingredients, product.Benefits,
		tags, product.PriceMinor, channels, product.ImageURL, product.Category,
		product.IsSubscription, product.Active, product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
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

func (r *productRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var (
		product        domain.Product
		tags, channels []byte
	)
	if err := row.Scan(
		&product.ID, &product.Name, &product.Description, &product.Ingredients, &product.Benefits,
		&tags, &product.PriceMinor, &channels, &product.ImageURL, &product.Category,
		&product.IsSubscription, &product.Active, &product.CreatedAt, &product.UpdatedAt,
	); err != nil {
		return domain.Product{}, err
	}
	if err := json.Unmarshal(tags, &product.Tags); err != nil {
		return domain.Product{}, fmt.Errorf("decode product tags: %w", err)
	}
	if err := json.Unmarshal(channels, &product.Channels); err != nil {
		return domain.Product{}, fmt.Errorf("decode product channels: %w", err)
	}
	product.CreatedAt = product.CreatedAt.UTC()
	product.UpdatedAt = product.UpdatedAt.UTC()
	return product, nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
