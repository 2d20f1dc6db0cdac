package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Service: каталог товаров: публичное чтение и администраторские изменения.
type Service struct {
	products domain.ProductRepository
	metrics  *metrics.Metrics
	logger   *log.Entry
	now      func() time.Time
}

// NewService создаёт сервис каталога. nil-метрики заменяются на metrics.Default().
func NewService(products domain.ProductRepository, m *metrics.Metrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	if m == nil {
		m = metrics.Default()
	}
	return &Service{
		products: products,
		metrics:  m,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List возвращает товары по фильтру в порядке добавления.
func (s *Service) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	products, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// Get возвращает товар или NotFound.
func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Product{}, domain.NotFound("product", id)
		}
		return domain.Product{}, fmt.Errorf("get product %s: %w", id, err)
	}
	return product, nil
}

// Create добавляет активный товар. Только для администратора.
func (s *Service) Create(ctx context.Context, actor *domain.Account, fields domain.ProductFields) (domain.Product, error) {
	if err := s.authorize(actor, "create"); err != nil {
		return domain.Product{}, err
	}

	product := domain.NewProduct(uuid.NewString(), fields, s.now())
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}

	s.metrics.RecordCatalogMutation("create")
	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"actor_id":   actor.ID,
	}).Info("product created")
	return product, nil
}

// Update применяет частичное изменение к товару. Только для администратора.
func (s *Service) Update(ctx context.Context, actor *domain.Account, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := s.authorize(actor, "update"); err != nil {
		return domain.Product{}, err
	}
	return s.mutate(ctx, actor, id, "update", patch.Apply)
}

// Deactivate скрывает товар из витрины, не удаляя его.
func (s *Service) Deactivate(ctx context.Context, actor *domain.Account, id string) (domain.Product, error) {
	if err := s.authorize(actor, "deactivate"); err != nil {
		return domain.Product{}, err
	}
	return s.mutate(ctx, actor, id, "deactivate", func(p *domain.Product) {
		p.Active = false
	})
}

func (s *Service) mutate(ctx context.Context, actor *domain.Account, id, op string, change func(*domain.Product)) (domain.Product, error) {
	product, err := s.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	change(&product)
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	product.UpdatedAt = s.now()

	if err := s.products.Update(ctx, product); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Product{}, domain.NotFound("product", id)
		}
		return domain.Product{}, fmt.Errorf("%s product %s: %w", op, id, err)
	}

	s.metrics.RecordCatalogMutation(op)
	s.logger.WithFields(log.Fields{
		"product_id": id,
		"actor_id":   actor.ID,
		"operation":  op,
	}).Info("product changed")
	return product, nil
}

func (s *Service) authorize(actor *domain.Account, op string) error {
	if actor == nil {
		return &domain.Error{Kind: domain.ErrUnauthenticated}
	}
	if !domain.Can(actor, domain.ActionManageCatalog, nil) {
		return domain.Denied("only administrators can %s products", op)
	}
	return nil
}
