package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DemoProducts: демонстрационный каталог для непроизводственных окружений.
func DemoProducts() []domain.ProductFields {
	return []domain.ProductFields{
		{
			Name:        "Sabonete de Argila Verde",
			Description: "Limpeza profunda para peles oleosas. Remove impurezas e toxinas.",
			Ingredients: "Argila Verde, Óleo de Melaleuca, Óleo de Coco",
			Benefits:    "Controle de oleosidade, Detox, Anti-acne",
			Tags:        []string{"oleosa", "acne", "detox"},
			PriceMinor:  2990,
			Category:    "Sabonetes",
			Channels: domain.Channels{
				"site":   domain.Published(true),
				"ml":     domain.ExternalListing("https://mercadolivre.com.br"),
				"shopee": domain.ExternalListing("https://shopee.com.br"),
			},
			ImageURL: "https://images.unsplash.com/photo-1600857544200-b2f666a9a2ec?w=800",
		},
		{
			Name:        "Sérum Vitamina C 20%",
			Description: "Sérum iluminador e anti-idade para todos os tipos de pele.",
			Ingredients: "Vitamina C, Ácido Hialurônico, Vitamina E",
			Benefits:    "Iluminador, Anti-idade, Hidratação",
			Tags:        []string{"todos", "anti-idade", "iluminador"},
			PriceMinor:  8990,
			Category:    "Séruns",
			Channels:    domain.Channels{"site": domain.Published(true)},
			ImageURL:    "https://images.unsplash.com/photo-1620916566398-39f1143ab7be?w=800",
		},
		{
			Name:           "Box Surpresa Ecosopis",
			Description:    "Caixa de assinatura mensal com 3 produtos selecionados para o seu tipo de pele.",
			Ingredients:    "Variados",
			Benefits:       "Descoberta, Economia, Praticidade",
			Tags:           []string{"assinatura", "box"},
			PriceMinor:     9990,
			Category:       "Assinatura",
			Channels:       domain.Channels{"site": domain.Published(true)},
			ImageURL:       "https://images.unsplash.com/photo-1616401784845-180886ba9ca2?w=800",
			IsSubscription: true,
		},
	}
}

// Seed заполняет пустой каталог демонстрационными товарами.
// Возвращает число добавленных товаров; непустой каталог не трогает.
func (s *Service) Seed(ctx context.Context) (int, error) {
	count, err := s.products.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	s.logger.Info("seeding demo catalog")
	inserted := 0
	for _, fields := range DemoProducts() {
		product := domain.NewProduct(uuid.NewString(), fields, s.now())
		if err := product.Validate(); err != nil {
			return inserted, fmt.Errorf("seed product %q: %w", fields.Name, err)
		}
		if err := s.products.Create(ctx, product); err != nil {
			return inserted, fmt.Errorf("seed product %q: %w", fields.Name, err)
		}
		inserted++
	}
	return inserted, nil
}
