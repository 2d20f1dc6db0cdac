package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

func TestProductRepository_ListKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	now := time.Now().UTC()

	names := []string{"Sérum", "Sabonete", "Hidratante"}
	for i, name := range names {
		product := domain.NewProduct(string(rune('c'-i)), domain.ProductFields{
			Name:     name,
			Category: "Skincare",
			Channels: domain.Channels{"site": domain.Published(i != 1)},
		}, now)
		require.NoError(t, repo.Create(ctx, product))
	}

	all, err := repo.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, product := range all {
		require.Equal(t, names[i], product.Name)
	}

	site, err := repo.List(ctx, domain.ProductFilter{Channel: "site"})
	require.NoError(t, err)
	require.Len(t, site, 2)
	require.Equal(t, "Sérum", site[0].Name)
	require.Equal(t, "Hidratante", site[1].Name)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, count)
}

func TestProductRepository_UpdateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	product := domain.NewProduct("p-1", domain.ProductFields{Name: "Sérum", Category: "Séruns", PriceMinor: 100}, created)
	require.NoError(t, repo.Create(ctx, product))

	product.PriceMinor = 200
	product.Active = false
	product.CreatedAt = time.Now()
	require.NoError(t, repo.Update(ctx, product))

	stored, err := repo.Get(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, int64(200), stored.PriceMinor)
	require.False(t, stored.Active)
	require.True(t, stored.CreatedAt.Equal(created))

	missing := product
	missing.ID = "p-2"
	require.True(t, errors.Is(repo.Update(ctx, missing), domain.ErrNotFound))

	_, err = repo.Get(ctx, "p-2")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}
