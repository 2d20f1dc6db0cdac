package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	"github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// storage объединяет репозитории выбранного драйвера.
type storage struct {
	products domain.ProductRepository
	orders   domain.OrderRepository
	accounts domain.AccountRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository

	ping  func(ctx context.Context) error
	close func() error
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	switch cfg.Storage.Driver {
	case StorageDriverPostgres:
		store, err := postgres.OpenWithPool(ctx, cfg.Storage.DSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init postgres storage: %w", err)
		}

		if cfg.Storage.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
		}
		state, err := store.MigrationStatus(ctx)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("read migration status: %w", err)
		}
		if !state.UpToDate() {
			_ = store.Close()
			return nil, fmt.Errorf("postgres schema is behind: pending migrations %v", state.Pending)
		}

		logger.WithFields(log.Fields{
			"driver":         StorageDriverPostgres,
			"schema_version": state.Version,
		}).Info("storage initialized")

		return &storage{
			products: postgres.NewProductRepository(store),
			orders:   postgres.NewOrderRepository(store),
			accounts: postgres.NewAccountRepository(store),
			timeline: postgres.NewTimelineRepository(store),
			outbox:   postgres.NewOutboxRepository(store),
			ping:     store.Ping,
			close:    store.Close,
		}, nil

	case StorageDriverMemory:
		logger.WithField("driver", StorageDriverMemory).Info("storage initialized")
		outbox := memory.NewOutboxRepository()
		return &storage{
			products: memory.NewProductRepository(),
			orders:   memory.NewOrderRepositoryWithOutbox(outbox),
			accounts: memory.NewAccountRepository(),
			timeline: memory.NewTimelineRepository(),
			outbox:   outbox,
			ping:     func(context.Context) error { return nil },
			close:    func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// sessions: хранилище сессий вместе с его проверкой и закрытием.
type sessions struct {
	store domain.SessionStore
	ping  func(ctx context.Context) error
	close func() error
}

func initSessions(ctx context.Context, cfg Config, logger *log.Entry) (*sessions, error) {
	switch cfg.Sessions.Driver {
	case SessionDriverRedis:
		client, err := redis.NewClient(ctx, cfg.Sessions.RedisAddr, cfg.Sessions.RedisPassword, cfg.Sessions.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init redis sessions: %w", err)
		}
		store := redis.NewSessionStore(client)
		logger.WithFields(log.Fields{
			"driver": SessionDriverRedis,
			"addr":   cfg.Sessions.RedisAddr,
		}).Info("session store initialized")
		return &sessions{store: store, ping: store.Ping, close: client.Close}, nil

	case SessionDriverMemory:
		logger.WithField("driver", SessionDriverMemory).Info("session store initialized")
		return &sessions{
			store: memory.NewSessionStore(),
			ping:  func(context.Context) error { return nil },
			close: func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unsupported session driver %q", cfg.Sessions.Driver)
	}
}
