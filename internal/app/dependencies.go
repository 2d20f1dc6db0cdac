package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/llm/openai"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/advisory"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/ledger"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Dependencies содержит собранный граф сервисов витрины.
type Dependencies struct {
	Catalog  *catalog.Service
	Ledger   *ledger.Service
	Identity *identity.Service
	Advisor  *advisory.Service
	Health   *healthcheck.Handler
	Metrics  *metrics.Metrics
	Logger   *log.Entry

	storage  *storage
	sessions *sessions
}

// NewDependencies открывает хранилища выбранных драйверов и собирает сервисы.
// Демо-каталог засевается вне production, администратор создаётся из настроек sessions.
func NewDependencies(ctx context.Context, cfg Config, m *metrics.Metrics, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.New().WithField("component", "app")
	}
	if m == nil {
		m = metrics.Default()
	}

	secret, err := jwtSecret(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sess, err := initSessions(ctx, cfg, logger)
	if err != nil {
		_ = store.close()
		return nil, err
	}

	deps := &Dependencies{
		Metrics:  m,
		Logger:   logger,
		storage:  store,
		sessions: sess,
	}

	deps.Catalog = catalog.NewService(store.products, m, logger.WithField("layer", "catalog"))

	ledgerOptions := []ledger.Option{
		ledger.WithMetrics(m),
		ledger.WithLogger(logger.WithField("layer", "ledger")),
	}
	if cfg.KafkaEnabled() {
		ledgerOptions = append(ledgerOptions, ledger.WithOutbox(store.outbox))
	}
	deps.Ledger = ledger.NewService(store.orders, deps.Catalog, store.timeline, ledgerOptions...)

	deps.Identity, err = identity.NewService(store.accounts, sess.store, identity.Config{
		Secret:     secret,
		Issuer:     cfg.Sessions.Issuer,
		TokenTTL:   cfg.Sessions.TTL,
		BcryptCost: cfg.Sessions.BcryptCost,
	}, m, logger.WithField("layer", "identity"))
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("init identity: %w", err)
	}

	completion := openai.NewClient(openai.Config{
		APIKey:  cfg.Advisory.APIKey,
		BaseURL: cfg.Advisory.BaseURL,
		Model:   cfg.Advisory.Model,
	}, logger.WithField("layer", "completion"))
	deps.Advisor = advisory.NewService(completion, advisory.Config{
		Brand:    cfg.Advisory.Brand,
		Language: cfg.Advisory.Language,
		Timeout:  cfg.Advisory.Timeout,
		Secrets:  []string{cfg.Advisory.APIKey},
	}, m, logger.WithField("layer", "advisory"))

	if err := deps.bootstrap(ctx, cfg); err != nil {
		_ = deps.Close()
		return nil, err
	}

	deps.Health = newHealthHandler(cfg, store, sess)
	return deps, nil
}

func (d *Dependencies) bootstrap(ctx context.Context, cfg Config) error {
	if cfg.Catalog.Seed && !cfg.Production() {
		inserted, err := d.Catalog.Seed(ctx)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		if inserted > 0 {
			d.Logger.WithField("products", inserted).Info("demo catalog seeded")
		}
	}

	if _, err := d.Identity.BootstrapAdmin(ctx, cfg.Sessions.AdminUsername, cfg.Sessions.AdminPassword); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	return nil
}

// OutboxStore возвращает репозиторий outbox для фонового воркера.
func (d *Dependencies) OutboxStore() domain.OutboxRepository {
	return d.storage.outbox
}

// Close освобождает подключения к хранилищам.
func (d *Dependencies) Close() error {
	var errs []error
	if d.sessions != nil {
		if err := d.sessions.close(); err != nil {
			errs = append(errs, fmt.Errorf("close sessions: %w", err))
		}
	}
	if d.storage != nil {
		if err := d.storage.close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

func newHealthHandler(cfg Config, store *storage, sess *sessions) *healthcheck.Handler {
	h := healthcheck.NewHandler(version.GetVersion())
	h.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", store.ping))
	h.RegisterChecker("sessions", healthcheck.NewSimpleChecker("sessions", sess.ping))
	h.RegisterChecker("advisory", healthcheck.NewOptionalChecker("advisory", func(context.Context) error {
		if strings.TrimSpace(cfg.Advisory.APIKey) == "" {
			return errors.New("completion api key is not configured")
		}
		return nil
	}))
	return h
}

// jwtSecret возвращает секрет подписи токенов. Вне production пустой секрет
// заменяется случайным: выданные токены перестают действовать после рестарта.
func jwtSecret(cfg Config, logger *log.Entry) (string, error) {
	if secret := strings.TrimSpace(cfg.Sessions.JWTSecret); secret != "" {
		return secret, nil
	}
	if cfg.Production() {
		return "", errors.New("sessions.jwt_secret is required in production")
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	logger.Warn("sessions.jwt_secret is empty, using a random secret for this process")
	return hex.EncodeToString(buf), nil
}
