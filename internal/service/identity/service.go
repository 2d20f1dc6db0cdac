package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultIssuer   = "storefront"
	defaultTokenTTL = 24 * time.Hour
)

// Config задаёт параметры выпуска токенов и хеширования паролей.
type Config struct {
	Secret     string
	Issuer     string
	TokenTTL   time.Duration
	BcryptCost int
}

// Identity: аутентифицированный субъект запроса.
type Identity struct {
	SessionID string
	Account   domain.Account
}

// Session: результат успешного входа.
type Session struct {
	Token     string
	Profile   domain.Profile
	ExpiresAt time.Time
}

// RegisterInput: данные для регистрации покупателя.
type RegisterInput struct {
	Username string
	Password string
	Email    string
	Phone    string
}

type claims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// Service: регистрация, вход, выход и профиль.
type Service struct {
	accounts  domain.AccountRepository
	sessions  domain.SessionStore
	cfg       Config
	dummyHash []byte
	metrics   *metrics.Metrics
	logger    *log.Entry
	now       func() time.Time
}

// NewService создаёт сервис идентификации. Пустой секрет подписи недопустим.
func NewService(accounts domain.AccountRepository, sessions domain.SessionStore, cfg Config, m *metrics.Metrics, logger *log.Entry) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("identity: token secret is required")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIssuer
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("identity: bcrypt cost %d out of range", cfg.BcryptCost)
	}
	if logger == nil {
		logger = log.New().WithField("component", "identity")
	}
	if m == nil {
		m = metrics.Default()
	}

	// Хеш для выравнивания времени ответа при неизвестном пользователе.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("identity: prepare dummy hash: %w", err)
	}

	return &Service{
		accounts:  accounts,
		sessions:  sessions,
		cfg:       cfg,
		dummyHash: dummy,
		metrics:   m,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register создаёт аккаунт покупателя.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.Profile, error) {
	profile, err := s.register(ctx, in)
	s.metrics.RecordAuth("register", resultOf(err))
	return profile, err
}

func (s *Service) register(ctx context.Context, in RegisterInput) (domain.Profile, error) {
	username := strings.TrimSpace(in.Username)
	fields := map[string]string{}
	if username == "" {
		fields["username"] = "is required"
	}
	if in.Password == "" {
		fields["password"] = "is required"
	} else if len(in.Password) > 72 {
		fields["password"] = "must be at most 72 bytes"
	}
	patch := domain.ProfilePatch{Email: &in.Email, Phone: &in.Phone}
	if err := patch.Validate(); err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			for k, v := range derr.Fields {
				fields[k] = v
			}
		}
	}
	if len(fields) > 0 {
		return domain.Profile{}, domain.NewValidationError(fields)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	account := domain.Account{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleCustomer,
		CreatedAt:    s.now(),
	}
	patch.Apply(&account)

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, domain.ErrDuplicateUsername) {
			return domain.Profile{}, &domain.Error{
				Kind:    domain.ErrDuplicateUsername,
				Message: fmt.Sprintf("username %q is already taken", username),
			}
		}
		return domain.Profile{}, fmt.Errorf("create account: %w", err)
	}

	s.logger.WithField("account_id", account.ID).Info("account registered")
	return account.Profile(), nil
}

// Authenticate проверяет пароль и открывает сессию. Неизвестный пользователь
// и неверный пароль неразличимы для клиента.
func (s *Service) Authenticate(ctx context.Context, username, password string) (Session, error) {
	session, err := s.authenticate(ctx, username, password)
	s.metrics.RecordAuth("login", resultOf(err))
	return session, err
}

func (s *Service) authenticate(ctx context.Context, username, password string) (Session, error) {
	invalid := &domain.Error{Kind: domain.ErrInvalidCredentials, Message: "invalid username or password"}

	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return Session{}, invalid
		}
		return Session{}, fmt.Errorf("load account: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)) != nil {
		return Session{}, invalid
	}

	now := s.now()
	record := domain.Session{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		ExpiresAt: now.Add(s.cfg.TokenTTL).Truncate(time.Second),
	}
	if err := s.sessions.Put(ctx, record); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}

	token, err := s.sign(account, record, now)
	if err != nil {
		return Session{}, err
	}

	s.logger.WithFields(log.Fields{
		"account_id": account.ID,
		"session_id": record.ID,
	}).Info("session opened")
	return Session{Token: token, Profile: account.Profile(), ExpiresAt: record.ExpiresAt}, nil
}

func (s *Service) sign(account domain.Account, session domain.Session, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		SessionID: session.ID,
		Role:      string(account.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve проверяет подпись и срок токена, затем наличие сессии в хранилище.
func (s *Service) Resolve(ctx context.Context, token string) (Identity, error) {
	unauthenticated := &domain.Error{Kind: domain.ErrUnauthenticated, Message: "invalid or expired session"}
	if token == "" {
		return Identity{}, &domain.Error{Kind: domain.ErrUnauthenticated}
	}

	parsed := &claims{}
	_, err := jwt.ParseWithClaims(token, parsed, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.WithError(err).Debug("token rejected")
		return Identity{}, unauthenticated
	}

	session, err := s.sessions.Get(ctx, parsed.SessionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Identity{}, unauthenticated
		}
		return Identity{}, fmt.Errorf("load session: %w", err)
	}
	if session.AccountID != parsed.Subject {
		return Identity{}, unauthenticated
	}

	account, err := s.accounts.Get(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Identity{}, unauthenticated
		}
		return Identity{}, fmt.Errorf("load account: %w", err)
	}
	return Identity{SessionID: session.ID, Account: account}, nil
}

// EndSession удаляет сессию; повторный вызов безопасен.
func (s *Service) EndSession(ctx context.Context, id Identity) error {
	if id.SessionID == "" {
		return &domain.Error{Kind: domain.ErrUnauthenticated}
	}
	if err := s.sessions.Delete(ctx, id.SessionID); err != nil {
		s.metrics.RecordAuth("logout", "error")
		return fmt.Errorf("delete session: %w", err)
	}
	s.metrics.RecordAuth("logout", "ok")
	s.logger.WithField("session_id", id.SessionID).Info("session closed")
	return nil
}

// CurrentAccount возвращает актуальный профиль без учётных данных.
func (s *Service) CurrentAccount(ctx context.Context, id Identity) (domain.Profile, error) {
	account, err := s.accounts.Get(ctx, id.Account.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Profile{}, &domain.Error{Kind: domain.ErrUnauthenticated}
		}
		return domain.Profile{}, fmt.Errorf("load account: %w", err)
	}
	return account.Profile(), nil
}

// UpdateProfile меняет e-mail, телефон и тип кожи.
func (s *Service) UpdateProfile(ctx context.Context, id Identity, patch domain.ProfilePatch) (domain.Profile, error) {
	if err := patch.Validate(); err != nil {
		return domain.Profile{}, err
	}

	account, err := s.accounts.Get(ctx, id.Account.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Profile{}, &domain.Error{Kind: domain.ErrUnauthenticated}
		}
		return domain.Profile{}, fmt.Errorf("load account: %w", err)
	}

	patch.Apply(&account)
	if err := s.accounts.Update(ctx, account); err != nil {
		return domain.Profile{}, fmt.Errorf("update account: %w", err)
	}
	return account.Profile(), nil
}

func resultOf(err error) string {
	if err == nil {
		return "ok"
	}
	return domain.KindName(err)
}
