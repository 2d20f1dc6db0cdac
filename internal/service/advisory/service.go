package advisory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	defaultBrand    = "Ecosopis"
	defaultLanguage = "pt-BR"
	defaultTimeout  = 30 * time.Second
	redacted        = "[redacted]"
)

var languageNames = map[string]string{
	"pt-BR": "Brazilian Portuguese",
	"pt":    "Portuguese",
	"en":    "English",
	"es":    "Spanish",
}

// Config задаёт персону консультанта и ограничение по времени.
type Config struct {
	Brand    string
	Language string
	Timeout  time.Duration
	// Secrets вычищаются из текста ошибок внешнего сервиса.
	Secrets []string
}

// Service: stateless-прокси к CompletionService с фиксированным системным промптом.
type Service struct {
	completion domain.CompletionService
	prompt     string
	timeout    time.Duration
	secrets    []string
	metrics    *metrics.Metrics
	logger     *log.Entry
	tracer     trace.Tracer
}

// NewService создаёт консультанта.
func NewService(completion domain.CompletionService, cfg Config, m *metrics.Metrics, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "advisory")
	}
	if m == nil {
		m = metrics.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	secrets := make([]string, 0, len(cfg.Secrets))
	for _, s := range cfg.Secrets {
		if strings.TrimSpace(s) != "" {
			secrets = append(secrets, s)
		}
	}

	return &Service{
		completion: completion,
		prompt:     SystemPrompt(cfg.Brand, cfg.Language),
		timeout:    cfg.Timeout,
		secrets:    secrets,
		metrics:    m,
		logger:     logger,
		tracer:     otel.Tracer("storefront/advisory"),
	}
}

// SystemPrompt собирает персону консультанта бренда.
func SystemPrompt(brand, language string) string {
	if strings.TrimSpace(brand) == "" {
		brand = defaultBrand
	}
	if strings.TrimSpace(language) == "" {
		language = defaultLanguage
	}
	name, ok := languageNames[language]
	if !ok {
		name = language
	}
	return fmt.Sprintf(
		"You are a helpful beauty consultant for %[1]s, a natural and vegan cosmetics brand. "+
			"You give advice about skin types and recommend %[1]s products. "+
			"Be friendly, professional and concise. Always answer in %[2]s.",
		brand, name,
	)
}

// Prompt возвращает системный промпт, с которым работает сервис.
func (s *Service) Prompt() string { return s.prompt }

// Advise пересылает сообщение во внешний сервис и возвращает ответ.
func (s *Service) Advise(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", domain.NewValidationError(map[string]string{"message": "is required"})
	}

	ctx, span := s.tracer.Start(ctx, "advisory.Advise")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	reply, err := s.completion.Complete(ctx, s.prompt, message)
	elapsed := time.Since(started)
	if err != nil {
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result = "timeout"
		}
		s.metrics.RecordAdvisory(result, elapsed)

		upstream := s.scrub(err.Error())
		span.SetStatus(codes.Error, upstream)
		s.logger.WithFields(log.Fields{
			"result":   result,
			"duration": elapsed,
		}).WithField("upstream", upstream).Warn("completion failed")
		return "", domain.ServiceUnavailable(upstream)
	}

	s.metrics.RecordAdvisory("ok", elapsed)
	return reply, nil
}

func (s *Service) scrub(text string) string {
	for _, secret := range s.secrets {
		text = strings.ReplaceAll(text, secret, redacted)
	}
	return text
}
