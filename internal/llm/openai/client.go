package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// DefaultModel: модель по умолчанию для консультаций.
const DefaultModel = goopenai.GPT4o

// Config описывает подключение к OpenAI-совместимому API.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// HTTPTimeout ограничивает отдельный HTTP-запрос; общий дедлайн задаёт ctx.
	HTTPTimeout time.Duration
}

// Client реализует domain.CompletionService поверх go-openai.
type Client struct {
	api    *goopenai.Client
	model  string
	apiKey string
	logger *log.Entry
}

// NewClient создаёт клиент. Отсутствие ключа не ошибка: о нём сообщит первый Complete.
func NewClient(cfg Config, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "openai-client")
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPTimeout > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	return &Client{
		api:    goopenai.NewClientWithConfig(apiCfg),
		model:  model,
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// Complete отправляет системный промпт и сообщение пользователя, возвращает текст первого варианта.
func (c *Client) Complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", domain.ErrCompletionNotConfigured
	}

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: userMessage},
		},
	})
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			c.logger.WithFields(log.Fields{
				"status": apiErr.HTTPStatusCode,
				"model":  c.model,
			}).Warn("completion rejected by upstream")
			return "", fmt.Errorf("completion upstream status %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("completion request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

var _ domain.CompletionService = (*Client)(nil)
