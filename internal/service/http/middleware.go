package httpsvc

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
)

const (
	headerRequestID = "X-Request-Id"
	ctxRequestID    = "request_id"
	ctxLogger       = "logger"
	ctxIdentity     = "identity"
)

func (h *Handler) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(headerRequestID, reqID)
		c.Set(ctxRequestID, reqID)
		c.Set(ctxLogger, h.logger.WithField("request_id", reqID))
		c.Next()
	}
}

func (h *Handler) requestLogger(c *gin.Context) *log.Entry {
	if v, ok := c.Get(ctxLogger); ok {
		if entry, ok := v.(*log.Entry); ok {
			return entry
		}
	}
	return h.logger
}

func (h *Handler) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := h.requestLogger(c).WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"route":   c.FullPath(),
			"status":  status,
			"latency": time.Since(start),
			"client":  c.ClientIP(),
			"bytes":   c.Writer.Size(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}

		switch {
		case status >= http.StatusInternalServerError:
			entry.Error("http request")
		case status >= http.StatusBadRequest:
			entry.Warn("http request")
		default:
			entry.Info("http request")
		}
	}
}

func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		h.metrics.RecordHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}

// bearerToken достаёт токен из Authorization или из cookie сессии.
func (h *Handler) bearerToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(h.cookie.Name); err == nil {
		return cookie
	}
	return ""
}

// identify распознаёт сессию, если токен передан. Недействительный токен на
// публичных маршрутах не ошибка: запрос продолжается анонимно.
func (h *Handler) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		id, err := h.identity.Resolve(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(ctxIdentity, id)
		case errors.Is(err, domain.ErrUnauthenticated):
			h.requestLogger(c).Debug("ignoring invalid session token")
		default:
			h.writeError(c, err)
			return
		}
		c.Next()
	}
}

func (h *Handler) requireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := currentIdentity(c); !ok {
			h.writeError(c, &domain.Error{Kind: domain.ErrUnauthenticated})
			return
		}
		c.Next()
	}
}

func currentIdentity(c *gin.Context) (identity.Identity, bool) {
	v, ok := c.Get(ctxIdentity)
	if !ok {
		return identity.Identity{}, false
	}
	id, ok := v.(identity.Identity)
	return id, ok
}

// actor возвращает аккаунт текущей сессии или nil для анонимного запроса.
func actor(c *gin.Context) *domain.Account {
	id, ok := currentIdentity(c)
	if !ok {
		return nil
	}
	account := id.Account
	return &account
}
