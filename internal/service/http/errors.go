package httpsvc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type errorResponse struct {
	Error     string            `json:"error"`
	Kind      string            `json:"kind"`
	Fields    map[string]string `json:"fields,omitempty"`
	Current   string            `json:"current,omitempty"`
	Requested string            `json:"requested,omitempty"`
}

// statusFor отображает вид доменной ошибки в HTTP-статус.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrDuplicateUsername),
		errors.Is(err, domain.ErrProductUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.requestLogger(c).WithError(err).Error("request failed")
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal server error", Kind: "internal"})
		return
	}

	body := errorResponse{Error: err.Error(), Kind: domain.KindName(err)}
	if errors.Is(err, domain.ErrVersionConflict) {
		body.Kind = "conflict"
		body.Error = "order was modified concurrently, retry the request"
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		body.Fields = derr.Fields
		body.Current = string(derr.Current)
		body.Requested = string(derr.Requested)
		if derr.Kind == domain.ErrUnauthenticated && derr.Message == "" {
			body.Error = "authentication required"
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// bindJSON декодирует тело запроса; ошибки разбора превращаются в ValidationError.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			return derr
		}
		return domain.NewValidationError(map[string]string{"body": "must be a valid JSON object"})
	}
	return nil
}
