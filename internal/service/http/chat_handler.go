package httpsvc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// chat сохраняет исходную форму ответа: {"response": ...} либо {"error": ...}.
func (h *Handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	reply, err := h.advisor.Advise(c.Request.Context(), req.Message)
	if err != nil {
		status := statusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			h.requestLogger(c).WithError(err).Error("advisory request failed")
			msg = "failed to generate a response"
		}
		if errors.Is(err, domain.ErrValidation) {
			msg = "message is required"
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"response": reply})
}
