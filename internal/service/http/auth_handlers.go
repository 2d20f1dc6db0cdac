package httpsvc

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	profile, err := h.identity.Register(c.Request.Context(), req.input())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProfileResponse(profile))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	session, err := h.identity.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	maxAge := int(time.Until(session.ExpiresAt).Seconds())
	h.setSessionCookie(c, session.Token, maxAge)
	c.JSON(http.StatusOK, loginResponse{
		Account:   newProfileResponse(session.Profile),
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *Handler) logout(c *gin.Context) {
	id, _ := currentIdentity(c)
	if err := h.identity.EndSession(c.Request.Context(), id); err != nil {
		h.writeError(c, err)
		return
	}
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *Handler) me(c *gin.Context) {
	id, _ := currentIdentity(c)
	profile, err := h.identity.CurrentAccount(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

func (h *Handler) updateMe(c *gin.Context) {
	var req profileRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	id, _ := currentIdentity(c)
	profile, err := h.identity.UpdateProfile(c.Request.Context(), id, domain.ProfilePatch{
		Email:    req.Email,
		Phone:    req.Phone,
		SkinType: req.SkinType,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProfileResponse(profile))
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", h.cookie.Domain, h.cookie.Secure, true)
}
