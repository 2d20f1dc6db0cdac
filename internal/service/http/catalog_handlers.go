package httpsvc

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// listProducts: active_only по умолчанию true для всех, кроме администратора.
func (h *Handler) listProducts(c *gin.Context) {
	filter := domain.ProductFilter{
		Channel:    c.Query("channel"),
		Category:   c.Query("category"),
		Search:     c.Query("search"),
		ActiveOnly: !domain.IsAdmin(actor(c)),
	}
	if raw, ok := c.GetQuery("active_only"); ok {
		activeOnly, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeError(c, domain.NewValidationError(map[string]string{"active_only": "must be a boolean"}))
			return
		}
		filter.ActiveOnly = activeOnly
	}

	products, err := h.catalog.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	product, err := h.catalog.Create(c.Request.Context(), actor(c), req.fields())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newProductResponse(product))
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req productRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	product, err := h.catalog.Update(c.Request.Context(), actor(c), c.Param("id"), req.patch())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *Handler) deactivateProduct(c *gin.Context) {
	product, err := h.catalog.Deactivate(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}
