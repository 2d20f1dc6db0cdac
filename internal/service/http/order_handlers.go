package httpsvc

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	lines := make([]domain.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.LineRequest{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.ledger.Create(c.Request.Context(), actor(c), lines, req.CEP, req.Address)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newOrderResponse(order))
}

func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.ledger.List(c.Request.Context(), actor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderResponse(o))
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) getOrder(c *gin.Context) {
	details, err := h.ledger.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderDetailsResponse(details))
}

func (h *Handler) transitionOrder(c *gin.Context) {
	var req transitionRequest
	if err := bindJSON(c, &req); err != nil {
		h.writeError(c, err)
		return
	}

	order, err := h.ledger.Transition(c.Request.Context(), actor(c), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}
