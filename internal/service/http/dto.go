package httpsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/ledger"
)

// formatMinor переводит сумму в минимальных единицах в строку с двумя знаками.
func formatMinor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

type productRequest struct {
	Name           *string          `json:"name"`
	Description    *string          `json:"description"`
	Ingredients    *string          `json:"ingredients"`
	Benefits       *string          `json:"benefits"`
	Tags           *[]string        `json:"tags"`
	Price          *int64           `json:"price"`
	Channels       *domain.Channels `json:"channels"`
	ImageURL       *string          `json:"image_url"`
	Category       *string          `json:"category"`
	IsSubscription *bool            `json:"is_subscription"`
	Active         *bool            `json:"active"`
}

func (r productRequest) fields() domain.ProductFields {
	var f domain.ProductFields
	if r.Name != nil {
		f.Name = *r.Name
	}
	if r.Description != nil {
		f.Description = *r.Description
	}
	if r.Ingredients != nil {
		f.Ingredients = *r.Ingredients
	}
	if r.Benefits != nil {
		f.Benefits = *r.Benefits
	}
	if r.Tags != nil {
		f.Tags = *r.Tags
	}
	if r.Price != nil {
		f.PriceMinor = *r.Price
	}
	if r.Channels != nil {
		f.Channels = *r.Channels
	}
	if r.ImageURL != nil {
		f.ImageURL = *r.ImageURL
	}
	if r.Category != nil {
		f.Category = *r.Category
	}
	if r.IsSubscription != nil {
		f.IsSubscription = *r.IsSubscription
	}
	return f
}

func (r productRequest) patch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:           r.Name,
		Description:    r.Description,
		Ingredients:    r.Ingredients,
		Benefits:       r.Benefits,
		Tags:           r.Tags,
		PriceMinor:     r.Price,
		Channels:       r.Channels,
		ImageURL:       r.ImageURL,
		Category:       r.Category,
		IsSubscription: r.IsSubscription,
		Active:         r.Active,
	}
}

type productResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Ingredients    string          `json:"ingredients"`
	Benefits       string          `json:"benefits"`
	Tags           []string        `json:"tags"`
	Price          int64           `json:"price"`
	PriceDisplay   string          `json:"price_display"`
	Channels       domain.Channels `json:"channels"`
	ImageURL       string          `json:"image_url,omitempty"`
	Category       string          `json:"category"`
	IsSubscription bool            `json:"is_subscription"`
	Active         bool            `json:"active"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func newProductResponse(p domain.Product) productResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	channels := p.Channels
	if channels == nil {
		channels = domain.Channels{}
	}
	return productResponse{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Ingredients:    p.Ingredients,
		Benefits:       p.Benefits,
		Tags:           tags,
		Price:          p.PriceMinor,
		PriceDisplay:   formatMinor(p.PriceMinor),
		Channels:       channels,
		ImageURL:       p.ImageURL,
		Category:       p.Category,
		IsSubscription: p.IsSubscription,
		Active:         p.Active,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

// createOrderRequest: владелец берётся из сессии, переданный клиентом user_id игнорируется.
type createOrderRequest struct {
	Items   []orderItemRequest `json:"items"`
	CEP     string             `json:"cep"`
	Address string             `json:"address"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type orderLineResponse struct {
	ID               string  `json:"id"`
	ProductID        *string `json:"product_id"`
	ProductName      string  `json:"product_name"`
	Quantity         int32   `json:"quantity"`
	UnitPrice        int64   `json:"unit_price"`
	UnitPriceDisplay string  `json:"unit_price_display"`
	Subtotal         int64   `json:"subtotal"`
}

type timelineResponse struct {
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

type orderResponse struct {
	ID           string              `json:"id"`
	AccountID    string              `json:"account_id"`
	Total        int64               `json:"total"`
	TotalDisplay string              `json:"total_display"`
	Status       domain.OrderStatus  `json:"status"`
	CEP          string              `json:"cep,omitempty"`
	Address      string              `json:"address,omitempty"`
	Lines        []orderLineResponse `json:"items"`
	History      []timelineResponse  `json:"history,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

func newOrderResponse(o domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, line := range o.Lines {
		lines = append(lines, orderLineResponse{
			ID:               line.ID,
			ProductID:        line.ProductID,
			ProductName:      line.ProductName,
			Quantity:         line.Quantity,
			UnitPrice:        line.UnitPriceMinor,
			UnitPriceDisplay: formatMinor(line.UnitPriceMinor),
			Subtotal:         line.Subtotal(),
		})
	}
	return orderResponse{
		ID:           o.ID,
		AccountID:    o.AccountID,
		Total:        o.TotalMinor,
		TotalDisplay: formatMinor(o.TotalMinor),
		Status:       o.Status,
		CEP:          o.PostalCode,
		Address:      o.Address,
		Lines:        lines,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}

func newOrderDetailsResponse(d ledger.Details) orderResponse {
	resp := newOrderResponse(d.Order)
	resp.History = make([]timelineResponse, 0, len(d.History))
	for _, ev := range d.History {
		resp.History = append(resp.History, timelineResponse{Type: ev.Type, Reason: ev.Reason, Occurred: ev.Occurred})
	}
	return resp
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (r registerRequest) input() identity.RegisterInput {
	return identity.RegisterInput{Username: r.Username, Password: r.Password, Email: r.Email, Phone: r.Phone}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type profileRequest struct {
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	SkinType *string `json:"skin_type"`
}

type profileResponse struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Email    string      `json:"email,omitempty"`
	Role     domain.Role `json:"role"`
	Phone    string      `json:"phone,omitempty"`
	SkinType string      `json:"skin_type,omitempty"`
}

func newProfileResponse(p domain.Profile) profileResponse {
	return profileResponse{
		ID:       p.ID,
		Username: p.Username,
		Email:    p.Email,
		Role:     p.Role,
		Phone:    p.Phone,
		SkinType: p.SkinType,
	}
}

type loginResponse struct {
	Account   profileResponse `json:"account"`
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
}

type chatRequest struct {
	Message string `json:"message"`
}
