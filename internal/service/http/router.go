package httpsvc

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/identity"
	"github.com/vladislavdragonenkov/storefront/internal/service/ledger"
)

// Catalog: операции каталога, нужные транспорту.
type Catalog interface {
	List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
	Create(ctx context.Context, actor *domain.Account, fields domain.ProductFields) (domain.Product, error)
	Update(ctx context.Context, actor *domain.Account, id string, patch domain.ProductPatch) (domain.Product, error)
	Deactivate(ctx context.Context, actor *domain.Account, id string) (domain.Product, error)
}

// Ledger: операции журнала заказов.
type Ledger interface {
	Create(ctx context.Context, requester *domain.Account, lines []domain.LineRequest, postalCode, address string) (domain.Order, error)
	Get(ctx context.Context, requester *domain.Account, id string) (ledger.Details, error)
	List(ctx context.Context, requester *domain.Account) ([]domain.Order, error)
	Transition(ctx context.Context, requester *domain.Account, id string, target domain.OrderStatus) (domain.Order, error)
}

// Identity: регистрация, сессии и профиль.
type Identity interface {
	Register(ctx context.Context, in identity.RegisterInput) (domain.Profile, error)
	Authenticate(ctx context.Context, username, password string) (identity.Session, error)
	Resolve(ctx context.Context, token string) (identity.Identity, error)
	EndSession(ctx context.Context, id identity.Identity) error
	CurrentAccount(ctx context.Context, id identity.Identity) (domain.Profile, error)
	UpdateProfile(ctx context.Context, id identity.Identity, patch domain.ProfilePatch) (domain.Profile, error)
}

// Advisor: консультант по уходу за кожей.
type Advisor interface {
	Advise(ctx context.Context, message string) (string, error)
}

// CookieConfig задаёт параметры cookie с токеном сессии.
type CookieConfig struct {
	Name   string
	Secure bool
	Domain string
}

// Deps: зависимости HTTP-слоя.
type Deps struct {
	Catalog  Catalog
	Ledger   Ledger
	Identity Identity
	Advisor  Advisor
	Metrics  *metrics.Metrics
	Logger   *log.Entry
	Cookie   CookieConfig
}

// Handler обслуживает REST API витрины.
type Handler struct {
	catalog  Catalog
	ledger   Ledger
	identity Identity
	advisor  Advisor
	metrics  *metrics.Metrics
	logger   *log.Entry
	cookie   CookieConfig
}

const defaultCookieName = "storefront_session"

// NewRouter собирает gin.Engine со всеми маршрутами /api.
func NewRouter(deps Deps) *gin.Engine {
	h := &Handler{
		catalog:  deps.Catalog,
		ledger:   deps.Ledger,
		identity: deps.Identity,
		advisor:  deps.Advisor,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		cookie:   deps.Cookie,
	}
	if h.logger == nil {
		h.logger = log.New().WithField("component", "http")
	}
	if h.metrics == nil {
		h.metrics = metrics.Default()
	}
	if h.cookie.Name == "" {
		h.cookie.Name = defaultCookieName
	}

	r := gin.New()
	r.Use(gin.Recovery(), h.requestContext(), h.accessLog(), h.observe())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "route not found", Kind: "not_found"})
	})

	api := r.Group("/api", h.identify())
	{
		api.GET("/products", h.listProducts)
		api.GET("/products/:id", h.getProduct)
		api.POST("/products", h.requireSession(), h.createProduct)
		api.PUT("/products/:id", h.requireSession(), h.updateProduct)
		api.PATCH("/products/:id", h.requireSession(), h.updateProduct)
		api.POST("/products/:id/deactivate", h.requireSession(), h.deactivateProduct)

		orders := api.Group("/orders", h.requireSession())
		orders.POST("", h.createOrder)
		orders.GET("", h.listOrders)
		orders.GET("/:id", h.getOrder)
		orders.POST("/:id/transition", h.transitionOrder)

		auth := api.Group("/auth")
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/logout", h.requireSession(), h.logout)
		auth.GET("/me", h.requireSession(), h.me)
		auth.PATCH("/me", h.requireSession(), h.updateMe)

		api.POST("/chat", h.chat)
	}

	return r
}

// NewServer оборачивает роутер в http.Server с таймаутами.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
