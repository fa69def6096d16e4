package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Services struct {
	Orders      OrderService
	Cart        CartService
	Catalog     ProductCatalog
	Images      ImageServer
	Flags       FlagAdmin
	Settlements SettlementHistory
}

type RouterOptions struct {
	// SettleOnRead makes GET /orders/{id} settle pending payments.
	SettleOnRead bool
	// RequestTimeout bounds the whole request; HandlerTimeout bounds the
	// store calls made by a handler.
	RequestTimeout time.Duration
	HandlerTimeout time.Duration
}

func NewRouter(svc Services, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}
	if opts.HandlerTimeout <= 0 {
		opts.HandlerTimeout = 5 * time.Second
	}

	ordersHandler := NewOrdersHandler(svc.Orders, opts.SettleOnRead, opts.HandlerTimeout)
	cartHandler := NewCartHandler(svc.Cart, opts.HandlerTimeout)
	productsHandler := NewProductsHandler(svc.Catalog, svc.Images, opts.HandlerTimeout)
	adminHandler := NewAdminHandler(svc.Orders, svc.Catalog, svc.Settlements, opts.HandlerTimeout)
	chaosHandler := NewChaosHandler(svc.Flags, opts.HandlerTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(opts.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/images/products/{filename}", productsHandler.ServeImage)

	r.Group(func(r chi.Router) {
		r.Use(SessionMiddleware)

		r.Get("/products", productsHandler.ListProducts)
		r.Get("/products/{id}", productsHandler.GetProduct)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/add", cartHandler.AddItem)
			r.Post("/update", cartHandler.UpdateQuantities)
			r.Post("/remove", cartHandler.RemoveItem)
			r.Post("/clear", cartHandler.ClearCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", ordersHandler.ListOrders)
			r.Post("/checkout", ordersHandler.Checkout)
			r.Get("/{id}", ordersHandler.GetOrder)
			r.Post("/{id}/pay", ordersHandler.SubmitPayment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly)

			r.Get("/chaos", chaosHandler.GetFlags)
			r.Post("/chaos", chaosHandler.SetFlags)

			r.Get("/orders", adminHandler.ListOrders)
			r.Get("/orders/{id}", adminHandler.GetOrder)
			r.Post("/orders/{id}/delete", adminHandler.DeleteOrder)
			r.Post("/orders/{id}/cancel", adminHandler.CancelOrder)
			r.Get("/orders/{id}/settlements", adminHandler.ListSettlements)

			r.Post("/products/{id}/price", adminHandler.UpdatePrice)
		})
	})

	return otelhttp.NewHandler(r, "chaos-shop",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }),
	)
}
