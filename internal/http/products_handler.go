package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/chaos-shop/internal/catalog"
	"github.com/fjod/chaos-shop/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductsHandler struct {
	catalog ProductCatalog
	images  ImageServer
	timeout time.Duration
}

func NewProductsHandler(c ProductCatalog, images ImageServer, timeout time.Duration) *ProductsHandler {
	return &ProductsHandler{
		catalog: c,
		images:  images,
		timeout: timeout,
	}
}

type ProductSummaryDTO struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Gender   string          `json:"gender"`
	Season   string          `json:"season"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url,omitempty"`
}

type ProductDetailDTO struct {
	*domain.Product
	MainImage    string   `json:"main_image,omitempty"`
	DetailImages []string `json:"detail_images"`
}

func toSummaryDTO(p *domain.Product) ProductSummaryDTO {
	dto := ProductSummaryDTO{
		ID:     p.ID,
		Name:   p.Name,
		Gender: p.Gender,
		Season: p.Season,
		Price:  p.Price,
	}
	if main, _ := p.MainImage(); main != nil {
		dto.ImageURL = catalog.ImageURL(main.Filename)
	}
	return dto
}

// ListProducts accepts optional gender and season query filters.
func (h *ProductsHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	f := catalog.Filter{
		Gender: strings.TrimSpace(r.URL.Query().Get("gender")),
		Season: strings.TrimSpace(r.URL.Query().Get("season")),
	}
	products, err := h.catalog.ListProducts(ctx, f)
	if err != nil {
		handleError(w, r, err)
		return
	}

	response := make([]ProductSummaryDTO, 0, len(products))
	for _, p := range products {
		response = append(response, toSummaryDTO(p))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		handleError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, id)
	if err != nil {
		handleError(w, r, err)
		return
	}

	dto := ProductDetailDTO{Product: product, DetailImages: []string{}}
	main, details := product.MainImage()
	if main != nil {
		dto.MainImage = catalog.ImageURL(main.Filename)
	}
	for _, img := range details {
		dto.DetailImages = append(dto.DetailImages, catalog.ImageURL(img.Filename))
	}
	respondJSON(w, http.StatusOK, dto)
}

// ServeImage goes through the asset server so image chaos flags apply.
// It is not bounded by the handler timeout; slow_images must be felt.
func (h *ProductsHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	if err := h.images.Serve(w, r, chi.URLParam(r, "filename")); err != nil {
		handleError(w, r, err)
	}
}
