package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Gender      string          `json:"gender"`
	Season      string          `json:"season"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Active      bool            `json:"active"`
	Images      []ProductImage  `json:"images,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type ProductImage struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Filename  string `json:"filename"`
	IsMain    bool   `json:"is_main"`
}

// MainImage returns the first image flagged as main, falling back to the
// first image, plus the remaining detail images in their original order.
func (p *Product) MainImage() (*ProductImage, []ProductImage) {
	if len(p.Images) == 0 {
		return nil, nil
	}
	mainIdx := -1
	for i, img := range p.Images {
		if img.IsMain {
			mainIdx = i
			break
		}
	}
	if mainIdx < 0 {
		mainIdx = 0
	}
	details := make([]ProductImage, 0, len(p.Images)-1)
	for i, img := range p.Images {
		if i != mainIdx {
			details = append(details, img)
		}
	}
	main := p.Images[mainIdx]
	return &main, details
}
