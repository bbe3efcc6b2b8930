package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// ErrProductNotFound is returned by Lookup when no product matches.
var ErrProductNotFound = errors.New("catalog: product not found")

// Product is a purchasable catalog entry. Price is held in minor units and
// exchanged as a major-unit JSON number.
type Product struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Price       pricing.Money `json:"-"`
	ImageURL    string        `json:"imageUrl,omitempty"`
	Description string        `json:"description,omitempty"`
}

type productWire struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Description string          `json:"description,omitempty"`
}

type productOut struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Price          json.Number `json:"price"`
	FormattedPrice string      `json:"formattedPrice"`
	ImageURL       string      `json:"imageUrl,omitempty"`
	Description    string      `json:"description,omitempty"`
}

// UnmarshalJSON accepts prices as numbers or numeric strings.
func (p *Product) UnmarshalJSON(data []byte) error {
	var w productWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Price.IsNegative() {
		return fmt.Errorf("catalog: product %q has negative price", w.ID)
	}
	*p = Product{
		ID:          w.ID,
		Name:        w.Name,
		Price:       pricing.FromDecimal(w.Price),
		ImageURL:    w.ImageURL,
		Description: w.Description,
	}
	return nil
}

// MarshalJSON renders the price with two decimals.
func (p Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(productOut{
		ID:             p.ID,
		Name:           p.Name,
		Price:          json.Number(pricing.ToDecimal(p.Price).StringFixed(2)),
		FormattedPrice: pricing.Format(p.Price),
		ImageURL:       p.ImageURL,
		Description:    p.Description,
	})
}

// Catalog lists purchasable products. On failure implementations return an
// empty, non-nil slice together with the error.
type Catalog interface {
	Products(ctx context.Context) ([]Product, error)
}

// Lookup returns the product with id from c.
func Lookup(ctx context.Context, c Catalog, id string) (Product, error) {
	products, err := c.Products(ctx)
	if err != nil {
		return Product{}, err
	}
	for _, p := range products {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, ErrProductNotFound
}

func decodeProducts(data []byte) ([]Product, error) {
	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(products))
	for _, p := range products {
		if p.ID == "" {
			return nil, errors.New("catalog: product without id")
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate product id %q", p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}
