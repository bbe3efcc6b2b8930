package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/noah-isme/toko-storefront/internal/obs"
)

const maxCatalogBytes = 4 << 20

// FileCatalog reads products from a JSON file on every call.
type FileCatalog struct {
	Path string
}

// Products implements Catalog.
func (f FileCatalog) Products(_ context.Context) ([]Product, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		obs.ObserveCatalogFetch("file", "error")
		return []Product{}, fmt.Errorf("catalog: read %s: %w", f.Path, err)
	}
	products, err := decodeProducts(data)
	if err != nil {
		obs.ObserveCatalogFetch("file", "error")
		return []Product{}, fmt.Errorf("catalog: decode %s: %w", f.Path, err)
	}
	obs.ObserveCatalogFetch("file", "ok")
	return products, nil
}

// HTTPCatalog fetches products from a remote JSON endpoint.
type HTTPCatalog struct {
	URL    string
	Client *http.Client
}

// Products implements Catalog.
func (h HTTPCatalog) Products(ctx context.Context) ([]Product, error) {
	products, err := h.fetch(ctx)
	if err != nil {
		obs.ObserveCatalogFetch("http", "error")
		return []Product{}, err
	}
	obs.ObserveCatalogFetch("http", "ok")
	return products, nil
}

func (h HTTPCatalog) fetch(ctx context.Context) ([]Product, error) {
	if h.URL == "" {
		return nil, errors.New("catalog: url not configured")
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog: fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog: fetch: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCatalogBytes))
	if err != nil {
		return nil, fmt.Errorf("catalog: read body: %w", err)
	}
	products, err := decodeProducts(data)
	if err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	return products, nil
}
