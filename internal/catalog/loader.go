package catalog

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

// ErrNotFound is returned when a product id is not known to the loader.
var ErrNotFound = errors.New("catalog: product not found")

// Loader fetches catalog pages and remembers every product it has seen.
type Loader struct {
	source Source
	cache  *lru.Cache[string, domain.Product]
}

// NewLoader wires a source with a bounded product cache.
func NewLoader(source Source, cacheSize int) (*Loader, error) {
	if source == nil {
		return nil, errors.New("catalog: source is required")
	}
	cache, err := lru.New[string, domain.Product](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("catalog: product cache: %w", err)
	}
	return &Loader{source: source, cache: cache}, nil
}

// FetchPage loads one page of products. It never fails: any error is logged and an empty
// page is returned so the storefront still renders.
func (l *Loader) FetchPage(ctx context.Context, page, size int, search string) domain.Page {
	if page < 1 {
		page = 1
	}
	result, err := l.source.ListProducts(ctx, domain.ProductQuery{Page: page, Limit: size, Search: search})
	if err != nil {
		requestctx.Logger(ctx).Warn("catalog fetch failed",
			zap.Int("page", page),
			zap.String("search", search),
			zap.Error(err),
		)
		return domain.EmptyPage(page)
	}
	if result.Pages < 1 {
		result.Pages = 1
	}
	l.Remember(result.Items...)
	return result
}

// Remember records products for later lookup by id.
func (l *Loader) Remember(products ...domain.Product) {
	for _, p := range products {
		l.cache.Add(p.ID, p)
	}
}

// Product resolves a product previously seen by the loader.
func (l *Loader) Product(id string) (domain.Product, error) {
	if p, ok := l.cache.Get(id); ok {
		return p, nil
	}
	return domain.Product{}, ErrNotFound
}

// Forget drops a product from the cache, e.g. after an admin deletes it.
func (l *Loader) Forget(id string) {
	l.cache.Remove(id)
}
