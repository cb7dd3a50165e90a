package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finitefield.org/bloomcare-web/internal/domain"
)

type productsPayload struct {
	Products json.RawMessage `json:"products"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	Pages    int             `json:"pages"`
	HasNext  bool            `json:"has_next"`
	HasPrev  bool            `json:"has_prev"`
}

// ListProducts fetches a page of products from GET /api/products.
func (c *Client) ListProducts(ctx context.Context, q domain.ProductQuery) (domain.Page, error) {
	values := url.Values{}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		values.Set("search", s)
	}
	body, err := c.do(ctx, c.http, request{
		op:     "list_products",
		method: http.MethodGet,
		path:   []string{"api", "products"},
		query:  values,
	})
	if err != nil {
		return domain.Page{}, err
	}

	var payload productsPayload
	if err := decodeInto("list_products", body, &payload); err != nil {
		return domain.Page{}, err
	}
	if len(payload.Products) == 0 {
		return domain.Page{}, &domain.ShapeError{Kind: "productPage", Field: "products", Cause: "missing"}
	}
	items, err := domain.DecodeProducts(payload.Products)
	if err != nil {
		return domain.Page{}, fmt.Errorf("backend: list_products: %w", err)
	}
	page := domain.Page{
		Items:   items,
		Total:   payload.Total,
		Page:    payload.Page,
		Pages:   payload.Pages,
		HasNext: payload.HasNext,
		HasPrev: payload.HasPrev,
	}
	if page.Page < 1 {
		page.Page = 1
	}
	if page.Pages < 1 {
		page.Pages = 1
	}
	return page, nil
}
