package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"finitefield.org/bloomcare-web/internal/domain"
)

type cartItemPayload struct {
	ProductID string      `json:"_id"`
	Name      string      `json:"name"`
	Price     json.Number `json:"price"`
	Qty       int         `json:"qty"`
}

type cartPayload struct {
	Items json.RawMessage `json:"items"`
}

// Cart reads the server-side cart with GET /api/cart. A response with ok=false means the
// backend has no cart for this session and yields an empty cart.
func (s *Session) Cart(ctx context.Context) ([]domain.CartItem, error) {
	raw, err := s.client.do(ctx, s.http, request{
		op:     "get_cart",
		method: http.MethodGet,
		path:   []string{"api", "cart"},
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status < 400 {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var payload cartPayload
	if err := decodeInto("get_cart", raw, &payload); err != nil {
		return nil, err
	}
	if len(payload.Items) == 0 || string(payload.Items) == "null" {
		return nil, nil
	}
	items, err := domain.DecodeCartItems(payload.Items)
	if err != nil {
		return nil, fmt.Errorf("backend: get_cart: %w", err)
	}
	return items, nil
}

// SaveCart replaces the server-side cart with POST /api/cart.
func (s *Session) SaveCart(ctx context.Context, items []domain.CartItem) error {
	wire := make([]cartItemPayload, 0, len(items))
	for _, it := range items {
		wire = append(wire, cartItemPayload{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     json.Number(it.Price.String()),
			Qty:       it.Qty,
		})
	}
	body, err := jsonBody(map[string]any{"items": wire})
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "save_cart",
		method:      http.MethodPost,
		path:        []string{"api", "cart"},
		body:        body,
		contentType: "application/json",
	})
	return err
}
