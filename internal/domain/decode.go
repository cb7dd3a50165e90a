package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrLegacyRecord marks product records written before products carried identifiers.
var ErrLegacyRecord = errors.New("domain: legacy record without identifier")

// ShapeError reports a JSON record that does not match the expected schema.
type ShapeError struct {
	Kind  string
	Field string
	Cause string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("domain: %s.%s: %s", e.Kind, e.Field, e.Cause)
}

func shapeErr(kind, field, cause string) *ShapeError {
	return &ShapeError{Kind: kind, Field: field, Cause: cause}
}

type rawProduct struct {
	ID          *string          `json:"_id"`
	LegacyID    *json.RawMessage `json:"id"`
	Name        *string          `json:"name"`
	Description *string          `json:"desc"`
	Price       *decimal.Decimal `json:"price"`
	Image       *string          `json:"image"`
	Discount    *decimal.Decimal `json:"discount"`
}

// DecodeProduct parses a single product record.
func DecodeProduct(data []byte) (Product, error) {
	var raw rawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return Product{}, shapeErr("product", "$", err.Error())
	}
	return raw.toProduct()
}

// DecodeProducts parses a JSON array of product records. The first malformed record fails the batch.
func DecodeProducts(data []byte) ([]Product, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, shapeErr("product", "$", "expected array: "+err.Error())
	}
	out := make([]Product, 0, len(raws))
	for i, r := range raws {
		p, err := DecodeProduct(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

func (r rawProduct) toProduct() (Product, error) {
	if r.ID == nil || strings.TrimSpace(*r.ID) == "" {
		if r.LegacyID != nil {
			return Product{}, ErrLegacyRecord
		}
		return Product{}, shapeErr("product", "_id", "missing")
	}
	if r.Name == nil {
		return Product{}, shapeErr("product", "name", "missing")
	}
	if r.Price == nil {
		return Product{}, shapeErr("product", "price", "missing")
	}
	if r.Price.IsNegative() {
		return Product{}, shapeErr("product", "price", "negative")
	}
	p := Product{
		ID:    strings.TrimSpace(*r.ID),
		Name:  *r.Name,
		Price: *r.Price,
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Image != nil {
		p.Image = *r.Image
	}
	if r.Discount != nil {
		if r.Discount.IsNegative() || r.Discount.GreaterThan(hundred) {
			return Product{}, shapeErr("product", "discount", "outside 0..100")
		}
		p.Discount = *r.Discount
	}
	return p, nil
}

type rawCartItem struct {
	ProductID *string          `json:"_id"`
	Name      *string          `json:"name"`
	Price     *decimal.Decimal `json:"price"`
	Qty       *int             `json:"qty"`
}

// DecodeCartItems parses a JSON array of cart lines.
func DecodeCartItems(data []byte) ([]CartItem, error) {
	var raws []rawCartItem
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, shapeErr("cartItem", "$", err.Error())
	}
	items := make([]CartItem, 0, len(raws))
	for _, r := range raws {
		switch {
		case r.ProductID == nil || *r.ProductID == "":
			return nil, shapeErr("cartItem", "_id", "missing")
		case r.Name == nil:
			return nil, shapeErr("cartItem", "name", "missing")
		case r.Price == nil:
			return nil, shapeErr("cartItem", "price", "missing")
		case r.Qty == nil || *r.Qty < 1:
			return nil, shapeErr("cartItem", "qty", "must be a positive integer")
		}
		items = append(items, CartItem{
			ProductID: *r.ProductID,
			Name:      *r.Name,
			Price:     *r.Price,
			Qty:       *r.Qty,
		})
	}
	return items, nil
}

type rawUser struct {
	ID     *string `json:"_id"`
	Name   *string `json:"name"`
	Nombre *string `json:"nombre"`
	Email  *string `json:"email"`
	Role   *string `json:"rol"`
}

// DecodeUser parses a user record. The backend uses either "name" or "nombre".
func DecodeUser(data []byte) (User, error) {
	var raw rawUser
	if err := json.Unmarshal(data, &raw); err != nil {
		return User{}, shapeErr("user", "$", err.Error())
	}
	if raw.Email == nil || strings.TrimSpace(*raw.Email) == "" {
		return User{}, shapeErr("user", "email", "missing")
	}
	u := User{Email: strings.TrimSpace(*raw.Email)}
	switch {
	case raw.Name != nil:
		u.Name = *raw.Name
	case raw.Nombre != nil:
		u.Name = *raw.Nombre
	default:
		return User{}, shapeErr("user", "name", "missing")
	}
	if raw.ID != nil {
		u.ID = *raw.ID
	}
	if raw.Role != nil {
		u.Role = *raw.Role
	}
	return u, nil
}

type rawReview struct {
	ID        *string `json:"_id"`
	ProductID *string `json:"productId"`
	Author    *string `json:"author"`
	Rating    *int    `json:"rating"`
	Comment   *string `json:"comment"`
	CreatedAt *string `json:"createdAt"`
}

// DecodeReviews parses a JSON array of reviews.
func DecodeReviews(data []byte) ([]Review, error) {
	var raws []rawReview
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, shapeErr("review", "$", err.Error())
	}
	out := make([]Review, 0, len(raws))
	for _, r := range raws {
		if r.ProductID == nil {
			return nil, shapeErr("review", "productId", "missing")
		}
		if r.Rating == nil || *r.Rating < MinRating || *r.Rating > MaxRating {
			return nil, shapeErr("review", "rating", "must be between 1 and 5")
		}
		rev := Review{ProductID: *r.ProductID, Rating: *r.Rating}
		if r.ID != nil {
			rev.ID = *r.ID
		}
		if r.Author != nil {
			rev.Author = *r.Author
		}
		if r.Comment != nil {
			rev.Comment = *r.Comment
		}
		if r.CreatedAt != nil {
			rev.CreatedAt = parseTime(*r.CreatedAt)
		}
		out = append(out, rev)
	}
	return out, nil
}

func parseTime(val string) time.Time {
	val = strings.TrimSpace(val)
	if val == "" {
		return time.Time{}
	}
	layouts := []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, val); err == nil {
			return ts
		}
	}
	return time.Time{}
}
