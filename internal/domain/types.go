package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RoleAdmin marks staff accounts allowed into the admin panel.
const RoleAdmin = "admin"

// Product is a catalog entry as served by the backend.
type Product struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Description string          `json:"desc"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Discount    decimal.Decimal `json:"discount"`
}

// Discounted reports whether a positive discount applies.
func (p Product) Discounted() bool {
	return p.Discount.IsPositive()
}

// FinalPrice returns the discounted unit price rounded to currency precision.
func (p Product) FinalPrice() decimal.Decimal {
	return FinalPrice(p.Price, p.Discount)
}

// CartItem is a single cart line. Name and Price are snapshots taken when the line was created.
type CartItem struct {
	ProductID string          `json:"_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Qty       int             `json:"qty"`
}

// LineTotal is price * qty.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Qty)))
}

// User is the client-side projection of an authenticated identity.
type User struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"rol,omitempty"`
	// Pending is set for projections created optimistically after registration,
	// before the backend confirms a session.
	Pending bool `json:"pending,omitempty"`
}

// IsAdmin reports whether the projection carries the admin role or the super-admin email.
// This is display gating only; the backend enforces authorization.
func (u *User) IsAdmin(superAdminEmail string) bool {
	if u == nil {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(u.Role), RoleAdmin) {
		return true
	}
	superAdminEmail = strings.TrimSpace(superAdminEmail)
	return superAdminEmail != "" && strings.EqualFold(strings.TrimSpace(u.Email), superAdminEmail)
}

// Review is a product review.
type Review struct {
	ID        string    `json:"_id,omitempty"`
	ProductID string    `json:"productId"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// ProductQuery selects one page of the product listing. Page is 1-based.
type ProductQuery struct {
	Page   int
	Limit  int
	Search string
}

// Page is one page of the catalog.
type Page struct {
	Items   []Product
	Total   int
	Page    int
	Pages   int
	HasNext bool
	HasPrev bool
}

// EmptyPage is returned by soft-failing catalog reads.
func EmptyPage(page int) Page {
	if page < 1 {
		page = 1
	}
	return Page{Page: page, Pages: 1}
}

// AdminAccount is a row of the admin account listing.
type AdminAccount struct {
	ID    string `json:"_id"`
	Name  string `json:"nombre"`
	Email string `json:"email"`
}
