package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

var (
	// ErrUnknownProduct is returned when adding a product the catalog has not seen.
	ErrUnknownProduct = errors.New("cart: unknown product")
	// ErrEmptyCart is returned when checking out an empty cart.
	ErrEmptyCart = errors.New("cart: empty cart")
	// ErrLoginRequired is returned when an anonymous user checks out.
	ErrLoginRequired = errors.New("cart: login required")
)

// ProductLookup resolves product ids to catalog entries.
type ProductLookup interface {
	Product(id string) (domain.Product, error)
}

// Totals is recomputed from the lines on every call.
type Totals struct {
	Total decimal.Decimal
	Count int
}

// Receipt summarises a completed checkout.
type Receipt struct {
	Name  string
	Total decimal.Decimal
	Count int
}

// Manager owns one request's view of the cart. The backing store is picked on every operation
// from the injected auth state.
type Manager struct {
	remote   Store
	local    Store
	auth     AuthState
	products ProductLookup

	items  []domain.CartItem
	loaded bool
}

// Deps groups the manager's collaborators.
type Deps struct {
	Remote   Store
	Local    Store
	Auth     AuthState
	Products ProductLookup
}

// NewManager builds a cart manager.
func NewManager(deps Deps) *Manager {
	return &Manager{
		remote:   deps.Remote,
		local:    deps.Local,
		auth:     deps.Auth,
		products: deps.Products,
	}
}

func (m *Manager) store() Store {
	if m.auth != nil && m.auth.Authenticated() && m.remote != nil {
		return m.remote
	}
	return m.local
}

// Load reads the cart from the active store. A failing store yields an empty cart.
func (m *Manager) Load(ctx context.Context) []domain.CartItem {
	items, err := m.store().Load(ctx)
	if err != nil {
		requestctx.Logger(ctx).Warn("cart load failed", zap.Error(err))
		items = nil
	}
	m.items = cloneItems(items)
	m.loaded = true
	return m.Items()
}

func (m *Manager) ensureLoaded(ctx context.Context) {
	if !m.loaded {
		m.Load(ctx)
	}
}

// Add puts one unit of productID in the cart: an existing line gains exactly one, otherwise
// a line is created from the catalog entry at its current final price.
func (m *Manager) Add(ctx context.Context, productID string) error {
	m.ensureLoaded(ctx)
	next := cloneItems(m.items)
	for i := range next {
		if next[i].ProductID == productID {
			next[i].Qty++
			return m.Save(ctx, next)
		}
	}
	if m.products == nil {
		return ErrUnknownProduct
	}
	p, err := m.products.Product(productID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	next = append(next, domain.CartItem{ProductID: p.ID, Name: p.Name, Price: p.FinalPrice(), Qty: 1})
	return m.Save(ctx, next)
}

// Remove drops the whole line for productID.
func (m *Manager) Remove(ctx context.Context, productID string) error {
	m.ensureLoaded(ctx)
	next := make([]domain.CartItem, 0, len(m.items))
	for _, it := range m.items {
		if it.ProductID != productID {
			next = append(next, it)
		}
	}
	return m.Save(ctx, next)
}

// Save replaces the cart. The in-memory lines are updated even when the store fails, except
// on ErrCartFull where nothing was stored and the previous lines stay.
func (m *Manager) Save(ctx context.Context, items []domain.CartItem) error {
	prev := m.items
	m.items = cloneItems(items)
	m.loaded = true
	if err := m.store().Save(ctx, m.items); err != nil {
		if errors.Is(err, ErrCartFull) {
			m.items = prev
		}
		return fmt.Errorf("cart: save: %w", err)
	}
	return nil
}

// Clear empties the cart.
func (m *Manager) Clear(ctx context.Context) error {
	return m.Save(ctx, nil)
}

// Items returns a copy of the current lines.
func (m *Manager) Items() []domain.CartItem {
	return cloneItems(m.items)
}

// Totals sums price*qty and qty over the current lines.
func (m *Manager) Totals() Totals {
	t := Totals{Total: decimal.Zero}
	for _, it := range m.items {
		t.Total = t.Total.Add(it.LineTotal())
		t.Count += it.Qty
	}
	return t
}

// Checkout completes the demo purchase: it requires a non-empty cart and a signed-in user,
// then empties the cart.
func (m *Manager) Checkout(ctx context.Context, user *domain.User) (Receipt, error) {
	m.ensureLoaded(ctx)
	if len(m.items) == 0 {
		return Receipt{}, ErrEmptyCart
	}
	if user == nil {
		return Receipt{}, ErrLoginRequired
	}
	totals := m.Totals()
	receipt := Receipt{Name: user.Name, Total: totals.Total, Count: totals.Count}
	if err := m.Clear(ctx); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}
