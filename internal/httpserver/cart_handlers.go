package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/cart"
	"finitefield.org/bloomcare-web/internal/catalog"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

const (
	msgAdded       = "Producto agregado al carrito"
	msgRemoved     = "Producto eliminado del carrito"
	msgUnknown     = "El producto ya no está disponible."
	msgEmptyCart   = "El carrito está vacío"
	msgLoginToPay  = "Debes iniciar sesión o registrarte para pagar."
	msgCartSave    = "No se pudo guardar el carrito."
	msgCartFull    = "Tu carrito está lleno. Inicia sesión para agregar más productos."
	msgOrderPlaced = "Gracias %s, tu pedido por %s ha sido registrado (simulado)."
)

type cartView struct {
	Items []domain.CartItem
	Total decimal.Decimal
	Count int
	Error string
}

func (s *Server) cartManager(dev *device, lookup cart.ProductLookup) *cart.Manager {
	fits := func(items []domain.CartItem) error { return s.sessions.FitsCart(dev.state, items) }
	return cart.NewManager(cart.Deps{
		Remote:   cart.NewRemoteStore(dev.api),
		Local:    cart.NewLocalStore(dev.state, fits),
		Auth:     cart.AuthFunc(dev.state.Authenticated),
		Products: lookup,
	})
}

func (s *Server) loadCart(ctx context.Context, dev *device) *cartView {
	m := s.cartManager(dev, s.catalog)
	m.Load(ctx)
	return newCartView(m)
}

func newCartView(m *cart.Manager) *cartView {
	totals := m.Totals()
	return &cartView{Items: m.Items(), Total: totals.Total, Count: totals.Count}
}

// pageLookup resolves products from the shared cache, refetching the catalog page the form
// was posted from when the cache no longer holds the id.
type pageLookup struct {
	ctx    context.Context
	loader *catalog.Loader
	pager  catalog.Pager
	size   int
}

func (l pageLookup) Product(id string) (domain.Product, error) {
	p, err := l.loader.Product(id)
	if err == nil {
		return p, nil
	}
	l.loader.FetchPage(l.ctx, l.pager.Page, l.size, l.pager.Search)
	return l.loader.Product(id)
}

// Cart renders the cart fragment.
func (s *Server) Cart(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Carrito")
	data.Cart = s.loadCart(r.Context(), deviceFromContext(r.Context()))
	s.render(w, r, http.StatusOK, "cart", data)
}

// AddToCart adds one unit of the posted product.
func (s *Server) AddToCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	productID := r.FormValue("product_id")
	lookup := pageLookup{ctx: ctx, loader: s.catalog, pager: catalog.ParsePager(r.Form), size: s.cfg.PageSize}
	m := s.cartManager(dev, lookup)

	msg := msgAdded
	view := &cartView{}
	if err := m.Add(ctx, productID); err != nil {
		msg = s.cartError(ctx, err)
		view.Error = msg
	}
	s.respondCart(w, r, m, view, msg)
}

// RemoveFromCart drops a whole line.
func (s *Server) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m := s.cartManager(deviceFromContext(ctx), s.catalog)

	msg := msgRemoved
	view := &cartView{}
	if err := m.Remove(ctx, chi.URLParam(r, "id")); err != nil {
		msg = s.cartError(ctx, err)
		view.Error = msg
	}
	s.respondCart(w, r, m, view, msg)
}

// Checkout runs the demo checkout.
func (s *Server) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	m := s.cartManager(dev, s.catalog)

	view := &cartView{}
	var msg string
	receipt, err := m.Checkout(ctx, dev.state.User())
	if err != nil {
		msg = s.cartError(ctx, err)
		view.Error = msg
	} else {
		msg = fmt.Sprintf(msgOrderPlaced, receipt.Name, s.views.money(receipt.Total))
		requestctx.Logger(ctx).Info("demo checkout completed",
			zap.Int("items", receipt.Count),
			zap.String("total", receipt.Total.String()),
		)
	}
	s.respondCart(w, r, m, view, msg)
}

func (s *Server) respondCart(w http.ResponseWriter, r *http.Request, m *cart.Manager, view *cartView, msg string) {
	toast(w, r, msg)
	if !IsHTMXRequest(r.Context()) {
		redirect(w, r, "/")
		return
	}
	fresh := newCartView(m)
	fresh.Error = view.Error
	data := s.newPageData(r, "Carrito")
	data.Cart = fresh
	s.render(w, r, http.StatusOK, "cart", data)
}

func (s *Server) cartError(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, cart.ErrUnknownProduct):
		return msgUnknown
	case errors.Is(err, cart.ErrEmptyCart):
		return msgEmptyCart
	case errors.Is(err, cart.ErrLoginRequired):
		return msgLoginToPay
	case errors.Is(err, cart.ErrCartFull):
		requestctx.Logger(ctx).Info("anonymous cart full", zap.Error(err))
		return msgCartFull
	}
	requestctx.Logger(ctx).Warn("cart update failed", zap.Error(err))
	return userMessage(err, msgCartSave)
}
