package admin

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

// ErrSelfDelete is returned before any request when an admin tries to delete their own account.
var ErrSelfDelete = errors.New("admin: cannot delete own account")

// Messages shown after a confirmed mutation.
const (
	MsgProductCreated = "Producto agregado correctamente"
	MsgProductUpdated = "Producto actualizado correctamente"
	MsgProductDeleted = "Producto eliminado"
	MsgAdminCreated   = "Nuevo administrador creado exitosamente."
	MsgAdminDeleted   = "Administrador eliminado correctamente."
	MsgSelfDelete     = "No puedes eliminar tu propia cuenta"
	MsgImageRequired  = "La imagen es obligatoria para nuevos productos"
)

// API is the backend surface the panel drives with the admin's own session.
type API interface {
	CreateProduct(ctx context.Context, form backend.ProductForm) error
	UpdateProduct(ctx context.Context, id string, form backend.ProductForm) error
	DeleteProduct(ctx context.Context, id string) error
	Admins(ctx context.Context) ([]domain.AdminAccount, error)
	CreateAdmin(ctx context.Context, name, email, password string) error
	DeleteAdmin(ctx context.Context, id string) error
}

// ProductSource lists catalog pages.
type ProductSource interface {
	ListProducts(ctx context.Context, q domain.ProductQuery) (domain.Page, error)
}

// ProductCache drops stale storefront entries after a mutation.
type ProductCache interface {
	Forget(id string)
}

// AdminRow is an admin account as listed in the panel.
type AdminRow struct {
	domain.AdminAccount
	Self bool
}

// Panel implements the admin panel operations. Lists are always reloaded from the backend
// after a mutation; nothing is patched locally.
type Panel struct {
	products ProductSource
	cache    ProductCache
	pageSize int
}

// NewPanel wires the panel. cache may be nil.
func NewPanel(products ProductSource, cache ProductCache, pageSize int) *Panel {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Panel{products: products, cache: cache, pageSize: pageSize}
}

// ListProducts returns the first page of products at the admin page size.
func (p *Panel) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if p.products == nil {
		return nil, backend.ErrNotConfigured
	}
	page, err := p.products.ListProducts(ctx, domain.ProductQuery{Page: 1, Limit: p.pageSize})
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// CreateProduct validates the form and uploads a new product. The image is mandatory.
func (p *Panel) CreateProduct(ctx context.Context, api API, in domain.ProductInput, image *backend.Upload) error {
	form, err := buildForm(in, image)
	if err != nil {
		return err
	}
	if form.Image == nil {
		return domain.FieldErrors{"image": MsgImageRequired}
	}
	if err := api.CreateProduct(ctx, form); err != nil {
		return err
	}
	requestctx.Logger(ctx).Info("product created", zap.String("name", form.Name))
	return nil
}

// UpdateProduct validates the form and replaces the product. Omitting the image keeps the
// stored one.
func (p *Panel) UpdateProduct(ctx context.Context, api API, id string, in domain.ProductInput, image *backend.Upload) error {
	form, err := buildForm(in, image)
	if err != nil {
		return err
	}
	if err := api.UpdateProduct(ctx, id, form); err != nil {
		return err
	}
	p.forget(id)
	requestctx.Logger(ctx).Info("product updated", zap.String("product_id", id))
	return nil
}

// DeleteProduct removes the product. Callers verify the confirmation token first.
func (p *Panel) DeleteProduct(ctx context.Context, api API, id string) error {
	if err := api.DeleteProduct(ctx, id); err != nil {
		return err
	}
	p.forget(id)
	requestctx.Logger(ctx).Info("product deleted", zap.String("product_id", id))
	return nil
}

// ListAdmins returns the admin accounts, marking the caller's own row.
func (p *Panel) ListAdmins(ctx context.Context, api API, current *domain.User) ([]AdminRow, error) {
	accounts, err := api.Admins(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]AdminRow, 0, len(accounts))
	for _, acc := range accounts {
		rows = append(rows, AdminRow{AdminAccount: acc, Self: isSelf(current, acc.ID)})
	}
	return rows, nil
}

// CreateAdmin validates and creates a new admin account.
func (p *Panel) CreateAdmin(ctx context.Context, api API, in domain.AdminInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	email := strings.TrimSpace(in.Email)
	if err := api.CreateAdmin(ctx, strings.TrimSpace(in.Name), email, in.Password); err != nil {
		return err
	}
	requestctx.Logger(ctx).Info("admin account created", zap.String("email", email))
	return nil
}

// DeleteAdmin removes another admin account. Deleting oneself fails with ErrSelfDelete
// without contacting the backend.
func (p *Panel) DeleteAdmin(ctx context.Context, api API, current *domain.User, id string) error {
	if isSelf(current, id) {
		return ErrSelfDelete
	}
	if err := api.DeleteAdmin(ctx, id); err != nil {
		return err
	}
	requestctx.Logger(ctx).Info("admin account deleted", zap.String("admin_id", id))
	return nil
}

func (p *Panel) forget(id string) {
	if p.cache != nil {
		p.cache.Forget(id)
	}
}

func isSelf(current *domain.User, id string) bool {
	return current != nil && current.ID != "" && current.ID == id
}

func buildForm(in domain.ProductInput, image *backend.Upload) (backend.ProductForm, error) {
	price, discount, err := in.Parse()
	if err != nil {
		return backend.ProductForm{}, err
	}
	if image != nil && image.Body == nil {
		image = nil
	}
	return backend.ProductForm{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Price:       price,
		Discount:    discount,
		Image:       image,
	}, nil
}
