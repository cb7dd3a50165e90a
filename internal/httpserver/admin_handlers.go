package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/admin"
	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

const (
	maxUploadBytes = 10 << 20

	msgProductsFailed = "Error al cargar productos."
	msgAdminsFailed   = "Error al cargar lista."
	msgConfirmExpired = "La confirmación expiró. Inténtalo de nuevo."
)

type adminView struct {
	Products      []domain.Product
	ProductsError string
	Admins        []admin.AdminRow
	AdminsError   string
	Editing       *domain.Product
}

type confirmView struct {
	Prompt string
	Action string
	Target string
	Token  string
}

// AdminPanel renders the admin page with both lists.
func (s *Server) AdminPanel(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Panel de administración")
	data.Admin = &adminView{}
	s.fillProducts(r, data.Admin)
	s.fillAdmins(r, data.Admin)
	s.render(w, r, http.StatusOK, "admin", data)
}

// AdminProducts renders the product list fragment.
func (s *Server) AdminProducts(w http.ResponseWriter, r *http.Request) {
	s.renderAdminProducts(w, r)
}

// AdminAccounts renders the admin account list fragment.
func (s *Server) AdminAccounts(w http.ResponseWriter, r *http.Request) {
	s.renderAdminAccounts(w, r)
}

// AdminProductForm renders the product form, blank or filled from the listed product.
func (s *Server) AdminProductForm(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Producto")
	data.Admin = &adminView{}
	if id := chi.URLParam(r, "id"); id != "" {
		s.fillProducts(r, data.Admin)
		for i := range data.Admin.Products {
			if data.Admin.Products[i].ID == id {
				p := data.Admin.Products[i]
				data.Admin.Editing = &p
				break
			}
		}
		if data.Admin.Editing == nil {
			http.NotFound(w, r)
			return
		}
		data.Form["name"] = data.Admin.Editing.Name
		data.Form["desc"] = data.Admin.Editing.Description
		data.Form["price"] = data.Admin.Editing.Price.String()
		data.Form["discount"] = data.Admin.Editing.Discount.String()
	}
	s.render(w, r, http.StatusOK, "admin_product_form", data)
}

// AdminCreateProduct uploads a new product.
func (s *Server) AdminCreateProduct(w http.ResponseWriter, r *http.Request) {
	s.saveProduct(w, r, "")
}

// AdminUpdateProduct replaces an existing product.
func (s *Server) AdminUpdateProduct(w http.ResponseWriter, r *http.Request) {
	s.saveProduct(w, r, chi.URLParam(r, "id"))
}

func (s *Server) saveProduct(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.renderProductFormError(w, r, id, domain.FieldErrors{"image": "La imagen es demasiado pesada."})
		return
	}

	in := domain.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("desc"),
		Price:       r.FormValue("price"),
		Discount:    r.FormValue("discount"),
	}
	var upload *backend.Upload
	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		upload = &backend.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Body:        file,
		}
	}

	var err error
	msg := admin.MsgProductCreated
	if id == "" {
		err = s.panel.CreateProduct(ctx, dev.api, in, upload)
	} else {
		msg = admin.MsgProductUpdated
		err = s.panel.UpdateProduct(ctx, dev.api, id, in, upload)
	}
	if err != nil {
		var fe domain.FieldErrors
		if !errors.As(err, &fe) {
			requestctx.Logger(ctx).Warn("save product failed", zap.String("product_id", id), zap.Error(err))
			fe = domain.FieldErrors{"form": userMessage(err, "Error al subir producto")}
		}
		s.renderProductFormError(w, r, id, fe)
		return
	}
	toast(w, r, msg)
	if !IsHTMXRequest(ctx) {
		redirect(w, r, "/admin")
		return
	}
	w.Header().Set("HX-Retarget", "#admin-products")
	s.renderAdminProducts(w, r)
}

func (s *Server) renderProductFormError(w http.ResponseWriter, r *http.Request, id string, fe domain.FieldErrors) {
	if !IsHTMXRequest(r.Context()) {
		toast(w, r, firstError(fe))
		redirect(w, r, "/admin")
		return
	}
	data := s.newPageData(r, "Producto")
	data.Admin = &adminView{}
	if id != "" {
		data.Admin.Editing = &domain.Product{ID: id}
	}
	data.Errors = fe
	for _, key := range []string{"name", "desc", "price", "discount"} {
		data.Form[key] = r.FormValue(key)
	}
	s.render(w, r, http.StatusOK, "admin_product_form", data)
}

// AdminConfirmDeleteProduct renders the confirmation modal for a product deletion.
func (s *Server) AdminConfirmDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.renderConfirm(w, r, admin.ActionDeleteProduct, id, "/admin/products/"+id+"/delete", "#admin-products")
}

// AdminDeleteProduct deletes a product once the confirmation token checks out.
func (s *Server) AdminDeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	id := chi.URLParam(r, "id")
	if !s.confirmed(w, r, admin.ActionDeleteProduct, id) {
		return
	}
	if err := s.panel.DeleteProduct(ctx, dev.api, id); err != nil {
		requestctx.Logger(ctx).Warn("delete product failed", zap.String("product_id", id), zap.Error(err))
		s.afterAdminMutation(w, r, userMessage(err, "Error al eliminar"), s.renderAdminProducts)
		return
	}
	s.afterAdminMutation(w, r, admin.MsgProductDeleted, s.renderAdminProducts)
}

// AdminCreateAdmin creates a new admin account.
func (s *Server) AdminCreateAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	in := domain.AdminInput{Name: r.FormValue("name"), Email: r.FormValue("email"), Password: r.FormValue("password")}
	if err := s.panel.CreateAdmin(ctx, dev.api, in); err != nil {
		var fe domain.FieldErrors
		msg := ""
		if errors.As(err, &fe) {
			msg = firstError(fe)
		} else {
			requestctx.Logger(ctx).Warn("create admin failed", zap.Error(err))
			msg = userMessage(err, "Error al crear administrador.")
		}
		s.afterAdminMutation(w, r, msg, s.renderAdminAccounts)
		return
	}
	s.afterAdminMutation(w, r, admin.MsgAdminCreated, s.renderAdminAccounts)
}

// AdminConfirmDeleteAdmin renders the confirmation modal for an admin deletion.
func (s *Server) AdminConfirmDeleteAdmin(w http.ResponseWriter, r *http.Request) {
	dev := deviceFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if u := dev.state.User(); u != nil && u.ID == id {
		toast(w, r, admin.MsgSelfDelete)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.renderConfirm(w, r, admin.ActionDeleteAdmin, id, "/admin/admins/"+id+"/delete", "#admin-list")
}

// AdminDeleteAdmin deletes another admin account once confirmed.
func (s *Server) AdminDeleteAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	id := chi.URLParam(r, "id")
	if !s.confirmed(w, r, admin.ActionDeleteAdmin, id) {
		return
	}
	err := s.panel.DeleteAdmin(ctx, dev.api, dev.state.User(), id)
	switch {
	case errors.Is(err, admin.ErrSelfDelete):
		s.afterAdminMutation(w, r, admin.MsgSelfDelete, s.renderAdminAccounts)
	case err != nil:
		requestctx.Logger(ctx).Warn("delete admin failed", zap.String("admin_id", id), zap.Error(err))
		s.afterAdminMutation(w, r, userMessage(err, "Error al eliminar."), s.renderAdminAccounts)
	default:
		s.afterAdminMutation(w, r, admin.MsgAdminDeleted, s.renderAdminAccounts)
	}
}

func (s *Server) renderConfirm(w http.ResponseWriter, r *http.Request, action admin.Action, id, actionURL, swap string) {
	dev := deviceFromContext(r.Context())
	token, err := s.confirmer.Issue(dev.state.ID(), action, id)
	if err != nil {
		requestctx.Logger(r.Context()).Error("issue confirmation", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	data := s.newPageData(r, "Confirmar")
	data.Confirm = &confirmView{Prompt: action.Prompt(), Action: actionURL, Target: swap, Token: token}
	s.render(w, r, http.StatusOK, "confirm", data)
}

func (s *Server) confirmed(w http.ResponseWriter, r *http.Request, action admin.Action, id string) bool {
	dev := deviceFromContext(r.Context())
	if err := s.confirmer.Verify(r.FormValue("confirm_token"), dev.state.ID(), action, id); err != nil {
		requestctx.Logger(r.Context()).Warn("confirmation rejected", zap.String("action", string(action)), zap.Error(err))
		toast(w, r, msgConfirmExpired)
		if IsHTMXRequest(r.Context()) {
			w.WriteHeader(http.StatusNoContent)
		} else {
			redirect(w, r, "/admin")
		}
		return false
	}
	return true
}

// afterAdminMutation reloads the affected list from the backend; nothing is patched locally.
func (s *Server) afterAdminMutation(w http.ResponseWriter, r *http.Request, msg string, list http.HandlerFunc) {
	toast(w, r, msg)
	if !IsHTMXRequest(r.Context()) {
		redirect(w, r, "/admin")
		return
	}
	list(w, r)
}

func (s *Server) renderAdminProducts(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Productos")
	data.Admin = &adminView{}
	s.fillProducts(r, data.Admin)
	s.render(w, r, http.StatusOK, "admin_products", data)
}

func (s *Server) renderAdminAccounts(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "Administradores")
	data.Admin = &adminView{}
	s.fillAdmins(r, data.Admin)
	s.render(w, r, http.StatusOK, "admin_accounts", data)
}

func (s *Server) fillProducts(r *http.Request, view *adminView) {
	items, err := s.panel.ListProducts(r.Context())
	if err != nil {
		requestctx.Logger(r.Context()).Warn("admin product list failed", zap.Error(err))
		view.ProductsError = msgProductsFailed
		return
	}
	s.catalog.Remember(items...)
	view.Products = items
}

func (s *Server) fillAdmins(r *http.Request, view *adminView) {
	dev := deviceFromContext(r.Context())
	rows, err := s.panel.ListAdmins(r.Context(), dev.api, dev.state.User())
	if err != nil {
		requestctx.Logger(r.Context()).Warn("admin account list failed", zap.Error(err))
		view.AdminsError = msgAdminsFailed
		return
	}
	view.Admins = rows
}

func firstError(fe domain.FieldErrors) string {
	for _, key := range []string{"form", "name", "email", "password", "desc", "price", "discount", "image"} {
		if msg, ok := fe[key]; ok {
			return msg
		}
	}
	return fe.Error()
}
