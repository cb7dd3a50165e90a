package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finitefield.org/bloomcare-web/internal/domain"
)

type fakeBackend struct {
	mu       sync.Mutex
	cart     json.RawMessage
	keys     []string
	uploads  map[string]string
	lastPath string
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if r.URL.Query().Get("search") == "legacy" {
			writeJSON(w, http.StatusOK, `{"products":[{"id":3,"name":"x","price":1}],"total":1,"page":1,"pages":1}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"products":[{"_id":"p1","name":"Copa","desc":"d","price":2000,"discount":25}],"total":4,"page":2,"pages":2,"has_next":false,"has_prev":true}`)
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body credentials
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, `{"ok":false,"msg":"Credenciales inválidas"}`)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "srv-1", Path: "/"})
		writeJSON(w, http.StatusOK, `{"ok":true,"user":{"name":"Ana","email":"`+body.Email+`","_id":"u1","rol":"cliente"}}`)
	})
	mux.HandleFunc("GET /api/session", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("session"); err == nil && ck.Value == "srv-1" {
			writeJSON(w, http.StatusOK, `{"ok":true}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":false}`)
	})
	mux.HandleFunc("GET /api/cart", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("session"); err != nil {
			writeJSON(w, http.StatusOK, `{"ok":false}`)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		items := f.cart
		if items == nil {
			items = json.RawMessage(`[]`)
		}
		writeJSON(w, http.StatusOK, `{"ok":true,"items":`+string(items)+`}`)
	})
	mux.HandleFunc("POST /api/cart", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Items json.RawMessage `json:"items"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.cart = body.Items
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	mux.HandleFunc("POST /api/products", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			writeJSON(w, http.StatusBadRequest, `{"ok":false,"msg":"bad form"}`)
			return
		}
		f.mu.Lock()
		f.uploads = map[string]string{
			"name":  r.FormValue("name"),
			"desc":  r.FormValue("desc"),
			"price": r.FormValue("price"),
		}
		if file, hdr, err := r.FormFile("image"); err == nil {
			data, _ := io.ReadAll(file)
			f.uploads["image"] = hdr.Filename + ":" + string(data)
		}
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, `{"ok":true,"msg":"Producto creado"}`)
	})
	mux.HandleFunc("DELETE /api/admin/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		writeJSON(w, http.StatusNotFound, `{"ok":false,"msg":"Usuario no encontrado"}`)
	})
	mux.HandleFunc("GET /api/admin/users", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":true,"admins":[{"_id":"a1","nombre":"Root","email":"admin@bloomcare.com"}]}`)
	})
	mux.HandleFunc("GET /api/reviews/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"ok":true,"reviews":[{"productId":"`+r.PathValue("id")+`","author":"Ana","rating":5,"comment":"Genial","createdAt":"2024-03-09T10:00:00Z"}]}`)
	})
	mux.HandleFunc("GET /logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	})
	return mux
}

func (f *fakeBackend) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPath = r.URL.RequestURI()
	if key := r.Header.Get(idempotencyHeader); key != "" {
		f.keys = append(f.keys, key)
	}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func newTestClient(t *testing.T) (*Client, *fakeBackend) {
	t.Helper()
	fake := &fakeBackend{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithIdempotencyKeys(func() string { return "key-1" })), fake
}

func TestListProducts(t *testing.T) {
	client, fake := newTestClient(t)

	page, err := client.ListProducts(context.Background(), domain.ProductQuery{Page: 2, Limit: 3, Search: "copa"})
	require.NoError(t, err)
	require.Equal(t, "/api/products?limit=3&page=2&search=copa", fake.lastPath)
	require.Equal(t, 2, page.Page)
	require.Equal(t, 2, page.Pages)
	require.True(t, page.HasPrev)
	require.Len(t, page.Items, 1)
	require.Equal(t, "1500", page.Items[0].FinalPrice().String())
}

func TestListProductsFailsLoudlyOnLegacyShape(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.ListProducts(context.Background(), domain.ProductQuery{Search: "legacy"})
	require.ErrorIs(t, err, domain.ErrLegacyRecord)
}

func TestLoginCapturesBackendSession(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	sess := client.Session(nil)
	ok, err := sess.CheckSession(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	user, err := sess.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "Ana", user.Name)
	require.Equal(t, "u1", user.ID)

	saved := sess.Cookies()
	require.Equal(t, []StoredCookie{{Name: "session", Value: "srv-1"}}, saved)

	restored := client.Session(saved)
	ok, err = restored.CheckSession(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, restored.Logout(ctx))
	require.Empty(t, restored.Cookies())
}

func TestLoginRejectedCarriesMessage(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.Session(nil).Login(context.Background(), "ana@example.com", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Equal(t, "Credenciales inválidas", Message(err, "fallback"))
	require.True(t, IsUnauthorized(err))
}

func TestCartRoundTrip(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	anon := client.Session(nil)
	items, err := anon.Cart(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	sess := client.Session([]StoredCookie{{Name: "session", Value: "srv-1"}})
	want := []domain.CartItem{{ProductID: "p1", Name: "Copa", Price: decimal.NewFromInt(1500), Qty: 2}}
	require.NoError(t, sess.SaveCart(ctx, want))

	got, err := sess.Cart(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, 2, got[0].Qty)
	require.True(t, got[0].Price.Equal(decimal.NewFromInt(1500)))
}

func TestCreateProductSendsMultipart(t *testing.T) {
	client, fake := newTestClient(t)

	err := client.Session(nil).CreateProduct(context.Background(), ProductForm{
		Name:        "Copa",
		Description: "Reutilizable",
		Price:       decimal.NewFromInt(9990),
		Image:       &Upload{Filename: `C:\fotos\copa.png`, ContentType: "image/png", Body: strings.NewReader("PNG")},
	})
	require.NoError(t, err)
	require.Equal(t, "Copa", fake.uploads["name"])
	require.Equal(t, "9990", fake.uploads["price"])
	require.Equal(t, "copa.png:PNG", fake.uploads["image"])
	require.Equal(t, []string{"key-1"}, fake.keys)
}

func TestDeleteAdminSurfacesBusinessError(t *testing.T) {
	client, _ := newTestClient(t)

	err := client.Session(nil).DeleteAdmin(context.Background(), "a1")
	require.True(t, IsStatus(err, http.StatusNotFound))
	require.Equal(t, "Usuario no encontrado", Message(err, ""))

	require.ErrorIs(t, client.Session(nil).DeleteAdmin(context.Background(), "a/1"), ErrInvalidID)
}

func TestAdminsAndReviews(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	admins, err := client.Session(nil).Admins(ctx)
	require.NoError(t, err)
	require.Equal(t, "Root", admins[0].Name)

	reviews, err := client.Reviews(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "p1", reviews[0].ProductID)
	require.Equal(t, 2024, reviews[0].CreatedAt.Year())
}

func TestConnectionErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url)
	_, err := client.ListProducts(context.Background(), domain.ProductQuery{})
	require.ErrorIs(t, err, ErrConnection)

	_, err = NewClient("").ListProducts(context.Background(), domain.ProductQuery{})
	require.True(t, errors.Is(err, ErrNotConfigured))
}
