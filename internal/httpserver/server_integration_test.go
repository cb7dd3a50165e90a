package httpserver_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"finitefield.org/bloomcare-web/internal/testutil"
)

var (
	ana   = testutil.Account{ID: "u1", Name: "Ana", Email: "ana@example.com", Password: "secret1", Role: "cliente"}
	admin = testutil.Account{ID: "a1", Name: "Root", Email: "root@example.com", Password: "secret1", Role: "admin"}
	staff = testutil.Account{ID: "a2", Name: "Bea", Email: "bea@example.com", Password: "secret1", Role: "admin"}
)

func newStorefront(t *testing.T, accounts ...testutil.Account) (*testutil.Storefront, *testutil.Backend) {
	t.Helper()
	api, ts := testutil.NewBackend(t, accounts...)
	return testutil.NewServer(t, ts.URL), api
}

func document(t *testing.T, resp *http.Response) *goquery.Document {
	t.Helper()
	return testutil.Document(t, resp)
}

func csrfToken(t *testing.T, sf *testutil.Storefront) string {
	t.Helper()
	resp := sf.Get(t, "/cart", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token, ok := document(t, resp).Find(`input[name="csrf_token"]`).First().Attr("value")
	require.True(t, ok)
	require.NotEmpty(t, token)
	return token
}

func toastOf(t *testing.T, resp *http.Response) string {
	t.Helper()
	raw := resp.Header.Get("HX-Trigger")
	if raw == "" {
		return ""
	}
	var payload struct {
		Toast struct {
			Message string `json:"message"`
		} `json:"toast"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	return payload.Toast.Message
}

func login(t *testing.T, sf *testutil.Storefront, acc testutil.Account) {
	t.Helper()
	resp := sf.Post(t, "/login", url.Values{
		"email":      {acc.Email},
		"password":   {acc.Password},
		"csrf_token": {csrfToken(t, sf)},
	}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)

	resp := sf.Get(t, "/healthz", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHomeRendersFirstCatalogPage(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)

	resp := sf.Get(t, "/", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Cache-Control"), "no-store")

	doc := document(t, resp)
	require.Equal(t, "BloomCare", doc.Find("title").Text())
	require.Equal(t, 1, doc.Find("#carousel .carousel-item").Length())
	require.Equal(t, "Copas Menstruales", doc.Find("#carousel h3").Text())
	require.Equal(t, 2, doc.Find("#products article.card").Length())
	require.Equal(t, "Página 1 de 2", doc.Find("#page-info").Text())

	prev := doc.Find("#prev")
	disabled, _ := prev.Attr("aria-disabled")
	require.Equal(t, "true", disabled)
	next, _ := doc.Find("#next").Attr("href")
	require.Equal(t, "/?page=2", next)

	require.Equal(t, 1, doc.Find("#auth #login-form").Length())
	require.Equal(t, 0, doc.Find("#user-name").Length())

	interval, _ := doc.Find("#carousel").Attr("data-interval")
	require.Equal(t, "5", interval)
	require.Contains(t, doc.Find("script").Text(), "root.dataset.interval")
}

func TestCatalogFragmentForHTMX(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)

	req, err := http.NewRequest(http.MethodGet, sf.URL+"/?page=2", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	req.Header.Set("HX-Target", "catalog")
	resp, err := sf.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "/?page=2", resp.Header.Get("HX-Push-Url"))
	doc := document(t, resp)
	require.Equal(t, 0, doc.Find("header.site-header").Length())
	require.Equal(t, "Página 2 de 2", doc.Find("#page-info").Text())
	require.Equal(t, "Toallitas Íntimas", doc.Find("#carousel h3").Text())
}

func TestOutOfRangePageShowsLastPage(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)

	for _, path := range []string{"/?page=7", "/?page=4611686018427387905"} {
		resp := sf.Get(t, path, false)
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		doc := document(t, resp)
		require.Equal(t, "Página 2 de 2", doc.Find("#page-info").Text(), path)
		require.Equal(t, "Toallitas Íntimas", doc.Find("#carousel h3").Text(), path)
	}

	// The server is still up after the oversized page number.
	require.Equal(t, http.StatusOK, sf.Get(t, "/healthz", false).StatusCode)
}

func TestSearchAndDiscountFilter(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)

	doc := document(t, sf.Get(t, "/?q=protectores", false))
	require.Equal(t, "Página 1 de 1", doc.Find("#page-info").Text())
	require.Equal(t, "Protectores Diarios", doc.Find("#carousel h3").Text())

	doc = document(t, sf.Get(t, "/?discounted=1", false))
	var names []string
	doc.Find("#products article.card h3").Each(func(_ int, s *goquery.Selection) {
		names = append(names, s.Text())
	})
	require.Equal(t, []string{"Protectores Diarios"}, names)
}

func TestProductDetailShowsDiscountBreakdown(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)
	sf.Get(t, "/", false)

	resp := sf.Get(t, "/products/p2", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := document(t, resp)
	require.Equal(t, "$2.000", doc.Find("#detail-price").Text())
	require.Equal(t, "25%", doc.Find("#detail-discount").Text())
	require.Equal(t, "$500", doc.Find("#detail-savings").Text())
	require.Equal(t, "$1.500", doc.Find("#detail-final").Text())

	resp = sf.Get(t, "/products/unknown", true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnsafeRequestWithoutCSRFIsForbidden(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)
	sf.Get(t, "/", false)

	resp := sf.Post(t, "/cart/items", url.Values{"product_id": {"p1"}}, true)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = sf.Post(t, "/cart/items", url.Values{"product_id": {"p1"}, "csrf_token": {"forged"}}, true)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestAnonymousCart(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)
	sf.Get(t, "/", false)
	token := csrfToken(t, sf)

	add := url.Values{"product_id": {"p2"}, "page": {"1"}, "csrf_token": {token}}
	resp := sf.Post(t, "/cart/items", add, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Producto agregado al carrito", toastOf(t, resp))

	doc := document(t, sf.Post(t, "/cart/items", add, true))
	require.Equal(t, 1, doc.Find("#cart-items li").Length())
	require.Equal(t, "x2", doc.Find("#cart-items .qty").Text())
	require.Equal(t, "$3.000", doc.Find("#cart-total").Text())
	require.Equal(t, "2", doc.Find("#cart-count").Text())

	resp = sf.Post(t, "/checkout", url.Values{"csrf_token": {token}}, true)
	require.Equal(t, "Debes iniciar sesión o registrarte para pagar.", toastOf(t, resp))

	resp = sf.Post(t, "/cart/items/p2/delete", url.Values{"csrf_token": {token}}, true)
	require.Equal(t, "Producto eliminado del carrito", toastOf(t, resp))
	doc = document(t, resp)
	require.Equal(t, 1, doc.Find("#cart-empty").Length())
	require.Equal(t, "0", doc.Find("#cart-count").Text())

	resp = sf.Post(t, "/checkout", url.Values{"csrf_token": {token}}, true)
	require.Equal(t, "El carrito está vacío", toastOf(t, resp))
}

func TestAddUnknownProductReportsError(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)
	token := csrfToken(t, sf)

	resp := sf.Post(t, "/cart/items", url.Values{"product_id": {"ghost"}, "csrf_token": {token}}, true)
	require.Equal(t, "El producto ya no está disponible.", toastOf(t, resp))
	require.Equal(t, 0, document(t, resp).Find("#cart-items").Length())
}

func TestCartAddRefetchesPostedPageOnCacheMiss(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)
	token := csrfToken(t, sf)

	// p4 lives on page 2, which this device never rendered.
	resp := sf.Post(t, "/cart/items", url.Values{"product_id": {"p4"}, "page": {"2"}, "csrf_token": {token}}, true)
	require.Equal(t, "Producto agregado al carrito", toastOf(t, resp))
	require.Equal(t, "$3.150", document(t, resp).Find("#cart-total").Text())
}

func TestLoginFailureRendersInlineError(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	token := csrfToken(t, sf)

	resp := sf.Post(t, "/login", url.Values{"email": {ana.Email}, "password": {"wrong"}, "csrf_token": {token}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := document(t, resp)
	require.Equal(t, "Credenciales inválidas", strings.TrimSpace(doc.Find("#login-form .error-msg").Text()))
	email, _ := doc.Find(`#login-form input[name="email"]`).Attr("value")
	require.Equal(t, ana.Email, email)

	resp = sf.Post(t, "/login", url.Values{"email": {"not-an-email"}, "password": {"x"}, "csrf_token": {token}}, true)
	require.Greater(t, document(t, resp).Find("#login-form .error-msg").Length(), 0)
}

func TestLoginUsesServerCartAndArmsCountdown(t *testing.T) {
	t.Parallel()
	sf, api := newStorefront(t, ana)
	login(t, sf, ana)

	doc := document(t, sf.Get(t, "/", false))
	require.Equal(t, "Hola, Ana", doc.Find("#user-name").Text())
	require.Equal(t, "¡Bienvenida/o!", strings.TrimSpace(doc.Find("#toast").Text()))
	phase, _ := doc.Find("#session-status").Attr("data-phase")
	require.Equal(t, "armed", phase)
	require.Equal(t, 0, doc.Find("#btn-admin-panel").Length())

	token := csrfToken(t, sf)
	resp := sf.Post(t, "/cart/items", url.Values{"product_id": {"p1"}, "csrf_token": {token}}, true)
	require.Equal(t, "Producto agregado al carrito", toastOf(t, resp))
	require.Contains(t, string(api.Cart(ana.Email)), `"p1"`)

	resp = sf.Post(t, "/checkout", url.Values{"csrf_token": {token}}, true)
	require.Equal(t, "Gracias Ana, tu pedido por $1.000 ha sido registrado (simulado).", toastOf(t, resp))
}

func TestLoginRotatesCSRFToken(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	before := csrfToken(t, sf)
	login(t, sf, ana)

	resp := sf.Post(t, "/cart/items", url.Values{"product_id": {"p1"}, "csrf_token": {before}}, true)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSessionStatusWarnsThenExpires(t *testing.T) {
	t.Parallel()
	sf, api := newStorefront(t, ana)
	login(t, sf, ana)

	sf.Clock.Advance(29 * time.Minute)
	resp := sf.Get(t, "/session/status", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status struct {
		Phase            string `json:"phase"`
		RemainingSeconds int64  `json:"remainingSeconds"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, "warning", status.Phase)
	require.Equal(t, int64(60), status.RemainingSeconds)

	doc := document(t, sf.Get(t, "/session/status", true))
	require.Equal(t, 1, doc.Find("#session-warning-modal").Length())
	require.Equal(t, "60", doc.Find("#session-remaining").Text())

	sf.Clock.Advance(time.Minute)
	resp = sf.Get(t, "/session/status", false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.True(t, api.Called("GET /logout"))

	doc = document(t, sf.Get(t, "/", false))
	require.Equal(t, 0, doc.Find("#user-name").Length())
	require.Equal(t, "Tu sesión ha expirado por inactividad.", strings.TrimSpace(doc.Find("#toast").Text()))
}

func TestStatusPollIsNotActivity(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	login(t, sf, ana)

	for i := 0; i < 10; i++ {
		sf.Clock.Advance(2 * time.Minute)
		sf.Get(t, "/session/status", true)
	}
	sf.Clock.Advance(10 * time.Minute)
	resp := sf.Get(t, "/session/status", false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
}

func TestActivityRearmsCountdown(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	login(t, sf, ana)

	sf.Clock.Advance(20 * time.Minute)
	sf.Get(t, "/cart", true)
	sf.Clock.Advance(20 * time.Minute)

	doc := document(t, sf.Get(t, "/session/status", true))
	phase, _ := doc.Find("#session-status").Attr("data-phase")
	require.Equal(t, "armed", phase)
}

func TestExtendSessionDismissesWarning(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	login(t, sf, ana)
	token := csrfToken(t, sf)

	sf.Clock.Advance(29 * time.Minute)
	resp := sf.Post(t, "/session/extend", url.Values{"csrf_token": {token}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, toastOf(t, resp))
	doc := document(t, resp)
	phase, _ := doc.Find("#session-status").Attr("data-phase")
	require.Equal(t, "armed", phase)
	require.Equal(t, 0, doc.Find("#session-warning-modal").Length())
}

func TestExtendAfterBackendExpiryLogsOut(t *testing.T) {
	t.Parallel()
	sf, api := newStorefront(t, ana)
	login(t, sf, ana)
	token := csrfToken(t, sf)

	api.Expire()
	sf.Clock.Advance(29 * time.Minute)
	resp := sf.Post(t, "/session/extend", url.Values{"csrf_token": {token}}, true)
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))

	doc := document(t, sf.Get(t, "/", false))
	require.Equal(t, 0, doc.Find("#user-name").Length())
}

func TestLogoutKeepsAnonymousCart(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	token := csrfToken(t, sf)
	sf.Post(t, "/cart/items", url.Values{"product_id": {"p1"}, "csrf_token": {token}}, true)

	login(t, sf, ana)
	resp := sf.Post(t, "/logout", url.Values{"csrf_token": {csrfToken(t, sf)}}, false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	doc := document(t, sf.Get(t, "/", false))
	require.Equal(t, 0, doc.Find("#user-name").Length())
	require.Equal(t, "Hasta pronto", strings.TrimSpace(doc.Find("#toast").Text()))
	require.Equal(t, "1", doc.Find("#cart-count").Text())
}

func TestRegisterSignsInAndRatesPassword(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t)

	doc := document(t, sf.Get(t, "/register/strength?password=abc", true))
	class, _ := doc.Find("#password-strength").Attr("class")
	require.Contains(t, class, "weak")

	token := csrfToken(t, sf)
	resp := sf.Post(t, "/register", url.Values{
		"name":             {"Carla"},
		"email":            {"carla@example.com"},
		"password":         {"secret12"},
		"password_confirm": {"secret1"},
		"csrf_token":       {token},
	}, true)
	doc = document(t, resp)
	require.NotEmpty(t, strings.TrimSpace(doc.Find("#register-form .error-msg").Text()))

	resp = sf.Post(t, "/register", url.Values{
		"name":             {"Carla"},
		"email":            {"carla@example.com"},
		"password":         {"secret12"},
		"password_confirm": {"secret12"},
		"csrf_token":       {token},
	}, true)
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))

	doc = document(t, sf.Get(t, "/", false))
	require.Equal(t, "Hola, Carla", doc.Find("#user-name").Text())
}

func TestProfileUpdate(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)

	resp := sf.Get(t, "/profile", false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	login(t, sf, ana)
	doc := document(t, sf.Get(t, "/profile", false))
	name, _ := doc.Find("#profile-name").Attr("value")
	require.Equal(t, "Ana", name)

	token := csrfToken(t, sf)
	resp = sf.Post(t, "/profile", url.Values{"name": {" Ana María "}, "email": {ana.Email}, "csrf_token": {token}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "¡Cambios guardados!", document(t, resp).Find("#profile-msg").Text())

	doc = document(t, sf.Get(t, "/", false))
	require.Equal(t, "Hola, Ana María", doc.Find("#user-name").Text())

	resp = sf.Post(t, "/profile", url.Values{"name": {""}, "email": {"nope"}, "csrf_token": {token}}, false)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestReviews(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)
	sf.Get(t, "/", false)
	token := csrfToken(t, sf)

	doc := document(t, sf.Get(t, "/products/p1/reviews", true))
	require.Equal(t, "Aún no hay reseñas.", strings.TrimSpace(doc.Find("#reviews p.muted").Text()))
	require.Equal(t, 0, doc.Find("#reviews form").Length())

	resp := sf.Post(t, "/products/p1/reviews", url.Values{"rating": {"5"}, "comment": {"Muy buena"}, "csrf_token": {token}}, true)
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))

	login(t, sf, ana)
	token = csrfToken(t, sf)
	resp = sf.Post(t, "/products/p1/reviews", url.Values{"rating": {"5"}, "comment": {"Muy buena"}, "csrf_token": {token}}, true)
	require.Equal(t, "¡Gracias por tu reseña!", toastOf(t, resp))
	doc = document(t, resp)
	require.Equal(t, 1, doc.Find("#reviews ul.reviews li").Length())
	require.Contains(t, doc.Find("#reviews ul.reviews li").Text(), "Muy buena")
	require.Equal(t, "★★★★★", doc.Find("#reviews .stars").Text())

	resp = sf.Post(t, "/products/p1/reviews", url.Values{"rating": {"9"}, "comment": {"x"}, "csrf_token": {token}}, true)
	require.NotEmpty(t, document(t, resp).Find("#reviews .error-msg").Text())
}

func TestAdminRequiresAdminRole(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, ana)

	resp := sf.Get(t, "/admin", false)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	login(t, sf, ana)
	resp = sf.Get(t, "/admin", true)
	require.Equal(t, "/", resp.Header.Get("HX-Redirect"))

	doc := document(t, sf.Get(t, "/", false))
	require.Equal(t, "Acceso denegado. Debes ser administrador.", strings.TrimSpace(doc.Find("#toast").Text()))
}

func TestAdminPanelListsProductsAndAdmins(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, admin, staff)
	login(t, sf, admin)

	doc := document(t, sf.Get(t, "/", false))
	require.Equal(t, 1, doc.Find("#btn-admin-panel").Length())

	resp := sf.Get(t, "/admin", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = document(t, resp)
	require.Equal(t, 4, doc.Find("#admin-products li").Length())
	require.Equal(t, 2, doc.Find("#admin-list li").Length())
	self := doc.Find(`#admin-list li[data-id="a1"]`)
	require.Contains(t, self.Text(), "(Tú)")
	require.Equal(t, 0, self.Find("button").Length())

	doc = document(t, sf.Get(t, "/admin/products/p2/edit", true))
	price, _ := doc.Find("#prod-price").Attr("value")
	require.Equal(t, "2000", price)
	require.Equal(t, "Actualizar Producto", doc.Find("#btn-submit-prod").Text())
}

func TestAdminDeleteProductNeedsConfirmation(t *testing.T) {
	t.Parallel()
	sf, api := newStorefront(t, admin)
	login(t, sf, admin)
	token := csrfToken(t, sf)

	resp := sf.Post(t, "/admin/products/p1/delete", url.Values{"csrf_token": {token}, "confirm_token": {"bogus"}}, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, api.DeletedProducts)

	doc := document(t, sf.Get(t, "/admin/products/p1/delete", true))
	confirm, ok := doc.Find(`#confirm-modal input[name="confirm_token"]`).Attr("value")
	require.True(t, ok)
	require.Equal(t, "¿Estás seguro de eliminar este producto?", strings.TrimSpace(doc.Find("#confirm-modal p").Text()))

	resp = sf.Post(t, "/admin/products/p2/delete", url.Values{"csrf_token": {token}, "confirm_token": {confirm}}, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, api.DeletedProducts)

	resp = sf.Post(t, "/admin/products/p1/delete", url.Values{"csrf_token": {token}, "confirm_token": {confirm}}, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "Producto eliminado", toastOf(t, resp))
	require.Equal(t, []string{"p1"}, api.DeletedProducts)
}

func productUpload(t *testing.T, csrf string, imageSize int) (string, *bytes.Buffer) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("csrf_token", csrf))
	require.NoError(t, mw.WriteField("name", "Copa Talla S"))
	require.NoError(t, mw.WriteField("price", "12990"))
	part, err := mw.CreateFormFile("image", "copa.jpg")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xff}, imageSize))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return mw.FormDataContentType(), &body
}

func TestMultipartFormTokenAndBodyLimit(t *testing.T) {
	t.Parallel()
	sf, _ := newStorefront(t, admin)
	login(t, sf, admin)
	token := csrfToken(t, sf)

	contentType, body := productUpload(t, token, 1024)
	resp := sf.PostBody(t, "/admin/products", contentType, body, false)
	require.NotEqual(t, http.StatusForbidden, resp.StatusCode)

	contentType, body = productUpload(t, token, 10<<20)
	resp = sf.PostBody(t, "/admin/products", contentType, body, false)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestAdminCannotDeleteSelf(t *testing.T) {
	t.Parallel()
	sf, api := newStorefront(t, admin, staff)
	login(t, sf, admin)

	resp := sf.Get(t, "/admin/admins/a1/delete", true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "No puedes eliminar tu propia cuenta", toastOf(t, resp))

	doc := document(t, sf.Get(t, "/admin/admins/a2/delete", true))
	confirm, _ := doc.Find(`#confirm-modal input[name="confirm_token"]`).Attr("value")
	resp = sf.Post(t, "/admin/admins/a2/delete", url.Values{"csrf_token": {csrfToken(t, sf)}, "confirm_token": {confirm}}, true)
	require.Equal(t, "Administrador eliminado correctamente.", toastOf(t, resp))
	require.True(t, api.Called("DELETE /api/admin/users/a2"))
	require.Equal(t, 1, document(t, resp).Find("#admin-list li").Length())
}

func TestSuperAdminEmailUnlocksPanel(t *testing.T) {
	t.Parallel()
	owner := testutil.Account{ID: "u9", Name: "Dueña", Email: "owner@example.com", Password: "secret1", Role: "cliente"}
	_, ts := testutil.NewBackend(t, owner)
	sf := testutil.NewServer(t, ts.URL, testutil.WithSuperAdmin("owner@example.com"))
	login(t, sf, owner)

	doc := document(t, sf.Get(t, "/", false))
	require.Equal(t, 1, doc.Find("#btn-admin-panel").Length())
}
