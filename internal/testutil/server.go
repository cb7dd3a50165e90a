package testutil

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"finitefield.org/bloomcare-web/internal/admin"
	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/catalog"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/httpserver"
	"finitefield.org/bloomcare-web/internal/session"
)

// Clock is a settable clock shared by the session manager and controller.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at t.
func NewClock(t time.Time) *Clock { return &Clock{now: t} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Products is the catalog served by test storefronts.
func Products() []domain.Product {
	return []domain.Product{
		{ID: "p1", Name: "Compresas Suaves", Description: "Paquete de **20** compresas.", Price: decimal.NewFromInt(1000), Image: "/img/1.jpg"},
		{ID: "p2", Name: "Protectores Diarios", Description: "Discretos.", Price: decimal.NewFromInt(2000), Discount: decimal.NewFromInt(25), Image: "/img/2.jpg"},
		{ID: "p3", Name: "Copas Menstruales", Description: "Reutilizable.", Price: decimal.NewFromInt(15990), Image: "/img/3.jpg"},
		{ID: "p4", Name: "Toallitas Íntimas", Description: "Frescor.", Price: decimal.NewFromInt(3500), Discount: decimal.NewFromInt(10), Image: "/img/4.jpg"},
	}
}

// Storefront is a running storefront plus a browser-like client for it.
type Storefront struct {
	URL    string
	Clock  *Clock
	Client *http.Client
}

// ServerOption customises the storefront configuration for tests.
type ServerOption func(*httpserver.Config)

// WithSuperAdmin sets the email treated as admin regardless of role.
func WithSuperAdmin(email string) ServerOption {
	return func(cfg *httpserver.Config) {
		cfg.SuperAdminEmail = email
	}
}

// NewServer starts the storefront against backendURL with the static test catalog.
func NewServer(t testing.TB, backendURL string, opts ...ServerOption) *Storefront {
	t.Helper()

	clock := NewClock(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))
	cfg := httpserver.Config{
		Address:        ":0",
		RequestTimeout: 5 * time.Second,
		PageSize:       3,
		CarouselSize:   1,
		Currency:       "CLP",
		Locale:         "es-CL",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	source := catalog.NewStaticSource(Products())
	loader, err := catalog.NewLoader(source, 64)
	if err != nil {
		t.Fatalf("catalog loader: %v", err)
	}
	key := []byte(strings.Repeat("k", 32))
	sessions, err := session.NewManager(session.Config{
		CookieName: "bloomcare_test",
		HashKey:    key,
		BlockKey:   []byte(strings.Repeat("b", 32)),
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	confirmer, err := admin.NewConfirmer(key, 0, clock.Now)
	if err != nil {
		t.Fatalf("confirmer: %v", err)
	}

	srv, err := httpserver.NewServer(cfg, httpserver.Deps{
		Backend:    backend.NewClient(backendURL, backend.WithTimeout(2*time.Second)),
		Catalog:    loader,
		Sessions:   sessions,
		Controller: session.NewController(session.DefaultTimings(), clock.Now),
		Panel:      admin.NewPanel(source, loader, 50),
		Confirmer:  confirmer,
	})
	if err != nil {
		t.Fatalf("storefront: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &Storefront{
		URL:   ts.URL,
		Clock: clock,
		Client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Get issues a GET, as htmx when hx is set.
func (s *Storefront) Get(t testing.TB, path string, hx bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if hx {
		req.Header.Set("HX-Request", "true")
	}
	return s.do(t, req)
}

// Post submits form values, as htmx when hx is set. The CSRF token is not added.
func (s *Storefront) Post(t testing.TB, path string, form url.Values, hx bool) *http.Response {
	t.Helper()
	return s.PostBody(t, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), hx)
}

// PostBody submits a raw body with the given content type, as htmx when hx is set.
func (s *Storefront) PostBody(t testing.TB, path, contentType string, body io.Reader, hx bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	if hx {
		req.Header.Set("HX-Request", "true")
	}
	return s.do(t, req)
}

func (s *Storefront) do(t testing.TB, req *http.Request) *http.Response {
	t.Helper()
	resp, err := s.Client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// Document parses an HTML response body (a full page or an htmx fragment) for goquery assertions.
func Document(t testing.TB, resp *http.Response) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		t.Fatalf("%s %s: parse html: %v", resp.Request.Method, resp.Request.URL.Path, err)
	}
	return doc
}
