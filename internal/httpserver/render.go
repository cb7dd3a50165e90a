package httpserver

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/a-h/templ"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/format"
	"finitefield.org/bloomcare-web/internal/rbac"
	"finitefield.org/bloomcare-web/internal/requestctx"
	"finitefield.org/bloomcare-web/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type renderer struct {
	tmpl     *template.Template
	currency string
	locale   string
}

func newRenderer(currency, locale string) (*renderer, error) {
	funcs := template.FuncMap{
		"money": func(v decimal.Decimal) string {
			return format.FmtCurrency(v, currency, locale)
		},
		"percent": func(v decimal.Decimal) string {
			return format.FmtPercent(v, locale)
		},
		"date": func(t time.Time) string {
			return format.FmtDate(t, locale)
		},
		"markdown":   format.Markdown,
		"plain":      format.PlainText,
		"finalPrice": domain.FinalPrice,
		"savings":    domain.Savings,
		"stars": func(n int) []bool {
			out := make([]bool, domain.MaxRating)
			for i := range out {
				out[i] = i < n
			}
			return out
		},
		"unixMilli": func(t time.Time) int64 {
			if t.IsZero() {
				return 0
			}
			return t.UnixMilli()
		},
		"seconds": func(d time.Duration) int64 {
			return int64(d.Round(time.Second) / time.Second)
		},
	}
	tmpl, err := template.New("_root").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("httpserver: parse templates: %w", err)
	}
	return &renderer{tmpl: tmpl, currency: currency, locale: locale}, nil
}

func (v *renderer) money(amount decimal.Decimal) string {
	return format.FmtCurrency(amount, v.currency, v.locale)
}

// component adapts a named template to a templ component.
func (v *renderer) component(name string, data any) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return v.tmpl.ExecuteTemplate(w, name, data)
	})
}

// render writes the named template with the given status.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	handler := templ.Handler(s.views.component(name, data),
		templ.WithStatus(status),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				requestctx.Logger(r.Context()).Error("render template", zap.String("template", name), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			})
		}),
	)
	handler.ServeHTTP(w, r)
}

// renderPage renders a full page, or only fragment for htmx requests when fragment is set.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, page, fragment string, data *pageData) {
	if fragment != "" && IsHTMXRequest(r.Context()) {
		// htmx only swaps 2xx responses.
		s.render(w, r, http.StatusOK, fragment, data)
		return
	}
	s.render(w, r, status, page, data)
}

// toast queues a notification: as an HX-Trigger event for htmx swaps, in the device state
// for the next full page otherwise.
func toast(w http.ResponseWriter, r *http.Request, msg string) {
	if msg == "" {
		return
	}
	if IsHTMXRequest(r.Context()) {
		payload, err := json.Marshal(map[string]any{"toast": map[string]string{"message": msg}})
		if err == nil {
			w.Header().Set("HX-Trigger", asciiJSON(payload))
			return
		}
	}
	if dev := deviceFromContext(r.Context()); dev != nil {
		dev.state.SetToast(msg)
	}
}

// asciiJSON escapes non-ASCII runes so the payload survives as a header value.
func asciiJSON(b []byte) string {
	var sb strings.Builder
	for _, r := range string(b) {
		if r < utf8.RuneSelf {
			sb.WriteRune(r)
			continue
		}
		if r > 0xFFFF {
			r1, r2 := utf16.EncodeRune(r)
			fmt.Fprintf(&sb, "\\u%04x\\u%04x", r1, r2)
			continue
		}
		fmt.Fprintf(&sb, "\\u%04x", r)
	}
	return sb.String()
}

// pageData is the view model shared by every template.
type pageData struct {
	Title     string
	CSRFToken string
	User      *domain.User
	Caps      rbac.Set
	Toast     string
	Session   sessionView
	Errors    domain.FieldErrors
	Form      map[string]string
	Message   string

	Catalog  *catalogView
	Cart     *cartView
	Product  *productView
	Reviews  *reviewsView
	Admin    *adminView
	Confirm  *confirmView
	Strength domain.Strength
}

// Can reports whether the signed-in user holds the capability.
func (p *pageData) Can(capability string) bool {
	return p.Caps.Can(rbac.Capability(capability))
}

// Field returns a submitted form value for re-rendering.
func (p *pageData) Field(name string) string {
	return p.Form[name]
}

// Error returns the inline error for a form field.
func (p *pageData) Error(name string) string {
	return p.Errors[name]
}

type sessionView struct {
	Phase     string
	Remaining time.Duration
	WarningAt time.Time
	ExpiresAt time.Time
}

func newSessionView(st session.Status) sessionView {
	return sessionView{
		Phase:     st.Phase.String(),
		Remaining: st.Remaining,
		WarningAt: st.WarningAt,
		ExpiresAt: st.ExpiresAt,
	}
}

// newPageData fills the fields every page needs from the device state.
func (s *Server) newPageData(r *http.Request, title string) *pageData {
	data := &pageData{Title: title, Form: map[string]string{}}
	dev := deviceFromContext(r.Context())
	if dev == nil {
		return data
	}
	data.CSRFToken = dev.state.CSRFToken()
	data.User = dev.state.User()
	data.Caps = s.caps(dev)
	data.Session = newSessionView(s.controller.Status(dev.state))
	if !IsHTMXRequest(r.Context()) {
		data.Toast = dev.state.PopToast()
	}
	return data
}
