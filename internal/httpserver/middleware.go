package httpserver

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/observability"
	"finitefield.org/bloomcare-web/internal/rbac"
	"finitefield.org/bloomcare-web/internal/requestctx"
	"finitefield.org/bloomcare-web/internal/session"
)

type contextKey string

const (
	htmxContextKey   contextKey = "htmx.info"
	deviceContextKey contextKey = "device"
)

const (
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"

	msgAccessDenied = "Acceso denegado. Debes ser administrador."
	msgLoginFirst   = "Debes iniciar sesión para continuar."
)

// HTMXInfo captures request metadata from HX-* headers.
type HTMXInfo struct {
	IsHTMX bool
	Target string
}

// HTMX returns middleware that inspects HX-* headers and annotates the context.
func HTMX() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info := HTMXInfo{
				IsHTMX: strings.EqualFold(r.Header.Get("HX-Request"), "true"),
				Target: r.Header.Get("HX-Target"),
			}
			w.Header().Add("Vary", "HX-Request")
			ctx := context.WithValue(r.Context(), htmxContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HTMXInfoFromContext retrieves HTMX metadata; returns zero value if absent.
func HTMXInfoFromContext(ctx context.Context) HTMXInfo {
	info, _ := ctx.Value(htmxContextKey).(HTMXInfo)
	return info
}

// IsHTMXRequest returns true when the current request was initiated by htmx.
func IsHTMXRequest(ctx context.Context) bool {
	return HTMXInfoFromContext(ctx).IsHTMX
}

// NoStore disables caching of personalised pages.
func NoStore() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		})
	}
}

// device is the per-request view of one browser: its decoded state and its backend session.
type device struct {
	state *session.State
	api   *backend.Session
}

func deviceFromContext(ctx context.Context) *device {
	d, _ := ctx.Value(deviceContextKey).(*device)
	return d
}

// Device loads the device state cookie, restores the backend session from it and writes the
// updated state back just before the response is committed.
func (s *Server) Device() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := requestctx.Logger(r.Context())
			st, err := s.sessions.Load(r)
			if errors.Is(err, session.ErrExpired) {
				logger.Info("device state expired, starting fresh")
			}
			if _, err := st.EnsureCSRFToken(); err != nil {
				logger.Error("issue csrf token", zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			dev := &device{state: st, api: s.backend.Session(st.BackendCookies())}

			ctx := context.WithValue(r.Context(), deviceContextKey, dev)
			if u := st.User(); u != nil {
				ctx = requestctx.WithUserID(ctx, u.ID)
				observability.RecordUser(ctx, u.ID)
			}

			sw := &stateWriter{ResponseWriter: w, commit: func(w http.ResponseWriter) {
				if st.Authenticated() {
					st.SetBackendCookies(dev.api.Cookies())
				} else {
					st.SetBackendCookies(nil)
				}
				if err := s.sessions.Save(w, st); err != nil {
					logger.Error("save device state", zap.Error(err))
				}
			}}
			next.ServeHTTP(sw, r.WithContext(ctx))
			sw.flush()
		})
	}
}

// stateWriter runs commit once, before the first header or body byte is written.
type stateWriter struct {
	http.ResponseWriter
	commit    func(http.ResponseWriter)
	committed bool
}

func (w *stateWriter) flush() {
	if w.committed {
		return
	}
	w.committed = true
	w.commit(w.ResponseWriter)
}

func (w *stateWriter) WriteHeader(status int) {
	w.flush()
	w.ResponseWriter.WriteHeader(status)
}

func (w *stateWriter) Write(b []byte) (int, error) {
	w.flush()
	return w.ResponseWriter.Write(b)
}

func (w *stateWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// CSRF verifies that unsafe requests echo the device's token in the X-CSRF-Token header or
// the csrf_token form field. Bodies are capped at maxBody before any form parsing.
func CSRF(maxBody int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isUnsafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			dev := deviceFromContext(r.Context())
			if dev == nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBody)
			submitted := r.Header.Get(csrfHeaderName)
			if submitted == "" {
				if err := parseForm(r, maxBody); err != nil {
					var tooLarge *http.MaxBytesError
					if errors.As(err, &tooLarge) {
						http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
						return
					}
				}
				submitted = r.PostFormValue(csrfFormField)
			}
			token := dev.state.CSRFToken()
			if submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(token)) != 1 {
				requestctx.Logger(r.Context()).Warn("csrf token mismatch")
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseForm(r *http.Request, maxMemory int64) error {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.ParseMultipartForm(maxMemory)
	}
	return r.ParseForm()
}

func isUnsafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	default:
		return true
	}
}

// Lifecycle enforces the inactivity countdown and records the request as user activity.
// An expired session is logged out and the browser is sent back to the storefront.
func (s *Server) Lifecycle() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dev := deviceFromContext(r.Context())
			if dev == nil || !dev.state.Authenticated() {
				next.ServeHTTP(w, r)
				return
			}
			if s.controller.Enforce(r.Context(), dev.state, dev.api) == session.PhaseExpired {
				requestctx.Logger(r.Context()).Info("session expired by inactivity")
				if r.URL.Path != "/" || r.Method != http.MethodGet {
					redirect(w, r, "/")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			s.controller.Activity(r.Context(), dev.state, dev.api)
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin keeps non-admin projections out of the admin panel. The backend remains the
// authority on every admin call.
func (s *Server) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			dev := deviceFromContext(r.Context())
			if dev == nil || !s.caps(dev).Can(rbac.CapCatalogManage) {
				if dev != nil {
					dev.state.SetToast(msgAccessDenied)
				}
				redirect(w, r, "/")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) caps(dev *device) rbac.Set {
	return rbac.For(dev.state.User(), s.cfg.SuperAdminEmail)
}

// redirect sends the browser to target; htmx requests get an HX-Redirect instead of a 303.
func redirect(w http.ResponseWriter, r *http.Request, target string) {
	if IsHTMXRequest(r.Context()) {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
