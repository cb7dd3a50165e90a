package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
	"finitefield.org/bloomcare-web/internal/session"
)

const (
	msgWelcome      = "¡Bienvenida/o!"
	msgRegistered   = "Registro correcto. Sesión iniciada."
	msgProfileSaved = "¡Cambios guardados!"
	msgExtended     = "Sesión extendida"
)

var strengthLabels = map[domain.Strength]string{
	domain.StrengthWeak:   "Débil (mínimo 6 caracteres)",
	domain.StrengthMedium: "Media",
	domain.StrengthStrong: "Fuerte",
}

// Login authenticates the device against the backend.
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	in := domain.LoginInput{Email: r.FormValue("email"), Password: r.FormValue("password")}

	if err := s.controller.Login(ctx, dev.state, dev.api, in); err != nil {
		requestctx.Logger(ctx).Info("login rejected", zap.Error(err))
		s.authFailed(w, r, "login", err, map[string]string{"email": in.Email})
		return
	}
	// The id and CSRF token rotated, so htmx clients reload the page too.
	dev.state.SetToast(msgWelcome)
	redirect(w, r, "/")
}

// Register creates an account and signs it in.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	in := domain.RegisterInput{
		Name:            r.FormValue("name"),
		Email:           r.FormValue("email"),
		Password:        r.FormValue("password"),
		PasswordConfirm: r.FormValue("password_confirm"),
	}

	if err := s.controller.Register(ctx, dev.state, dev.api, in); err != nil {
		requestctx.Logger(ctx).Info("registration rejected", zap.Error(err))
		s.authFailed(w, r, "register", err, map[string]string{"name": in.Name, "email": in.Email})
		return
	}
	dev.state.SetToast(msgRegistered)
	redirect(w, r, "/")
}

func (s *Server) authFailed(w http.ResponseWriter, r *http.Request, form string, err error, values map[string]string) {
	fe := fieldErrors(err)
	var validation domain.FieldErrors
	if !errors.As(err, &validation) {
		fe = domain.FieldErrors{"form": userMessage(err, "No se pudo completar la solicitud.")}
	}
	if !IsHTMXRequest(r.Context()) {
		for _, key := range []string{"form", "name", "email", "password", "password_confirm"} {
			if msg, ok := fe[key]; ok {
				toast(w, r, msg)
				break
			}
		}
		redirect(w, r, "/")
		return
	}
	data := s.newPageData(r, "BloomCare")
	data.Errors = fe
	data.Form = values
	data.Form["active"] = form
	s.render(w, r, http.StatusOK, "auth", data)
}

// PasswordStrength renders the strength hint shown while typing a new password.
func (s *Server) PasswordStrength(w http.ResponseWriter, r *http.Request) {
	data := s.newPageData(r, "")
	data.Strength = domain.PasswordStrength(r.URL.Query().Get("password"))
	data.Message = strengthLabels[data.Strength]
	s.render(w, r, http.StatusOK, "strength", data)
}

// Logout ends the session; the anonymous cart on this device is kept.
func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	dev := deviceFromContext(r.Context())
	s.controller.Logout(r.Context(), dev.state, dev.api)
	redirect(w, r, "/")
}

type statusPayload struct {
	Phase            string `json:"phase"`
	RemainingSeconds int64  `json:"remainingSeconds"`
	WarningAt        int64  `json:"warningAt,omitempty"`
	ExpiresAt        int64  `json:"expiresAt,omitempty"`
}

// SessionStatus reports the countdown. It is polled by the page and does not count as
// activity; an expired session is still enforced.
func (s *Server) SessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	if dev.state.Authenticated() && s.controller.Enforce(ctx, dev.state, dev.api) == session.PhaseExpired {
		redirect(w, r, "/")
		return
	}

	if IsHTMXRequest(ctx) {
		s.render(w, r, http.StatusOK, "session_status", s.newPageData(r, ""))
		return
	}
	st := s.controller.Status(dev.state)
	payload := statusPayload{
		Phase:            st.Phase.String(),
		RemainingSeconds: int64(st.Remaining.Seconds()),
	}
	if !st.WarningAt.IsZero() {
		payload.WarningAt = st.WarningAt.UnixMilli()
		payload.ExpiresAt = st.ExpiresAt.UnixMilli()
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		requestctx.Logger(ctx).Warn("encode session status", zap.Error(err))
	}
}

// ExtendSession keeps the session alive and dismisses the expiry warning.
func (s *Server) ExtendSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	err := s.controller.Extend(ctx, dev.state, dev.api)
	switch {
	case errors.Is(err, session.ErrSessionEnded), errors.Is(err, session.ErrNotAuthenticated):
		redirect(w, r, "/")
		return
	case err != nil:
		requestctx.Logger(ctx).Warn("extend session failed", zap.Error(err))
		data := s.newPageData(r, "")
		data.Message = userMessage(err, msgConnection)
		s.render(w, r, http.StatusOK, "session_status", data)
		return
	}
	if !IsHTMXRequest(ctx) {
		redirect(w, r, "/")
		return
	}
	toast(w, r, msgExtended)
	s.render(w, r, http.StatusOK, "session_status", s.newPageData(r, ""))
}

// Profile renders the account page.
func (s *Server) Profile(w http.ResponseWriter, r *http.Request) {
	dev := deviceFromContext(r.Context())
	user := dev.state.User()
	if user == nil {
		dev.state.SetToast(msgLoginFirst)
		redirect(w, r, "/")
		return
	}
	data := s.newPageData(r, "Mi perfil")
	data.Form["name"] = user.Name
	data.Form["email"] = user.Email
	data.Cart = s.loadCart(r.Context(), dev)
	s.render(w, r, http.StatusOK, "profile", data)
}

// UpdateProfile saves the account's name and email.
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dev := deviceFromContext(ctx)
	in := domain.ProfileInput{Name: r.FormValue("name"), Email: r.FormValue("email")}

	err := s.controller.UpdateProfile(ctx, dev.state, dev.api, in)
	if errors.Is(err, session.ErrNotAuthenticated) {
		dev.state.SetToast(msgLoginFirst)
		redirect(w, r, "/")
		return
	}

	data := s.newPageData(r, "Mi perfil")
	data.Form["name"] = in.Name
	data.Form["email"] = in.Email
	status := http.StatusOK
	if err != nil {
		var fe domain.FieldErrors
		if errors.As(err, &fe) {
			data.Errors = fe
		} else {
			requestctx.Logger(ctx).Warn("profile update failed", zap.Error(err))
			data.Errors = domain.FieldErrors{"form": userMessage(err, msgConnection)}
		}
		status = http.StatusUnprocessableEntity
	} else {
		data.Message = msgProfileSaved
	}
	data.Cart = s.loadCart(ctx, dev)
	s.renderPage(w, r, status, "profile", "profile_form", data)
}
