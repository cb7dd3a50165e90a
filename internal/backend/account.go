package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"finitefield.org/bloomcare-web/internal/domain"
)

type credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account with POST /registro. The backend does not open a session.
func (s *Session) Register(ctx context.Context, name, email, password string) error {
	body, err := jsonBody(credentials{Name: name, Email: email, Password: password})
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "register",
		method:      http.MethodPost,
		path:        []string{"registro"},
		body:        body,
		contentType: "application/json",
	})
	return err
}

type loginPayload struct {
	User json.RawMessage `json:"user"`
}

// Login authenticates with POST /login and returns the server-confirmed identity. The
// backend session cookie lands in the session jar.
func (s *Session) Login(ctx context.Context, email, password string) (domain.User, error) {
	body, err := jsonBody(credentials{Email: email, Password: password})
	if err != nil {
		return domain.User{}, err
	}
	raw, err := s.client.do(ctx, s.http, request{
		op:          "login",
		method:      http.MethodPost,
		path:        []string{"login"},
		body:        body,
		contentType: "application/json",
	})
	if err != nil {
		return domain.User{}, err
	}
	var payload loginPayload
	if err := decodeInto("login", raw, &payload); err != nil {
		return domain.User{}, err
	}
	user, err := domain.DecodeUser(payload.User)
	if err != nil {
		return domain.User{}, fmt.Errorf("backend: login: %w", err)
	}
	return user, nil
}

// Logout ends the backend session with GET /logout.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.client.do(ctx, s.http, request{
		op:     "logout",
		method: http.MethodGet,
		path:   []string{"logout"},
	})
	return err
}

// CheckSession probes GET /api/session. It doubles as the keep-alive ping.
func (s *Session) CheckSession(ctx context.Context) (bool, error) {
	_, err := s.client.do(ctx, s.http, request{
		op:     "check_session",
		method: http.MethodGet,
		path:   []string{"api", "session"},
	})
	var apiErr *APIError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &apiErr):
		return false, nil
	default:
		return false, err
	}
}

type profilePayload struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// UpdateProfile saves the user's name and email with PUT /api/profile.
func (s *Session) UpdateProfile(ctx context.Context, id, name, email string) error {
	body, err := jsonBody(profilePayload{ID: id, Name: name, Email: email})
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, s.http, request{
		op:          "update_profile",
		method:      http.MethodPut,
		path:        []string{"api", "profile"},
		body:        body,
		contentType: "application/json",
	})
	return err
}
