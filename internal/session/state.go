package session

import (
	"time"

	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/domain"
)

// Data is the device state persisted in the cookie. Keys are short to keep the cookie small.
type Data struct {
	ID         string                 `json:"id"`
	CreatedAt  time.Time              `json:"c"`
	LastActive time.Time              `json:"la"`
	CSRFToken  string                 `json:"x,omitempty"`
	User       *domain.User           `json:"u,omitempty"`
	Backend    []backend.StoredCookie `json:"b,omitempty"`
	Cart       []domain.CartItem      `json:"cart,omitempty"`
	Toast      string                 `json:"t,omitempty"`
	ArmedAt    time.Time              `json:"a"`
}

// State holds one device's state for the current request.
type State struct {
	data      Data
	destroyed bool
}

// ID returns the device session identifier.
func (s *State) ID() string { return s.data.ID }

// CreatedAt returns when the device state was first issued.
func (s *State) CreatedAt() time.Time { return s.data.CreatedAt }

// User returns the current-user projection, nil when anonymous.
func (s *State) User() *domain.User {
	if s.data.User == nil {
		return nil
	}
	u := *s.data.User
	return &u
}

// Authenticated reports whether a user projection is present.
func (s *State) Authenticated() bool { return s.data.User != nil }

// SetUser replaces the current-user projection.
func (s *State) SetUser(u *domain.User) {
	if u == nil {
		s.data.User = nil
		return
	}
	copied := *u
	s.data.User = &copied
}

// BackendCookies returns the backend session cookies.
func (s *State) BackendCookies() []backend.StoredCookie {
	return append([]backend.StoredCookie(nil), s.data.Backend...)
}

// SetBackendCookies stores the backend session cookies.
func (s *State) SetBackendCookies(cookies []backend.StoredCookie) {
	s.data.Backend = append([]backend.StoredCookie(nil), cookies...)
}

// CartLines returns the anonymous cart held on the device.
func (s *State) CartLines() []domain.CartItem {
	return append([]domain.CartItem(nil), s.data.Cart...)
}

// SetCartLines replaces the anonymous cart held on the device.
func (s *State) SetCartLines(items []domain.CartItem) {
	s.data.Cart = append([]domain.CartItem(nil), items...)
}

// SetToast queues a message for the next rendered page.
func (s *State) SetToast(msg string) { s.data.Toast = msg }

// PopToast returns and clears the queued message.
func (s *State) PopToast() string {
	msg := s.data.Toast
	s.data.Toast = ""
	return msg
}

// CSRFToken returns the token bound to this device session.
func (s *State) CSRFToken() string { return s.data.CSRFToken }

// EnsureCSRFToken returns the existing CSRF token or generates one.
func (s *State) EnsureCSRFToken() (string, error) {
	if s.data.CSRFToken != "" {
		return s.data.CSRFToken, nil
	}
	token, err := generateToken(32)
	if err != nil {
		return "", err
	}
	s.data.CSRFToken = token
	return token, nil
}

// RegenerateID issues a fresh identifier and CSRF token, e.g. when the identity changes.
func (s *State) RegenerateID() error {
	token, err := generateToken(32)
	if err != nil {
		return err
	}
	s.data.ID = newID()
	s.data.CSRFToken = token
	return nil
}

// Countdown restores the inactivity countdown with the given timings.
func (s *State) Countdown(t Timings) Countdown {
	return NewCountdown(t, s.data.ArmedAt)
}

// SetCountdown persists the countdown.
func (s *State) SetCountdown(c Countdown) {
	s.data.ArmedAt = c.ArmedAt()
}

// Destroy clears the cookie at the end of the request.
func (s *State) Destroy() { s.destroyed = true }

// Destroyed exposes the destroy marker.
func (s *State) Destroyed() bool { return s.destroyed }

// Touch updates the last active timestamp.
func (s *State) Touch(now time.Time) {
	now = now.UTC()
	if now.After(s.data.LastActive) {
		s.data.LastActive = now
	}
}

// LastActive returns the last access timestamp.
func (s *State) LastActive() time.Time { return s.data.LastActive }

func (s *State) snapshot() Data { return s.data }
