package session

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/oklog/ulid/v2"

	"finitefield.org/bloomcare-web/internal/domain"
)

const (
	defaultCookieName = "bloomcare"
	defaultCookiePath = "/"
	defaultLifetime   = 30 * 24 * time.Hour
	// maxEncoded is securecookie's default length limit; headroom leaves space for a pending
	// toast and a refreshed CSRF token written later in the request.
	maxEncoded = 4096
	headroom   = 256
)

// ErrExpired indicates the stored device state outlived the cookie lifetime.
var ErrExpired = errors.New("session expired")

// ErrTooLarge indicates the encoded device state would not fit in one cookie.
var ErrTooLarge = errors.New("session: device state too large")

// ErrInvalidConfig indicates the manager was initialised with missing or invalid options.
var ErrInvalidConfig = errors.New("session: invalid config")

// Config controls cookie encoding and lifetime.
type Config struct {
	CookieName     string
	HashKey        []byte
	BlockKey       []byte
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
	// Lifetime is a sliding idle limit for the device cookie; the anonymous cart lives this long.
	Lifetime time.Duration
	Now      func() time.Time
}

// Manager decodes and persists device state via signed and encrypted cookies.
type Manager struct {
	cfg   Config
	codec *securecookie.SecureCookie
	now   func() time.Time
}

// NewManager constructs a Manager using the provided configuration.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.HashKey) == 0 {
		return nil, fmt.Errorf("%w: hash key is required", ErrInvalidConfig)
	}
	if n := len(cfg.BlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return nil, fmt.Errorf("%w: block key must be 16, 24 or 32 bytes", ErrInvalidConfig)
	}
	if cfg.CookieName == "" {
		cfg.CookieName = defaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = defaultCookiePath
	}
	if cfg.Lifetime <= 0 {
		cfg.Lifetime = defaultLifetime
	}
	if cfg.CookieSameSite == http.SameSiteDefaultMode {
		cfg.CookieSameSite = http.SameSiteLaxMode
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}

	codec := securecookie.New(cfg.HashKey, cfg.BlockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(int(cfg.Lifetime.Seconds()))

	return &Manager{cfg: cfg, codec: codec, now: nowFn}, nil
}

// Load retrieves the device state from the request. A missing or undecodable cookie yields a
// fresh state. An idle-expired cookie yields a fresh state together with ErrExpired.
func (m *Manager) Load(r *http.Request) (*State, error) {
	cookie, err := r.Cookie(m.cfg.CookieName)
	if err != nil {
		return m.New(), nil
	}
	var stored Data
	if err := m.codec.Decode(m.cfg.CookieName, cookie.Value, &stored); err != nil {
		return m.New(), nil
	}
	if stored.ID == "" {
		return m.New(), nil
	}
	now := m.now().UTC()
	if !stored.LastActive.IsZero() && now.Sub(stored.LastActive) > m.cfg.Lifetime {
		return m.New(), ErrExpired
	}
	return &State{data: stored}, nil
}

// Save writes the state back to the response as a cookie. Destroyed states clear the cookie.
func (m *Manager) Save(w http.ResponseWriter, st *State) error {
	if st == nil {
		return errors.New("session: nil state")
	}
	if st.destroyed {
		http.SetCookie(w, m.expiredCookie())
		return nil
	}

	now := m.now()
	st.Touch(now)
	encoded, err := m.codec.Encode(m.cfg.CookieName, st.snapshot())
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	expiry := now.Add(m.cfg.Lifetime).UTC()
	http.SetCookie(w, &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    encoded,
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		Expires:  expiry,
		MaxAge:   int(m.cfg.Lifetime.Round(time.Second).Seconds()),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	})
	return nil
}

// FitsCart reports whether st would still encode with items as its anonymous cart.
func (m *Manager) FitsCart(st *State, items []domain.CartItem) error {
	data := st.snapshot()
	data.Cart = items
	encoded, err := m.codec.Encode(m.cfg.CookieName, data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTooLarge, err)
	}
	if len(encoded)+headroom > maxEncoded {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(encoded))
	}
	return nil
}

// Destroy invalidates the cookie immediately.
func (m *Manager) Destroy(w http.ResponseWriter) {
	http.SetCookie(w, m.expiredCookie())
}

// New returns a fresh anonymous device state.
func (m *Manager) New() *State {
	now := m.now().UTC()
	return &State{data: Data{
		ID:         newID(),
		CreatedAt:  now,
		LastActive: now,
	}}
}

func (m *Manager) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    "",
		Path:     m.cfg.CookiePath,
		Domain:   m.cfg.CookieDomain,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: m.cfg.CookieSameSite,
	}
}

func newID() string {
	return ulid.Make().String()
}

func generateToken(length int) (string, error) {
	if length <= 0 {
		length = 32
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
