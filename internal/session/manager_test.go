package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/domain"
)

type fixedClock struct {
	current time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.current
}

func (c *fixedClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func newTestManager(t *testing.T) (*Manager, *fixedClock) {
	t.Helper()
	clock := &fixedClock{current: t0}
	mgr, err := NewManager(Config{
		CookieName: "test_state",
		HashKey:    []byte("12345678901234567890123456789012"),
		BlockKey:   []byte("abcdefghijklmnopqrstuv0123456789"),
		Lifetime:   24 * time.Hour,
		Now:        clock.Now,
	})
	require.NoError(t, err)
	return mgr, clock
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func roundTrip(t *testing.T, mgr *Manager, st *State) (*State, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, st))
	cookie := findCookie(rec.Result().Cookies(), "test_state")
	require.NotNil(t, cookie)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	return mgr.Load(req)
}

func TestManagerRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t)

	st, err := mgr.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, st.ID())
	require.False(t, st.Authenticated())

	st.SetUser(&domain.User{ID: "u1", Name: "Ana", Email: "ana@example.com"})
	st.SetBackendCookies([]backend.StoredCookie{{Name: "session", Value: "srv"}})
	st.SetCartLines([]domain.CartItem{{ProductID: "p1", Name: "Copa", Price: decimal.NewFromInt(1000), Qty: 2}})
	st.SetToast("hola")
	token, err := st.EnsureCSRFToken()
	require.NoError(t, err)
	cd := st.Countdown(DefaultTimings())
	cd.Arm(t0)
	st.SetCountdown(cd)

	loaded, err := roundTrip(t, mgr, st)
	require.NoError(t, err)
	require.Equal(t, st.ID(), loaded.ID())
	require.Equal(t, "Ana", loaded.User().Name)
	require.Equal(t, "srv", loaded.BackendCookies()[0].Value)
	require.Equal(t, 2, loaded.CartLines()[0].Qty)
	require.Equal(t, token, loaded.CSRFToken())
	require.True(t, loaded.Countdown(DefaultTimings()).ArmedAt().Equal(t0))
	require.Equal(t, "hola", loaded.PopToast())
	require.Empty(t, loaded.PopToast())
}

func TestManagerRejectsTamperedCookie(t *testing.T) {
	mgr, _ := newTestManager(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "test_state", Value: "garbage"})

	st, err := mgr.Load(req)
	require.NoError(t, err)
	require.False(t, st.Authenticated())
}

func TestManagerIdleExpiry(t *testing.T) {
	mgr, clock := newTestManager(t)
	st := mgr.New()
	st.SetUser(&domain.User{Name: "Ana", Email: "ana@example.com"})

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, st))
	cookie := findCookie(rec.Result().Cookies(), "test_state")

	clock.Advance(25 * time.Hour)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	fresh, err := mgr.Load(req)
	require.True(t, errors.Is(err, ErrExpired))
	require.NotNil(t, fresh)
	require.False(t, fresh.Authenticated())
}

func TestManagerDestroy(t *testing.T) {
	mgr, _ := newTestManager(t)
	st := mgr.New()
	st.Destroy()

	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, st))
	cookie := findCookie(rec.Result().Cookies(), "test_state")
	require.NotNil(t, cookie)
	require.Equal(t, -1, cookie.MaxAge)
}

func TestRegenerateIDRotatesCSRF(t *testing.T) {
	mgr, _ := newTestManager(t)
	st := mgr.New()
	token, err := st.EnsureCSRFToken()
	require.NoError(t, err)
	id := st.ID()

	require.NoError(t, st.RegenerateID())
	require.NotEqual(t, id, st.ID())
	require.NotEqual(t, token, st.CSRFToken())
}

func TestNewManagerRequiresHashKey(t *testing.T) {
	_, err := NewManager(Config{})
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewManager(Config{HashKey: []byte("k"), BlockKey: []byte("short")})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManagerFitsCart(t *testing.T) {
	mgr, _ := newTestManager(t)
	st := mgr.New()
	_, err := st.EnsureCSRFToken()
	require.NoError(t, err)

	lines := func(n int) []domain.CartItem {
		items := make([]domain.CartItem, n)
		for i := range items {
			items[i] = domain.CartItem{
				ProductID: fmt.Sprintf("01J%023d", i),
				Name:      fmt.Sprintf("Copa menstrual reutilizable talla %d", i),
				Price:     decimal.NewFromInt(15990),
				Qty:       1,
			}
		}
		return items
	}

	require.NoError(t, mgr.FitsCart(st, lines(3)))
	require.ErrorIs(t, mgr.FitsCart(st, lines(40)), ErrTooLarge)

	st.SetCartLines(lines(3))
	rec := httptest.NewRecorder()
	require.NoError(t, mgr.Save(rec, st))
}
