package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"finitefield.org/bloomcare-web/internal/backend"
	"finitefield.org/bloomcare-web/internal/domain"
	"finitefield.org/bloomcare-web/internal/requestctx"
)

// Toast messages queued by the controller.
const (
	ToastLoggedOut = "Hasta pronto"
	ToastExpired   = "Tu sesión ha expirado por inactividad."
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in user.
	ErrNotAuthenticated = errors.New("session: not authenticated")
	// ErrSessionEnded is returned when the backend no longer recognises the session.
	ErrSessionEnded = errors.New("session: backend session ended")
)

// AccountAPI is the backend surface the controller drives for one device.
type AccountAPI interface {
	Register(ctx context.Context, name, email, password string) error
	Login(ctx context.Context, email, password string) (domain.User, error)
	Logout(ctx context.Context) error
	CheckSession(ctx context.Context) (bool, error)
	UpdateProfile(ctx context.Context, id, name, email string) error
	Cookies() []backend.StoredCookie
}

// Controller runs authentication and the inactivity countdown against a device State.
type Controller struct {
	timings Timings
	now     func() time.Time
}

// NewController builds a controller. A nil clock uses time.Now.
func NewController(t Timings, now func() time.Time) *Controller {
	if t.Lifetime <= 0 {
		t = DefaultTimings()
	}
	if now == nil {
		now = time.Now
	}
	return &Controller{timings: t, now: now}
}

// Timings returns the configured countdown timings.
func (c *Controller) Timings() Timings { return c.timings }

// Probe asks the backend whether the session is alive. A negative answer drops the cached
// projection whatever it says; a network error leaves the state untouched.
func (c *Controller) Probe(ctx context.Context, st *State, api AccountAPI) error {
	ok, err := api.CheckSession(ctx)
	if err != nil {
		return err
	}
	cd := st.Countdown(c.timings)
	if !ok {
		if st.Authenticated() {
			requestctx.Logger(ctx).Info("backend session gone, clearing projection")
		}
		st.SetUser(nil)
		cd.Disarm()
		st.SetCountdown(cd)
		return nil
	}
	if st.Authenticated() && !cd.Armed() {
		cd.Arm(c.now())
		st.SetCountdown(cd)
	}
	return nil
}

// Register creates the account and keeps an optimistic projection of the submitted identity.
// The backend does not open a session on registration, so a login with the same credentials
// follows; when it fails the projection stays pending.
func (c *Controller) Register(ctx context.Context, st *State, api AccountAPI, in domain.RegisterInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if err := api.Register(ctx, name, email, in.Password); err != nil {
		return err
	}
	if err := st.RegenerateID(); err != nil {
		return err
	}
	st.SetUser(&domain.User{Name: name, Email: email, Pending: true})
	c.arm(st)

	user, err := api.Login(ctx, email, in.Password)
	if err != nil {
		requestctx.Logger(ctx).Warn("login after registration failed", zap.Error(err))
		return nil
	}
	st.SetUser(&user)
	st.SetBackendCookies(api.Cookies())
	return nil
}

// Login authenticates and replaces the projection with the server-confirmed identity.
func (c *Controller) Login(ctx context.Context, st *State, api AccountAPI, in domain.LoginInput) error {
	if err := in.Validate(); err != nil {
		return err
	}
	user, err := api.Login(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		return err
	}
	if err := st.RegenerateID(); err != nil {
		return err
	}
	st.SetUser(&user)
	st.SetBackendCookies(api.Cookies())
	c.arm(st)
	return nil
}

// Logout disarms the countdown, tells the backend (best effort) and returns the device to
// anonymous. The device's anonymous cart is left as it was.
func (c *Controller) Logout(ctx context.Context, st *State, api AccountAPI) {
	c.logout(ctx, st, api)
	st.SetToast(ToastLoggedOut)
}

func (c *Controller) logout(ctx context.Context, st *State, api AccountAPI) {
	cd := st.Countdown(c.timings)
	cd.Disarm()
	st.SetCountdown(cd)
	if err := api.Logout(ctx); err != nil {
		requestctx.Logger(ctx).Warn("backend logout failed", zap.Error(err))
	}
	st.SetUser(nil)
	st.SetBackendCookies(nil)
	if err := st.RegenerateID(); err != nil {
		requestctx.Logger(ctx).Error("regenerate session id", zap.Error(err))
	}
}

// Activity records a user action. Outside the throttle window it rearms the countdown and
// pings the backend to keep its session alive. It reports whether it rearmed.
func (c *Controller) Activity(ctx context.Context, st *State, api AccountAPI) bool {
	if !st.Authenticated() {
		return false
	}
	cd := st.Countdown(c.timings)
	if !cd.Activity(c.now()) {
		return false
	}
	st.SetCountdown(cd)
	if _, err := api.CheckSession(ctx); err != nil {
		requestctx.Logger(ctx).Debug("keep-alive ping failed", zap.Error(err))
	}
	return true
}

// Extend pings the backend and rearms the countdown from zero. It is the only way to dismiss
// the expiry warning without logging out.
func (c *Controller) Extend(ctx context.Context, st *State, api AccountAPI) error {
	if !st.Authenticated() {
		return ErrNotAuthenticated
	}
	if st.Countdown(c.timings).Phase(c.now()) == PhaseExpired {
		c.Enforce(ctx, st, api)
		return ErrSessionEnded
	}
	ok, err := api.CheckSession(ctx)
	if err != nil {
		return err
	}
	if !ok {
		c.logout(ctx, st, api)
		st.SetToast(ToastExpired)
		return ErrSessionEnded
	}
	c.arm(st)
	return nil
}

// Enforce evaluates the countdown; once it has expired the device is logged out with an
// expiry notice. It returns the phase observed before enforcement.
func (c *Controller) Enforce(ctx context.Context, st *State, api AccountAPI) Phase {
	phase := st.Countdown(c.timings).Phase(c.now())
	if phase == PhaseExpired {
		c.logout(ctx, st, api)
		st.SetToast(ToastExpired)
	}
	return phase
}

// UpdateProfile saves the user's name and email and refreshes the projection.
func (c *Controller) UpdateProfile(ctx context.Context, st *State, api AccountAPI, in domain.ProfileInput) error {
	user := st.User()
	if user == nil {
		return ErrNotAuthenticated
	}
	if err := in.Validate(); err != nil {
		return err
	}
	name := strings.TrimSpace(in.Name)
	email := strings.TrimSpace(in.Email)
	if err := api.UpdateProfile(ctx, user.ID, name, email); err != nil {
		return err
	}
	user.Name = name
	user.Email = email
	st.SetUser(user)
	return nil
}

// Status is the countdown as seen by the status poll.
type Status struct {
	Phase     Phase
	Remaining time.Duration
	WarningAt time.Time
	ExpiresAt time.Time
}

// Status reports the countdown without touching it.
func (c *Controller) Status(st *State) Status {
	now := c.now()
	cd := st.Countdown(c.timings)
	return Status{
		Phase:     cd.Phase(now),
		Remaining: cd.Remaining(now),
		WarningAt: cd.WarningAt(),
		ExpiresAt: cd.ExpiresAt(),
	}
}

func (c *Controller) arm(st *State) {
	cd := st.Countdown(c.timings)
	cd.Arm(c.now())
	st.SetCountdown(cd)
}
