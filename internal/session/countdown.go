package session

import "time"

// Default inactivity timings. Lifetime must match the backend's session lifetime.
const (
	DefaultWarning  = 28 * time.Minute
	DefaultLifetime = 30 * time.Minute
	DefaultThrottle = time.Minute
)

// Phase is the countdown position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseWarning
	PhaseExpired
)

func (p Phase) String() string {
	switch p {
	case PhaseArmed:
		return "armed"
	case PhaseWarning:
		return "warning"
	case PhaseExpired:
		return "expired"
	default:
		return "idle"
	}
}

// Timings configures the countdown.
type Timings struct {
	Warning  time.Duration
	Lifetime time.Duration
	Throttle time.Duration
}

// DefaultTimings returns the stock 28m warning, 30m lifetime and 60s throttle.
func DefaultTimings() Timings {
	return Timings{Warning: DefaultWarning, Lifetime: DefaultLifetime, Throttle: DefaultThrottle}
}

// Countdown is the two-deadline inactivity timer. It holds only the time it was last armed;
// both deadlines derive from it, so rearming always replaces any pending deadline.
type Countdown struct {
	timings Timings
	armedAt time.Time
}

// NewCountdown restores a countdown armed at armedAt. A zero armedAt is idle.
func NewCountdown(t Timings, armedAt time.Time) Countdown {
	return Countdown{timings: t, armedAt: armedAt}
}

// Arm starts both deadlines from now.
func (c *Countdown) Arm(now time.Time) {
	c.armedAt = now.UTC()
}

// Disarm cancels both deadlines.
func (c *Countdown) Disarm() {
	c.armedAt = time.Time{}
}

// Armed reports whether deadlines are pending.
func (c Countdown) Armed() bool {
	return !c.armedAt.IsZero()
}

// ArmedAt returns when the countdown was last armed.
func (c Countdown) ArmedAt() time.Time {
	return c.armedAt
}

// WarningAt is the instant the expiry warning shows. Zero when idle.
func (c Countdown) WarningAt() time.Time {
	if !c.Armed() {
		return time.Time{}
	}
	return c.armedAt.Add(c.timings.Warning)
}

// ExpiresAt is the instant of the forced logout. Zero when idle.
func (c Countdown) ExpiresAt() time.Time {
	if !c.Armed() {
		return time.Time{}
	}
	return c.armedAt.Add(c.timings.Lifetime)
}

// Phase evaluates the countdown at now.
func (c Countdown) Phase(now time.Time) Phase {
	if !c.Armed() {
		return PhaseIdle
	}
	switch {
	case !now.Before(c.ExpiresAt()):
		return PhaseExpired
	case !now.Before(c.WarningAt()):
		return PhaseWarning
	default:
		return PhaseArmed
	}
}

// Activity records user activity. It rearms and returns true only while armed, before the
// warning, and once the throttle window since the last arm has passed.
func (c *Countdown) Activity(now time.Time) bool {
	if c.Phase(now) != PhaseArmed {
		return false
	}
	if now.Sub(c.armedAt) <= c.timings.Throttle {
		return false
	}
	c.Arm(now)
	return true
}

// Remaining is the time left before the forced logout, zero when idle or expired.
func (c Countdown) Remaining(now time.Time) time.Duration {
	if !c.Armed() {
		return 0
	}
	if d := c.ExpiresAt().Sub(now); d > 0 {
		return d
	}
	return 0
}
