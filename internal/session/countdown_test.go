package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestCountdownDeadlines(t *testing.T) {
	cd := NewCountdown(DefaultTimings(), time.Time{})
	require.Equal(t, PhaseIdle, cd.Phase(t0))
	require.True(t, cd.WarningAt().IsZero())

	cd.Arm(t0)
	require.Equal(t, t0.Add(28*time.Minute), cd.WarningAt())
	require.Equal(t, t0.Add(30*time.Minute), cd.ExpiresAt())

	require.Equal(t, PhaseArmed, cd.Phase(t0.Add(28*time.Minute-time.Second)))
	require.Equal(t, PhaseWarning, cd.Phase(t0.Add(28*time.Minute)))
	require.Equal(t, PhaseWarning, cd.Phase(t0.Add(30*time.Minute-time.Nanosecond)))
	require.Equal(t, PhaseExpired, cd.Phase(t0.Add(30*time.Minute)))
	require.Equal(t, 2*time.Minute, cd.Remaining(t0.Add(28*time.Minute)))
	require.Zero(t, cd.Remaining(t0.Add(time.Hour)))
}

func TestCountdownRearmResetsBothDeadlines(t *testing.T) {
	cd := NewCountdown(DefaultTimings(), time.Time{})
	cd.Arm(t0)
	rearm := t0.Add(20 * time.Minute)
	cd.Arm(rearm)

	require.Equal(t, rearm.Add(28*time.Minute), cd.WarningAt())
	require.Equal(t, rearm.Add(30*time.Minute), cd.ExpiresAt())
	require.Equal(t, PhaseArmed, cd.Phase(t0.Add(29*time.Minute)))
}

func TestCountdownActivityThrottle(t *testing.T) {
	cd := NewCountdown(DefaultTimings(), time.Time{})
	require.False(t, cd.Activity(t0), "idle countdowns ignore activity")

	cd.Arm(t0)
	require.False(t, cd.Activity(t0.Add(30*time.Second)))
	require.False(t, cd.Activity(t0.Add(60*time.Second)))
	require.Equal(t, t0, cd.ArmedAt())

	require.True(t, cd.Activity(t0.Add(61*time.Second)))
	require.Equal(t, t0.Add(61*time.Second), cd.ArmedAt())
	require.False(t, cd.Activity(t0.Add(90*time.Second)))
}

func TestCountdownActivityDoesNotCancelWarning(t *testing.T) {
	cd := NewCountdown(DefaultTimings(), t0)
	require.False(t, cd.Activity(t0.Add(29*time.Minute)))
	require.Equal(t, PhaseWarning, cd.Phase(t0.Add(29*time.Minute)))

	cd.Disarm()
	require.Equal(t, PhaseIdle, cd.Phase(t0.Add(29*time.Minute)))
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "idle", PhaseIdle.String())
	require.Equal(t, "warning", PhaseWarning.String())
	require.Equal(t, "expired", PhaseExpired.String())
}
