package session

import "time"

// Tracker derives session state from timestamps. Expiry is evaluated lazily
// at request time; there is no background sweeper.
type Tracker struct {
	IdleTimeout   time.Duration
	TouchInterval time.Duration
}

// Evaluate classifies rec at now.
//
//	Revoked: rec.Revoked
//	Expired: now >= ExpiresAt, or now - LastActiveAt > IdleTimeout
//	Active:  now - LastActiveAt < TouchInterval
//	Idle:    otherwise; valid, but due for a touch
func (t Tracker) Evaluate(rec Record, now time.Time) State {
	if rec.Revoked {
		return StateRevoked
	}
	if !now.Before(rec.ExpiresAt) {
		return StateExpired
	}
	return t.fromLastActivity(rec.LastActiveAt, now)
}

func (t Tracker) fromLastActivity(last, now time.Time) State {
	gap := now.Sub(last)
	switch {
	case gap > t.IdleTimeout:
		return StateExpired
	case gap < t.TouchInterval:
		return StateActive
	default:
		return StateIdle
	}
}

// IdleExpired reports whether the idle window, not the absolute expiry, ended rec.
func (t Tracker) IdleExpired(rec Record, now time.Time) bool {
	return now.Before(rec.ExpiresAt) && now.Sub(rec.LastActiveAt) > t.IdleTimeout
}

// IdleCutoff is the oldest LastActiveAt still considered live at now.
func (t Tracker) IdleCutoff(now time.Time) time.Time {
	return now.Add(-t.IdleTimeout)
}
