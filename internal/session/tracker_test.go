package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTracker_Evaluate(t *testing.T) {
	tr := Tracker{IdleTimeout: 30 * time.Minute, TouchInterval: time.Minute}
	rec := newRecord("s1", "U1", "T1", t0)

	cases := []struct {
		name string
		rec  Record
		now  time.Time
		want State
	}{
		{"just active", rec, t0.Add(30 * time.Second), StateActive},
		{"due for touch", rec, t0.Add(5 * time.Minute), StateIdle},
		{"at idle boundary", rec, t0.Add(30 * time.Minute), StateIdle},
		{"past idle timeout", rec, t0.Add(31 * time.Minute), StateExpired},
		{"absolute expiry", func() Record { r := rec; r.LastActiveAt = t0.Add(12 * time.Hour); return r }(), t0.Add(12 * time.Hour), StateExpired},
		{"revoked wins", func() Record { r := rec; r.Revoked = true; return r }(), t0, StateRevoked},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tr.Evaluate(tc.rec, tc.now))
		})
	}
}

func TestTracker_IdleExpiredDistinguishesAbsoluteExpiry(t *testing.T) {
	tr := Tracker{IdleTimeout: 30 * time.Minute, TouchInterval: time.Minute}
	rec := newRecord("s1", "U1", "T1", t0)

	assert.True(t, tr.IdleExpired(rec, t0.Add(31*time.Minute)))
	assert.False(t, tr.IdleExpired(rec, t0.Add(13*time.Hour)))
	assert.Equal(t, t0.Add(-30*time.Minute), tr.IdleCutoff(t0))
}
