package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"academy-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	revokedKeyPrefix = "session:revoked:"

	// sharedLookupTimeout bounds a coalesced inner lookup, which runs
	// detached from any single caller's cancellation.
	sharedLookupTimeout = 5 * time.Second
)

// CachedStore fronts a durable Store with Redis revocation marks so the
// per-request IsRevoked check usually skips the database. The inner store
// stays authoritative; Redis failures degrade to inner lookups.
type CachedStore struct {
	inner  Store
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedStore marks revocations for ttl, which should be at least the
// token max lifetime so a mark outlives every token it covers.
func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{inner: inner, rdb: rdb, ttl: ttl, logger: logger}
}

func revokedKey(id string) string { return revokedKeyPrefix + id }

func (s *CachedStore) Create(ctx context.Context, rec Record) (string, error) {
	return s.inner.Create(ctx, rec)
}

func (s *CachedStore) Get(ctx context.Context, id string) (Record, error) {
	return s.inner.Get(ctx, id)
}

func (s *CachedStore) Touch(ctx context.Context, id, tenantID string, at time.Time) error {
	return s.inner.Touch(ctx, id, tenantID, at)
}

func (s *CachedStore) ListActive(ctx context.Context, q ActiveQuery) ([]Record, error) {
	return s.inner.ListActive(ctx, q)
}

func (s *CachedStore) Revoke(ctx context.Context, id string, reason RevokeReason, at time.Time) error {
	if err := s.inner.Revoke(ctx, id, reason, at); err != nil {
		return err
	}
	s.mark(ctx, id, reason)
	return nil
}

// IsRevoked answers from a Redis mark when one exists. Misses are coalesced
// per id and backfilled when the inner store reports a revocation. Each
// caller waits on its own ctx; cancelling one does not fail the others.
func (s *CachedStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	if _, ok := s.MarkedReason(ctx, id); ok {
		return true, nil
	}

	ch := s.group.DoChan(id, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLookupTimeout)
		defer cancel()
		return s.inner.IsRevoked(lctx, id)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	if res.Err != nil {
		return false, res.Err
	}
	revoked := res.Val.(bool)
	if revoked {
		s.mark(ctx, id, "")
	}
	return revoked, nil
}

// MarkedReason returns the cached revocation reason, if Redis holds one.
func (s *CachedStore) MarkedReason(ctx context.Context, id string) (RevokeReason, bool) {
	v, err := s.rdb.Get(ctx, revokedKey(id)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "revocation cache read failed", "session_id", id, "err", err)
		}
		return "", false
	}
	return RevokeReason(v), true
}

func (s *CachedStore) mark(ctx context.Context, id string, reason RevokeReason) {
	if _, err := utils.SetFirstWins(ctx, s.rdb, revokedKey(id), string(reason), s.ttl); err != nil {
		s.logger.WarnContext(ctx, "revocation cache write failed", "session_id", id, "err", err)
	}
}
