package session

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (s *MemoryStore) Create(ctx context.Context, rec Record) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	if rec.LastActiveAt.IsZero() {
		rec.LastActiveAt = rec.CreatedAt
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; ok {
		return "", ErrInvalidArgument
	}
	s.recs[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Touch(ctx context.Context, id, tenantID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok || rec.TenantID != tenantID {
		return ErrNotFound
	}
	if rec.Revoked {
		return ErrSessionRevoked
	}
	rec.LastActiveAt = at
	s.recs[id] = rec
	return nil
}

func (s *MemoryStore) Revoke(ctx context.Context, id string, reason RevokeReason, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Revoked {
		return nil
	}
	rec.Revoked = true
	rec.RevokedAt = &at
	rec.RevokeReason = reason
	s.recs[id] = rec
	return nil
}

func (s *MemoryStore) ListActive(ctx context.Context, q ActiveQuery) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := make([]Record, 0)
	for _, rec := range s.recs {
		if activeFilter(rec, q) {
			out = append(out, rec)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := b.LastActiveAt.Compare(a.LastActiveAt); c != 0 {
			return c
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return false, ErrNotFound
	}
	return rec.Revoked, nil
}
