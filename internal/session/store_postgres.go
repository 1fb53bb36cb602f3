package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"academy-platform/pkg/utils"
)

// PostgresStore keeps sessions in the sessions table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, user_id, tenant_id, device, ip_address, created_at, last_active_at, expires_at, revoked, revoked_at, revoke_reason`

func unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var (
		rec       Record
		revokedAt sql.NullTime
		reason    sql.NullString
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &rec.TenantID, &rec.Device, &rec.IPAddress,
		&rec.CreatedAt, &rec.LastActiveAt, &rec.ExpiresAt,
		&rec.Revoked, &revokedAt, &reason,
	); err != nil {
		return Record{}, err
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		rec.RevokedAt = &t
	}
	rec.RevokeReason = RevokeReason(reason.String)
	return rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec Record) (string, error) {
	if err := validateRecord(rec); err != nil {
		return "", err
	}
	if rec.LastActiveAt.IsZero() {
		rec.LastActiveAt = rec.CreatedAt
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, tenant_id, device, ip_address, created_at, last_active_at, expires_at, revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)`,
		rec.ID, rec.UserID, rec.TenantID, rec.Device, rec.IPAddress,
		rec.CreatedAt, rec.LastActiveAt, rec.ExpiresAt,
	)
	if utils.IsUniqueViolation(err) {
		return "", fmt.Errorf("%w: duplicate session id", ErrInvalidArgument)
	}
	if err != nil {
		return "", unavailable(err)
	}
	return rec.ID, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, unavailable(err)
	}
	return rec, nil
}

// Touch is a single conditional UPDATE so it cannot resurrect a session
// revoked between our read and write.
func (s *PostgresStore) Touch(ctx context.Context, id, tenantID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_active_at = $3
		WHERE id = $1 AND tenant_id = $2 AND revoked = false`,
		id, tenantID, at,
	)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n > 0 {
		return nil
	}

	var revoked bool
	err = s.db.QueryRowContext(ctx,
		`SELECT revoked FROM sessions WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return unavailable(err)
	}
	if revoked {
		return ErrSessionRevoked
	}
	return nil
}

func (s *PostgresStore) Revoke(ctx context.Context, id string, reason RevokeReason, at time.Time) error {
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var revoked bool
		err := tx.QueryRowContext(ctx, `SELECT revoked FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&revoked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if revoked {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET revoked = true, revoked_at = $2, revoke_reason = $3
			WHERE id = $1`,
			id, at, string(reason),
		)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return unavailable(err)
	}
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context, q ActiveQuery) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE user_id = $1 AND tenant_id = $2
		  AND revoked = false
		  AND last_active_at >= $3
		  AND expires_at > $4
		ORDER BY last_active_at DESC, created_at DESC`,
		q.UserID, q.TenantID, q.IdleCutoff, q.Now,
	)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PostgresStore) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT revoked FROM sessions WHERE id = $1`, id).Scan(&revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, unavailable(err)
	}
	return revoked, nil
}
