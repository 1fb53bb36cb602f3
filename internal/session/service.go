package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"academy-platform/internal/auth"
	"academy-platform/internal/tenant"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mode classifies the request being authenticated for the store-failure policy.
type Mode int

const (
	// ModeRead is a read-only request; it may fail open when configured.
	ModeRead Mode = iota
	// ModeMutate changes tenant data and always fails closed.
	ModeMutate
)

type Config struct {
	IdleTimeout   time.Duration
	TouchInterval time.Duration
	MaxConcurrent int
	FailOpenReads bool
}

// Recorder receives session metrics. See internal/metrics.
type Recorder interface {
	VerificationFailed(kind string)
	SessionCreated()
	SessionRevoked(reason string)
	StoreError(op string)
	FailOpen()
}

type nopRecorder struct{}

func (nopRecorder) VerificationFailed(string) {}
func (nopRecorder) SessionCreated()           {}
func (nopRecorder) SessionRevoked(string)     {}
func (nopRecorder) StoreError(string)         {}
func (nopRecorder) FailOpen()                 {}

// AuditEvent describes a session lifecycle change for the audit trail.
type AuditEvent struct {
	Type        string
	TenantID    string
	SubjectID   string
	SessionID   string
	ActorUserID string
	ActorRole   string
	IPAddress   string
	Reason      string
}

const (
	AuditSessionCreated     = "session_created"
	AuditSessionRevoked     = "session_revoked"
	AuditSignOutEverywhere  = "sign_out_everywhere"
	AuditSessionIdleExpired = "session_idle_expired"
)

// Auditor is called inside a tenant scope for the event's tenant.
// Failures are logged and never block the session flow.
type Auditor interface {
	SessionEvent(ctx context.Context, e AuditEvent) error
}

type Service struct {
	store   Store
	tokens  *auth.Manager
	tracker Tracker
	cfg     Config

	clock    func() time.Time
	logger   *slog.Logger
	recorder Recorder
	auditor  Auditor
	tracer   trace.Tracer
}

type Option func(*Service)

func WithClock(fn func() time.Time) Option { return func(s *Service) { s.clock = fn } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }
func WithRecorder(r Recorder) Option        { return func(s *Service) { s.recorder = r } }
func WithAuditor(a Auditor) Option          { return func(s *Service) { s.auditor = a } }

func NewService(store Store, tokens *auth.Manager, cfg Config, opts ...Option) *Service {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.TouchInterval <= 0 {
		cfg.TouchInterval = time.Minute
	}
	s := &Service{
		store:    store,
		tokens:   tokens,
		tracker:  Tracker{IdleTimeout: cfg.IdleTimeout, TouchInterval: cfg.TouchInterval},
		cfg:      cfg,
		clock:    time.Now,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		tracer:   otel.Tracer("academy-platform/internal/session"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Tracker() Tracker { return s.tracker }

func (s *Service) now() time.Time { return s.clock().UTC() }

/* ===================== LOGIN ===================== */

type LoginRequest struct {
	auth.IssueRequest
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	Token   string
	Claims  auth.Claims
	Session Record
}

// Login issues a token and records its session. When a concurrent-session
// limit is configured the least recently active sessions beyond it are revoked.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	now := s.now()
	tok, claims, err := s.tokens.Issue(req.IssueRequest, now)
	if err != nil {
		return LoginResult{}, err
	}

	rec := Record{
		ID:           claims.ID,
		UserID:       claims.Subject,
		TenantID:     claims.TenantID,
		Device:       DeviceLabel(req.UserAgent),
		IPAddress:    req.IPAddress,
		CreatedAt:    now,
		LastActiveAt: now,
		ExpiresAt:    claims.ExpiresAt.Time.UTC(),
	}
	if _, err := s.store.Create(ctx, rec); err != nil {
		s.recorder.StoreError("create")
		return LoginResult{}, err
	}
	s.recorder.SessionCreated()
	s.audit(ctx, AuditEvent{
		Type:        AuditSessionCreated,
		TenantID:    rec.TenantID,
		SubjectID:   rec.UserID,
		SessionID:   rec.ID,
		ActorUserID: rec.UserID,
		ActorRole:   claims.Role,
		IPAddress:   req.IPAddress,
	})

	if s.cfg.MaxConcurrent > 0 {
		if err := s.enforceLimit(ctx, rec, now); err != nil {
			// The new session stands; the cap is re-applied on the next login.
			s.logger.WarnContext(ctx, "concurrent session limit not applied",
				"tenant_id", rec.TenantID, "user_id", rec.UserID, "err", err)
		}
	}

	return LoginResult{Token: tok, Claims: claims, Session: rec}, nil
}

func (s *Service) enforceLimit(ctx context.Context, current Record, now time.Time) error {
	active, err := s.store.ListActive(ctx, ActiveQuery{
		UserID:     current.UserID,
		TenantID:   current.TenantID,
		IdleCutoff: s.tracker.IdleCutoff(now),
		Now:        now,
	})
	if err != nil {
		return err
	}
	kept := 1
	for _, rec := range active {
		if rec.ID == current.ID {
			continue
		}
		if kept < s.cfg.MaxConcurrent {
			kept++
			continue
		}
		if err := s.revoke(ctx, rec, ReasonConcurrentLimit, now, current.UserID, ""); err != nil {
			return err
		}
	}
	return nil
}

/* ===================== AUTHENTICATE ===================== */

// Result is a successfully authenticated request.
type Result struct {
	Claims    auth.Claims
	Principal auth.Principal
	Tenant    tenant.Context
	// Session is nil when the store could not be consulted and the request
	// was let through on token validity alone.
	Session  *Record
	Degraded bool
}

// AuthOption adjusts a single Authenticate call.
type AuthOption func(*authOptions)

type authOptions struct {
	tenantID string
}

// ExpectTenant rejects a token whose tenant is not tenantID before the
// session store is consulted, so a token replayed on another academy's host
// never touches or expires its session. An empty tenantID is ignored.
func ExpectTenant(tenantID string) AuthOption {
	return func(o *authOptions) { o.tenantID = tenantID }
}

// Authenticate validates token and its session. The order is fixed:
// signature and expiry, expected tenant, revocation, identity match, idle
// window, touch. Failures are returned as *AuthError.
func (s *Service) Authenticate(ctx context.Context, token string, mode Mode, opts ...AuthOption) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "session.authenticate")
	defer span.End()

	var o authOptions
	for _, opt := range opts {
		opt(&o)
	}
	res, err := s.authenticate(ctx, token, mode, o)
	if err != nil {
		if ae, ok := AsAuthError(err); ok {
			span.SetAttributes(attribute.String("session.reject_code", string(ae.Code)))
		}
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("tenant.id", res.Tenant.TenantID),
		attribute.Bool("session.degraded", res.Degraded),
	)
	return res, nil
}

func (s *Service) authenticate(ctx context.Context, token string, mode Mode, o authOptions) (Result, error) {
	now := s.now()

	claims, err := s.tokens.Verify(token, now)
	if err != nil {
		return Result{}, s.verificationFailed(ctx, err)
	}
	if o.tenantID != "" && claims.TenantID != o.tenantID {
		s.logger.WarnContext(ctx, "token used on another academy's host", "event", "security",
			"token_tenant_id", claims.TenantID, "host_tenant_id", o.tenantID, "session_id", claims.ID)
		return Result{}, reject(CodeInvalidToken, ErrTenantMismatch)
	}
	res := Result{
		Claims:    claims,
		Principal: auth.PrincipalFromClaims(claims),
		Tenant:    tenant.Context{TenantID: claims.TenantID},
	}
	log := s.logger.With("tenant_id", claims.TenantID, "user_id", claims.Subject, "session_id", claims.ID)

	revoked, err := s.store.IsRevoked(ctx, claims.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return Result{}, reject(CodeRevoked, ErrNotFound)
	case err != nil:
		return s.storeFailure(ctx, log, res, mode, "is_revoked", err, now)
	case revoked:
		return Result{}, s.revokedError(ctx, claims.ID)
	}

	rec, err := s.store.Get(ctx, claims.ID)
	switch {
	case errors.Is(err, ErrNotFound):
		return Result{}, reject(CodeRevoked, ErrNotFound)
	case err != nil:
		return s.storeFailure(ctx, log, res, mode, "get", err, now)
	}

	if rec.UserID != claims.Subject || rec.TenantID != claims.TenantID {
		log.WarnContext(ctx, "token identity does not match session record", "event", "security")
		return Result{}, reject(CodeInvalidToken, ErrIdentityMismatch)
	}

	switch s.tracker.Evaluate(rec, now) {
	case StateRevoked:
		return Result{}, reject(revokedCode(rec.RevokeReason), ErrSessionRevoked)
	case StateExpired:
		if s.tracker.IdleExpired(rec, now) {
			if err := s.revoke(ctx, rec, ReasonIdleTimeout, now, "", ""); err != nil {
				log.WarnContext(ctx, "idle session not marked revoked", "err", err)
			}
		}
		log.DebugContext(ctx, "session expired")
		return Result{}, reject(CodeExpired, ErrSessionExpired)
	case StateIdle:
		if err := s.store.Touch(ctx, rec.ID, rec.TenantID, now); err != nil {
			switch {
			case errors.Is(err, ErrSessionRevoked):
				return Result{}, s.revokedError(ctx, rec.ID)
			case errors.Is(err, ErrNotFound):
				return Result{}, reject(CodeRevoked, err)
			case mode == ModeMutate:
				s.recorder.StoreError("touch")
				return Result{}, reject(CodeUnverifiable, err)
			default:
				s.recorder.StoreError("touch")
				log.WarnContext(ctx, "session touch failed", "err", err)
			}
		} else {
			rec.LastActiveAt = now
		}
	}

	res.Session = &rec
	return res, nil
}

func (s *Service) verificationFailed(ctx context.Context, err error) error {
	ve, ok := auth.AsVerificationError(err)
	if !ok {
		return reject(CodeInvalidToken, err)
	}
	s.recorder.VerificationFailed(string(ve.Kind))
	if ve.Kind == auth.KindExpired {
		s.logger.DebugContext(ctx, "token expired")
		return reject(CodeExpired, err)
	}
	if ve.SecurityRelevant() {
		s.logger.WarnContext(ctx, "token rejected", "event", "security", "kind", string(ve.Kind), "err", ve.Err)
	} else {
		s.logger.InfoContext(ctx, "token rejected", "kind", string(ve.Kind), "err", ve.Err)
	}
	return reject(CodeInvalidToken, err)
}

// storeFailure applies the unavailability policy: mutations fail closed, reads
// fail open only when configured, and even then the idle window is checked
// against the token's last_activity.
func (s *Service) storeFailure(ctx context.Context, log *slog.Logger, res Result, mode Mode, op string, err error, now time.Time) (Result, error) {
	s.recorder.StoreError(op)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Result{}, reject(CodeUnverifiable, err)
	}
	if mode == ModeMutate || !s.cfg.FailOpenReads {
		log.WarnContext(ctx, "session store unavailable; rejecting", "op", op, "err", err)
		return Result{}, reject(CodeUnverifiable, err)
	}

	last := res.Claims.IssuedAt.Time
	if res.Claims.LastActivity != nil {
		last = res.Claims.LastActivity.Time
	}
	if s.tracker.fromLastActivity(last, now) == StateExpired {
		return Result{}, reject(CodeExpired, ErrSessionExpired)
	}

	s.recorder.FailOpen()
	log.WarnContext(ctx, "session store unavailable; serving read on token validity", "op", op, "err", err)
	res.Degraded = true
	return res, nil
}

func (s *Service) revokedError(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return reject(CodeRevoked, ErrSessionRevoked)
	}
	return reject(revokedCode(rec.RevokeReason), ErrSessionRevoked)
}

/* ===================== PING ===================== */

// Ping records activity for an authenticated session and returns a token
// with a refreshed last_activity. jti and expiry are unchanged.
func (s *Service) Ping(ctx context.Context, res Result) (string, error) {
	now := s.now()
	if res.Session != nil {
		if err := s.store.Touch(ctx, res.Claims.ID, res.Claims.TenantID, now); err != nil {
			if errors.Is(err, ErrSessionRevoked) {
				return "", s.revokedError(ctx, res.Claims.ID)
			}
			s.recorder.StoreError("touch")
			return "", err
		}
	}
	tok, _, err := s.tokens.Reissue(res.Claims, now)
	return tok, err
}

/* ===================== SESSIONS ===================== */

// Logout revokes the caller's own session.
func (s *Service) Logout(ctx context.Context, res Result) error {
	rec, err := s.store.Get(ctx, res.Claims.ID)
	if err != nil {
		return err
	}
	return s.revoke(ctx, rec, ReasonLogout, s.now(), res.Principal.UserID, res.Principal.Role)
}

// ListActive returns the user's live sessions in tenantID, most recent first,
// marking the one identified by currentID.
func (s *Service) ListActive(ctx context.Context, userID, tenantID, currentID string) ([]View, error) {
	if userID == "" || tenantID == "" {
		return nil, ErrInvalidArgument
	}
	now := s.now()
	recs, err := s.store.ListActive(ctx, ActiveQuery{
		UserID:     userID,
		TenantID:   tenantID,
		IdleCutoff: s.tracker.IdleCutoff(now),
		Now:        now,
	})
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(recs))
	for _, r := range recs {
		out = append(out, View{Record: r, IsCurrent: r.ID == currentID})
	}
	return out, nil
}

// RevokeOwn signs out one of the caller's sessions. Sessions of other users
// or tenants report ErrNotFound.
func (s *Service) RevokeOwn(ctx context.Context, actor Result, sessionID string) error {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.UserID != actor.Principal.UserID || rec.TenantID != actor.Tenant.TenantID {
		return ErrNotFound
	}
	reason := ReasonRemoteSignOut
	if rec.ID == actor.Claims.ID {
		reason = ReasonLogout
	}
	return s.revoke(ctx, rec, reason, s.now(), actor.Principal.UserID, actor.Principal.Role)
}

// RevokeAny lets a tenant administrator sign out any session in their tenant.
func (s *Service) RevokeAny(ctx context.Context, actor Result, sessionID string) error {
	rec, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if rec.TenantID != actor.Tenant.TenantID {
		return ErrNotFound
	}
	return s.revoke(ctx, rec, ReasonAdmin, s.now(), actor.Principal.UserID, actor.Principal.Role)
}

// SignOutSummary counts the outcome of RevokeOthers.
type SignOutSummary struct {
	Revoked int `json:"revoked"`
	Failed  int `json:"failed"`
}

// RevokeOthers signs out every other live session of the caller. A failed
// revoke is counted and the loop moves on; an error is returned only when
// no session could be revoked at all.
func (s *Service) RevokeOthers(ctx context.Context, actor Result) (SignOutSummary, error) {
	views, err := s.ListActive(ctx, actor.Principal.UserID, actor.Tenant.TenantID, actor.Claims.ID)
	if err != nil {
		return SignOutSummary{}, err
	}
	now := s.now()
	var (
		sum     SignOutSummary
		lastErr error
	)
	for _, v := range views {
		if v.IsCurrent {
			continue
		}
		if err := s.revoke(ctx, v.Record, ReasonSignOutEverywhere, now, actor.Principal.UserID, actor.Principal.Role); err != nil {
			s.logger.WarnContext(ctx, "sign out everywhere: revoke failed",
				"session_id", v.ID, "tenant_id", v.TenantID, "err", err)
			sum.Failed++
			lastErr = err
			continue
		}
		sum.Revoked++
	}
	if sum.Failed > 0 && sum.Revoked == 0 {
		return sum, lastErr
	}
	s.audit(ctx, AuditEvent{
		Type:        AuditSignOutEverywhere,
		TenantID:    actor.Tenant.TenantID,
		SubjectID:   actor.Principal.UserID,
		SessionID:   actor.Claims.ID,
		ActorUserID: actor.Principal.UserID,
		ActorRole:   actor.Principal.Role,
	})
	return sum, nil
}

func (s *Service) revoke(ctx context.Context, rec Record, reason RevokeReason, at time.Time, actorID, actorRole string) error {
	if err := s.store.Revoke(ctx, rec.ID, reason, at); err != nil {
		s.recorder.StoreError("revoke")
		return err
	}
	s.recorder.SessionRevoked(string(reason))
	typ := AuditSessionRevoked
	if reason == ReasonIdleTimeout {
		typ = AuditSessionIdleExpired
	}
	s.audit(ctx, AuditEvent{
		Type:        typ,
		TenantID:    rec.TenantID,
		SubjectID:   rec.UserID,
		SessionID:   rec.ID,
		ActorUserID: actorID,
		ActorRole:   actorRole,
		Reason:      string(reason),
	})
	return nil
}

func (s *Service) audit(ctx context.Context, e AuditEvent) {
	if s.auditor == nil {
		return
	}
	// The tenant comes from a server-side session record, never from the client.
	err := tenant.Run(ctx, tenant.Context{TenantID: e.TenantID}, func(ctx context.Context) error {
		return s.auditor.SessionEvent(ctx, e)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit append failed", "type", e.Type, "tenant_id", e.TenantID, "err", err)
	}
}

/* ===================== STATUS ===================== */

// Status is the privacy-bounded session summary. It never carries token
// material, IP addresses or device fingerprints.
type Status struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Role          string `json:"role,omitempty"`
	TenantID      string `json:"tenant_id,omitempty"`
	Name          string `json:"name,omitempty"`
}

func (s *Service) Status(ctx context.Context, token string, opts ...AuthOption) Status {
	if token == "" {
		return Status{}
	}
	res, err := s.Authenticate(ctx, token, ModeRead, opts...)
	if err != nil {
		return Status{}
	}
	return Status{
		Authenticated: true,
		UserID:        res.Principal.UserID,
		Role:          res.Principal.Role,
		TenantID:      res.Tenant.TenantID,
		Name:          res.Principal.Name,
	}
}
