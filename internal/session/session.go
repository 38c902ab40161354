package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jobmatch/jobmatch/internal/apierr"
)

const (
	refreshKey            = "refresh"
	defaultRefreshTimeout = 15 * time.Second
	persistTimeout        = 5 * time.Second
)

// State of a session. Refreshing is a sub-state of Active.
type State int

const (
	LoggedOut State = iota
	Active
	Refreshing
)

func (s State) String() string {
	switch s {
	case LoggedOut:
		return "logged_out"
	case Active:
		return "active"
	case Refreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session owns the credential pair. It is the only writer of the store.
type Session struct {
	store     Store
	refresher Refresher
	logger    *zap.Logger

	// RefreshTimeout bounds a single refresh round trip.
	RefreshTimeout time.Duration

	mu    sync.Mutex
	cred  Credential
	state State
	// epoch changes on every login/logout so an in-flight refresh
	// started before them does not resurrect old tokens.
	epoch uint64

	// refreshes is the in-flight handle shared by every request that hit 401.
	refreshes singleflight.Group
}

func New(store Store, refresher Refresher, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryStore(Credential{})
	}

	return &Session{
		store:          store,
		refresher:      refresher,
		logger:         logger,
		RefreshTimeout: defaultRefreshTimeout,
	}
}

// Restore loads the persisted credential. A stored access token makes the session Active.
func (s *Session) Restore(ctx context.Context) error {
	cred, err := s.store.LoadCredential(ctx)
	if err != nil {
		return fmt.Errorf("loading credential: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = cred
	s.state = LoggedOut
	if !cred.Empty() {
		s.state = Active
	}

	return nil
}

// Login stores a freshly issued pair and makes the session Active.
// Whatever the store kept for the previous login is dropped first.
func (s *Session) Login(ctx context.Context, cred Credential) error {
	if cred.AccessToken == "" {
		return errors.New("login returned an empty access token")
	}

	if err := s.store.ClearCredential(ctx); err != nil {
		return fmt.Errorf("clearing previous credential: %w", err)
	}
	if err := s.store.SaveCredential(ctx, cred); err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}

	s.mu.Lock()
	s.cred = cred
	s.state = Active
	s.epoch++
	s.mu.Unlock()

	s.logger.Debug("session is active")
	return nil
}

// Logout clears stored credentials.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.cred = Credential{}
	s.state = LoggedOut
	s.epoch++
	s.mu.Unlock()

	if err := s.store.ClearCredential(ctx); err != nil {
		return fmt.Errorf("clearing credential: %w", err)
	}

	return nil
}

func (s *Session) Credential() Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cred
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh replaces the access token that was rejected (stale).
// Concurrent callers share one refresh round trip. If the current access token
// already differs from stale, it is returned without contacting the backend.
func (s *Session) Refresh(ctx context.Context, stale string) (Credential, error) {
	ch := s.refreshes.DoChan(refreshKey, func() (any, error) {
		return s.refresh(ctx, stale)
	})

	select {
	case <-ctx.Done():
		return Credential{}, &apierr.NetworkError{Op: "refresh", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return Credential{}, res.Err
		}
		return res.Val.(Credential), nil
	}
}

func (s *Session) refresh(ctx context.Context, stale string) (Credential, error) {
	s.mu.Lock()
	cur := s.cred
	epoch := s.epoch

	switch {
	case cur.AccessToken != "" && cur.AccessToken != stale:
		s.mu.Unlock()
		return cur, nil
	case cur.Empty() && stale != "":
		// Expired or logged out while the request was in flight.
		s.mu.Unlock()
		return Credential{}, apierr.ErrSessionExpired
	case cur.RefreshToken == "" || s.refresher == nil:
		s.mu.Unlock()
		s.expire(ctx, epoch)
		return Credential{}, apierr.ErrUnauthorized
	}

	s.state = Refreshing
	s.mu.Unlock()

	s.logger.Info("refreshing access token")

	timeout := s.RefreshTimeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	// Detached from the first caller: other waiters depend on the result.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	next, err := s.refresher.RefreshToken(rctx, cur.RefreshToken)
	if err == nil && next.AccessToken == "" {
		err = errors.New("refresh returned an empty access token")
	}
	if err != nil {
		s.logger.Warn("refresh failed, session expired", zap.Error(err))
		s.expire(ctx, epoch)
		return Credential{}, fmt.Errorf("%w: %v", apierr.ErrSessionExpired, err)
	}

	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return Credential{}, apierr.ErrSessionExpired
	}
	s.cred = next
	s.state = Active
	s.mu.Unlock()

	pctx, pcancel := persistContext(ctx)
	defer pcancel()
	if err := s.store.SaveCredential(pctx, next); err != nil {
		s.logger.Warn("persisting refreshed credential", zap.Error(err))
	}

	s.logger.Info("access token refreshed", zap.Bool("refresh_token_rotated", next.RefreshToken != cur.RefreshToken))
	return next, nil
}

func (s *Session) expire(ctx context.Context, epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	s.cred = Credential{}
	s.state = LoggedOut
	s.epoch++
	s.mu.Unlock()

	pctx, cancel := persistContext(ctx)
	defer cancel()
	if err := s.store.ClearCredential(pctx); err != nil {
		s.logger.Warn("clearing expired credential", zap.Error(err))
	}
}

// persistContext outlives both the caller and the refresh deadline, so the
// store sees the outcome of a refresh even when it ran out of time.
func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
