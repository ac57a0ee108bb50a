package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the process-wide session registry. A single mutex covers
// the map: contention is light and every operation except Sweep is
// O(1). Construct one per process (or per test) and inject it; there
// is no package-level instance.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	ttl    time.Duration
	logger *slog.Logger

	// now is the clock for creation and expiry checks.
	// Tests override this to simulate elapsed time.
	now func() time.Time
}

// NewStore creates a session store with the given lifetime per session.
func NewStore(ttl time.Duration, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

// Create registers a new session for the given credentials and returns
// its token. Tokens are UUIDs: collision-resistant, not guessable from
// one another, but carry no cryptographic claims.
func (st *Store) Create(cookies, userID string) (string, *Session) {
	token := uuid.New().String()
	now := st.now()

	s := &Session{
		Token:      token,
		Cookies:    cookies,
		UserID:     userID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(st.ttl),
		lastAccess: now,
	}

	st.mu.Lock()
	st.sessions[token] = s
	st.mu.Unlock()

	st.logger.Info("session created",
		slog.String("user_id", userID),
		slog.Time("expires_at", s.ExpiresAt),
	)

	return token, s
}

// Get looks up a live session and refreshes its last-access time.
// An expired session is removed and reported as absent, so callers
// never observe one regardless of reaper timing. The expiry boundary
// is exact: a session is gone at createdAt+TTL, not after it.
func (st *Store) Get(token string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[token]
	if !ok {
		return nil, false
	}

	now := st.now()
	if !now.Before(s.ExpiresAt) {
		delete(st.sessions, token)
		st.logger.Info("session expired on access", slog.String("user_id", s.UserID))

		return nil, false
	}

	s.lastAccess = now

	return s, true
}

// Delete removes a session, reporting whether it existed.
func (st *Store) Delete(token string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[token]; !ok {
		return false
	}

	delete(st.sessions, token)

	return true
}

// Count returns the number of registered sessions, expired entries
// included. Diagnostics only.
func (st *Store) Count() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}

// Info returns a metadata snapshot without refreshing last-access and
// without triggering lazy expiry; expired sessions are reported with
// Expired set rather than removed.
func (st *Store) Info(token string) (*Info, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[token]
	if !ok {
		return nil, false
	}

	return &Info{
		Token:      s.Token,
		UserID:     s.UserID,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt,
		LastAccess: s.lastAccess,
		Expired:    !st.now().Before(s.ExpiresAt),
	}, true
}

// Sweep removes every expired session, returning the number removed.
// Bounds memory growth from tokens that are created but never used
// again.
func (st *Store) Sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	removed := 0

	for token, s := range st.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(st.sessions, token)

			removed++
		}
	}

	return removed
}

// Run sweeps expired sessions on the given interval until the context
// is canceled. Intended to run as a goroutine for the process lifetime.
func (st *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := st.Sweep(); n > 0 {
				st.logger.Info("swept expired sessions", slog.Int("count", n))
			}
		}
	}
}
