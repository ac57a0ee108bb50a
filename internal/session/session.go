// Package session provides the in-memory registry mapping bearer
// tokens to drive credentials, with TTL expiry and a periodic reaper.
// Sessions are deliberately ephemeral: nothing survives a restart.
package session

import (
	"sync"
	"time"

	"github.com/panshare/quarkshare/internal/quark"
)

// Session binds a token to one set of drive credentials. All exported
// fields are immutable after creation; lastAccess is guarded by the
// owning Store's mutex.
type Session struct {
	Token     string
	Cookies   string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time

	lastAccess time.Time

	clientOnce sync.Once
	client     *quark.Client
}

// Client returns the drive client bound to this session, building it
// on first use. The client is reused across all requests bearing the
// same token.
func (s *Session) Client(build func(cookies string) *quark.Client) *quark.Client {
	s.clientOnce.Do(func() {
		s.client = build(s.Cookies)
	})

	return s.client
}

// Info is a point-in-time snapshot of session metadata for diagnostics.
type Info struct {
	Token      string
	UserID     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastAccess time.Time
	Expired    bool
}
