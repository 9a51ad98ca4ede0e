package fetch

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RefreshFunc obtains a fresh set of session cookies from the platform,
// typically by hitting a visitor/bootstrap endpoint.
type RefreshFunc func(ctx context.Context) ([]*http.Cookie, error)

// Session owns the cookie state some extraction strategies require. Cookies
// are refreshed opportunistically on a fixed interval rather than per call,
// and updated from any response that carries new session tokens.
type Session struct {
	mu          sync.Mutex
	cookies     map[string]*http.Cookie
	refreshFn   RefreshFunc
	interval    time.Duration
	lastRefresh time.Time
	logger      *slog.Logger
	now         func() time.Time
}

// NewSession creates a session refreshed via fn at most once per interval.
// A nil fn disables active refresh; the session then only accumulates
// cookies observed on responses.
func NewSession(fn RefreshFunc, interval time.Duration, logger *slog.Logger) *Session {
	return &Session{
		cookies:   make(map[string]*http.Cookie),
		refreshFn: fn,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureFresh refreshes the session cookies when the refresh interval has
// elapsed. Refresh failures are logged, not surfaced: stale cookies are
// still better than none.
func (s *Session) EnsureFresh(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshFn == nil {
		return
	}
	if !s.lastRefresh.IsZero() && s.now().Sub(s.lastRefresh) < s.interval {
		return
	}

	cookies, err := s.refreshFn(ctx)
	if err != nil {
		s.logger.Warn("session refresh failed", "error", err)
		return
	}

	for _, c := range cookies {
		s.cookies[c.Name] = c
	}
	s.lastRefresh = s.now()

	s.logger.Debug("session refreshed", "cookies", len(cookies))
}

// UpdateFromResponse merges any Set-Cookie values carried by a response.
func (s *Session) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	cookies := resp.Cookies()
	if len(cookies) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range cookies {
		s.cookies[c.Name] = c
	}
}

// Cookies returns a snapshot of the current session cookies.
func (s *Session) Cookies() []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*http.Cookie, 0, len(s.cookies))
	for _, c := range s.cookies {
		out = append(out, c)
	}
	return out
}
