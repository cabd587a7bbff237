// Package admission implements the Admission Guard (spec §4.7): a bearer
// token resolves to a valid identity, or an anonymous request is counted
// against a process-local sliding window keyed by source address.
package admission

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wrenhollow/aegis/internal/gateway/identityclient"
)

var ErrRateLimited = errors.New("rate limit exceeded")

// Decision is what a gated handler needs to know about the caller.
type Decision struct {
	Authenticated bool
	IsVerified    bool
}

type Guard struct {
	identity       *identityclient.Client
	limiter        *slidingWindowLimiter
	trustedProxies map[string]struct{}
}

// New builds a guard with the given anonymous budget per window (spec
// default: 3 per hour). trustedProxies lists the IPs of reverse proxies
// allowed to set X-Forwarded-For; from any other peer the header is
// ignored, since it is otherwise fully client-controlled.
func New(identity *identityclient.Client, budget int, window time.Duration, trustedProxies []string) *Guard {
	set := make(map[string]struct{}, len(trustedProxies))
	for _, p := range trustedProxies {
		set[p] = struct{}{}
	}
	return &Guard{
		identity:       identity,
		limiter:        newSlidingWindowLimiter(budget, window),
		trustedProxies: set,
	}
}

// Admit implements spec §4.7's policy. sourceAddr is the caller's address
// (used only when no bearer token is present).
func (g *Guard) Admit(ctx context.Context, token, sourceAddr string) (Decision, error) {
	if token != "" {
		result, err := g.identity.ValidateToken(ctx, token)
		if err != nil {
			return Decision{}, err
		}
		if !result.IsValid {
			return Decision{}, errors.New(result.Message)
		}
		return Decision{Authenticated: true, IsVerified: result.IsVerified}, nil
	}

	if !g.limiter.Allow(sourceAddr) {
		return Decision{}, ErrRateLimited
	}
	return Decision{Authenticated: false}, nil
}

// BearerToken reads spec §4.7's guard header, literally named "token"
// rather than the conventional "Authorization: Bearer".
func BearerToken(r *http.Request) string {
	return r.Header.Get("token")
}

// SourceAddr extracts the caller's address for anonymous rate limiting
// (spec §4.7 keys the sliding window on "source address"). X-Forwarded-For
// is client-controlled and is only consulted when the immediate TCP peer
// is a configured trusted proxy; otherwise a single caller could mint a
// fresh rate-limit bucket on every request by forging the header.
func (g *Guard) SourceAddr(r *http.Request) string {
	if len(g.trustedProxies) == 0 {
		return r.RemoteAddr
	}

	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}

	if _, trusted := g.trustedProxies[peer]; !trusted {
		return r.RemoteAddr
	}

	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return r.RemoteAddr
	}
	// The left-most entry is the original client; the rest are proxies
	// the request already traversed.
	client := strings.TrimSpace(strings.Split(fwd, ",")[0])
	if client == "" {
		return r.RemoteAddr
	}
	return client
}

// slidingWindowLimiter tracks, per source, the timestamps of admitted
// requests within the trailing window; it evicts entries older than the
// window on every check. Intentionally process-local and unreplicated
// (spec §4.7's documented trade-off).
type slidingWindowLimiter struct {
	mu     sync.Mutex
	budget int
	window time.Duration
	hits   map[string][]time.Time
}

func newSlidingWindowLimiter(budget int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{
		budget: budget,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

func (l *slidingWindowLimiter) Allow(source string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	times := l.hits[source]
	fresh := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= l.budget {
		l.hits[source] = fresh
		return false
	}

	l.hits[source] = append(fresh, now)
	return true
}
