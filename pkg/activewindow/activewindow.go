// Package activewindow reports the application and window title currently in
// the foreground. Lookups never fail: anything that cannot be resolved is
// reported as "Unknown".
package activewindow

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/offlinefirst/activity-recorder/pkg/event"
)

// CallTimeout bounds a single OS query.
const CallTimeout = 250 * time.Millisecond

// Resolver looks up the foreground window. Implementations are safe for
// concurrent use and return within CallTimeout.
type Resolver interface {
	Resolve(ctx context.Context) (app, title string)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context) (app, title string)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context) (string, string) { return f(ctx) }

// Static always reports the same window. Useful when no backend exists.
type Static struct{ App, Title string }

// Resolve returns the fixed values.
func (s Static) Resolve(context.Context) (string, string) { return normalize(s.App, s.Title) }

// New returns the resolver for the running platform along with the provider
// name used in diagnostics.
func New() (Resolver, string) {
	r, provider := platformResolver()
	return guarded{r}, provider
}

// guarded normalizes results and shields callers from backend panics.
type guarded struct{ inner Resolver }

func (g guarded) Resolve(ctx context.Context) (app, title string) {
	defer func() {
		if recover() != nil {
			app, title = event.Unknown, event.Unknown
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	return normalize(g.inner.Resolve(ctx))
}

func normalize(app, title string) (string, string) {
	app = strings.TrimSpace(app)
	title = strings.TrimSpace(title)
	if app == "" {
		app = event.Unknown
	}
	if title == "" {
		title = event.Unknown
	}
	return app, title
}

// Memo caches the last result for a short TTL so a producer can stamp a
// burst of events from one poll cycle with a single OS query.
type Memo struct {
	inner Resolver
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	at    time.Time
	app   string
	title string
}

// NewMemo wraps r. A non-positive ttl disables caching.
func NewMemo(r Resolver, ttl time.Duration) *Memo {
	return &Memo{inner: r, ttl: ttl, now: time.Now}
}

// Resolve returns the cached value while it is fresh.
func (m *Memo) Resolve(ctx context.Context) (string, string) {
	now := m.now()
	m.mu.Lock()
	if m.ttl > 0 && !m.at.IsZero() && now.Sub(m.at) < m.ttl {
		app, title := m.app, m.title
		m.mu.Unlock()
		return app, title
	}
	m.mu.Unlock()

	app, title := m.inner.Resolve(ctx)

	m.mu.Lock()
	m.at, m.app, m.title = now, app, title
	m.mu.Unlock()
	return app, title
}
