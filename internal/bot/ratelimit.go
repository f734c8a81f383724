package bot

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter throttles interactions per user so one member cannot spam modal
// round-trips. Entries idle past the prune window are dropped lazily.
type Limiter struct {
	mu      sync.Mutex
	users   map[string]*userLimiter
	limit   rate.Limit
	burst   int
	maxIdle time.Duration
	now     func() time.Time
}

type userLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows `burst` immediate interactions per user, refilling at
// `perMinute` tokens a minute.
func NewLimiter(perMinute float64, burst int) *Limiter {
	return &Limiter{
		users:   make(map[string]*userLimiter),
		limit:   rate.Limit(perMinute / 60.0),
		burst:   burst,
		maxIdle: 15 * time.Minute,
		now:     time.Now,
	}
}

// Allow reports whether the user may proceed right now.
func (l *Limiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.pruneLocked(now)

	entry, ok := l.users[userID]
	if !ok {
		entry = &userLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.users[userID] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (l *Limiter) pruneLocked(now time.Time) {
	if len(l.users) < 1024 {
		return
	}
	for id, entry := range l.users {
		if now.Sub(entry.lastSeen) > l.maxIdle {
			delete(l.users, id)
		}
	}
}
