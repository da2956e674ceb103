package pageparser

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the minimum gap between accepted parse requests.
const DefaultMinInterval = 3 * time.Second

var (
	ErrBusy        = errors.New("parsing in progress, please wait")
	ErrTooFrequent = errors.New("requests too frequent, please try again later")
)

// Guard admits at most one parse at a time and spaces accepted requests by
// a minimum interval. Rejected requests do not move the interval.
type Guard struct {
	mu      sync.Mutex
	busy    bool
	limiter *rate.Limiter
	now     func() time.Time
}

// NewGuard returns a Guard. A non-positive interval disables spacing.
func NewGuard(minInterval time.Duration) *Guard {
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &Guard{
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}
}

// Acquire claims the guard. On success the caller must call release exactly
// once when the parse is finished.
func (g *Guard) Acquire() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.busy {
		return nil, ErrBusy
	}
	if !g.limiter.AllowN(g.now(), 1) {
		return nil, ErrTooFrequent
	}
	g.busy = true

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.busy = false
			g.mu.Unlock()
		})
	}, nil
}

// Busy reports whether a parse is in flight.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
