package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const DefaultLimits = "200/day,50/hour,20/minute"

type Limit struct {
	Count int
	Per   time.Duration
}

func (l Limit) String() string {
	return fmt.Sprintf("%d/%s", l.Count, l.Per)
}

var periods = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseLimits reads a comma separated list such as "200/day,50 per hour".
func ParseLimits(s string) ([]Limit, error) {
	var limits []Limit
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.Replace(part, " per ", "/", 1)
		count, unit, ok := strings.Cut(part, "/")
		if !ok {
			return nil, fmt.Errorf("invalid rate limit %q", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid rate limit count in %q", part)
		}
		per, ok := periods[strings.TrimSuffix(strings.TrimSpace(strings.ToLower(unit)), "s")]
		if !ok {
			return nil, fmt.Errorf("invalid rate limit period in %q", part)
		}
		limits = append(limits, Limit{Count: n, Per: per})
	}
	if len(limits) == 0 {
		return nil, fmt.Errorf("no rate limits in %q", s)
	}
	return limits, nil
}

type visitor struct {
	limiters []*rate.Limiter
	lastSeen time.Time
}

// Limiter applies every configured limit to each client key independently.
type Limiter struct {
	mu       sync.Mutex
	limits   []Limit
	visitors map[string]*visitor
	now      func() time.Time
}

func New(limits []Limit) *Limiter {
	return &Limiter{
		limits:   limits,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow consumes one request for key. When any limit is exhausted nothing is
// consumed and the returned duration tells when to retry.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{}
		for _, lim := range l.limits {
			v.limiters = append(v.limiters, rate.NewLimiter(rate.Every(lim.Per/time.Duration(lim.Count)), lim.Count))
		}
		l.visitors[key] = v
	}
	v.lastSeen = now

	reservations := make([]*rate.Reservation, 0, len(v.limiters))
	var wait time.Duration
	for _, lim := range v.limiters {
		r := lim.ReserveN(now, 1)
		reservations = append(reservations, r)
		if d := r.DelayFrom(now); d > wait {
			wait = d
		}
	}
	if wait == 0 {
		return true, 0
	}
	for _, r := range reservations {
		r.CancelAt(now)
	}
	return false, wait
}

// Cleanup forgets clients idle for longer than the widest limit period.
func (l *Limiter) Cleanup() int {
	var widest time.Duration
	for _, lim := range l.limits {
		if lim.Per > widest {
			widest = lim.Per
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > widest {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}
