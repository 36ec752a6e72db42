package webserver

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiter allows at most limit requests per key within any window.
type RateLimiter struct {
	mu     sync.Mutex
	hits   map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRateLimiter returns a limiter that forgets idle keys until ctx is done.
func NewRateLimiter(ctx context.Context, limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		hits:   make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	go func() {
		t := time.NewTicker(window)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()
	return rl
}

// live drops the hits of key that fell out of the window. Callers hold mu.
func (rl *RateLimiter) live(key string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	hits := rl.hits[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	for key := range rl.hits {
		if hits := rl.live(key, now); len(hits) > 0 {
			rl.hits[key] = hits
		} else {
			delete(rl.hits, key)
		}
	}
}

// Allow counts a request for key and reports whether it fits the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := rl.now()
	hits := rl.live(key, now)
	if len(hits) >= rl.limit {
		rl.hits[key] = hits
		return false
	}
	rl.hits[key] = append(hits, now)
	return true
}

// RateLimitMiddleware limits authenticated users by ID and everyone else by IP.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if uid := currentUser(c); uid != 0 {
			key = "uid:" + strconv.FormatUint(uid, 10)
		}
		if !rl.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"err": fmt.Sprintf("too many requests, limit is %d per %s", rl.limit, rl.window),
			})
			return
		}
		c.Next()
	}
}
