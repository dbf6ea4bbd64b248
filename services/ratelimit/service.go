package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config holds token bucket parameters shared by every client key
type Config struct {
	RequestsPerSecond float64
	Burst             int
	IdleTTL           time.Duration // Buckets unused for this long are evicted
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	RetryAfter time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitService keeps one token bucket per client key in memory
type RateLimitService struct {
	config Config
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimitService creates a new RateLimitService instance
func NewRateLimitService(config Config, logger *zap.Logger) *RateLimitService {
	if config.IdleTTL <= 0 {
		config.IdleTTL = 10 * time.Minute
	}
	return &RateLimitService{
		config:  config,
		logger:  logger,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from key's bucket
func (s *RateLimitService) Allow(key string) RateLimitResult {
	if key == "" {
		key = "unknown"
	}
	now := s.now()

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.Burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return RateLimitResult{Allowed: false}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return RateLimitResult{Allowed: false, RetryAfter: delay}
	}
	return RateLimitResult{Allowed: true}
}

// Cleanup evicts buckets idle for longer than IdleTTL and returns how many were removed
func (s *RateLimitService) Cleanup() int {
	cutoff := s.now().Add(-s.config.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("evicted idle rate limit buckets",
			zap.Int("removed", removed),
			zap.Int("remaining", len(s.buckets)))
	}
	return removed
}

// Size returns the number of tracked keys
func (s *RateLimitService) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}
