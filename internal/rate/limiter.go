package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds failed-login limiter tuning parameters.
type Config struct {
	BlockByIP                bool
	BlockByUser              bool
	AttemptsUntilBlockByIP   int
	AttemptsUntilBlockByUser int
	TimeToUnblockByIP        time.Duration
	TimeToUnblockByUser      time.Duration
	// IPWhitelist entries are never blocked by address.
	IPWhitelist []string
	KeyPrefix   string
}

// Limiter counts failed logins per client address and per username using
// Redis counters.
type Limiter struct {
	redis     redis.UniversalClient
	config    Config
	whitelist map[string]struct{}
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	whitelist := make(map[string]struct{}, len(cfg.IPWhitelist))
	for _, ip := range cfg.IPWhitelist {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			whitelist[ip] = struct{}{}
		}
	}

	return &Limiter{
		redis:     redisClient,
		config:    cfg,
		whitelist: whitelist,
	}
}

// AllowIP reports whether ip is still under its failed-login budget.
// Empty and whitelisted addresses are always allowed.
func (l *Limiter) AllowIP(ctx context.Context, ip string) (bool, error) {
	if !l.config.BlockByIP || ip == "" || l.whitelisted(ip) {
		return true, nil
	}
	return l.underBudget(ctx, l.ipKey(ip), l.config.AttemptsUntilBlockByIP)
}

// AllowUser reports whether username is still under its failed-login budget.
func (l *Limiter) AllowUser(ctx context.Context, username string) (bool, error) {
	if !l.config.BlockByUser || username == "" {
		return true, nil
	}
	return l.underBudget(ctx, l.userKey(username), l.config.AttemptsUntilBlockByUser)
}

// RecordFailure counts one failed login for ip and username. Either may be
// empty.
func (l *Limiter) RecordFailure(ctx context.Context, ip, username string) error {
	if l.config.BlockByIP && ip != "" && !l.whitelisted(ip) {
		if _, err := l.incrementWithTTL(ctx, l.ipKey(ip), l.config.TimeToUnblockByIP); err != nil {
			return err
		}
	}
	if l.config.BlockByUser && username != "" {
		if _, err := l.incrementWithTTL(ctx, l.userKey(username), l.config.TimeToUnblockByUser); err != nil {
			return err
		}
	}
	return nil
}

// ResetUser clears the failed-login counter for username. Called after a
// successful login.
func (l *Limiter) ResetUser(ctx context.Context, username string) error {
	if username == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.userKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Failures returns the current failed-login count for username.
// Missing keys return zero.
func (l *Limiter) Failures(ctx context.Context, username string) (int, error) {
	count, err := l.redis.Get(ctx, l.userKey(username)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < 0 {
		return 0, nil
	}
	return int(count), nil
}

func (l *Limiter) whitelisted(ip string) bool {
	_, ok := l.whitelist[ip]
	return ok
}

func (l *Limiter) underBudget(ctx context.Context, key string, maxAttempts int) (bool, error) {
	if maxAttempts <= 0 {
		return true, nil
	}

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return count < int64(maxAttempts), nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 && ttl > 0 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}

func (l *Limiter) userKey(username string) string {
	return l.config.KeyPrefix + "lfu:" + username
}

func (l *Limiter) ipKey(ip string) string {
	return l.config.KeyPrefix + "lfi:" + ip
}
