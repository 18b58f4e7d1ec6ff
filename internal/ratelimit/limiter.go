// Package ratelimit throttles unauthenticated endpoints with fixed-window
// counters kept in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the limiter windows
type Options struct {
	// Requests is the number of requests allowed per IP and purpose in Window
	Requests int
	Window   time.Duration
	// Cooldown is the minimum gap between password reset codes for one email
	Cooldown time.Duration
}

// Limiter counts requests in Redis. A nil *Limiter, or one built without a
// client, allows everything.
type Limiter struct {
	client *redis.Client
	opts   Options
}

func NewLimiter(client *redis.Client, opts Options) *Limiter {
	return &Limiter{client: client, opts: opts}
}

func (l *Limiter) enabled() bool {
	return l != nil && l.client != nil
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:ip:%s:%s", purpose, ip)
}

func cooldownKey(email string) string {
	return fmt.Sprintf("ratelimit:otp_cooldown:%s", email)
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its window for purpose
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	if !l.enabled() {
		return false, nil
	}

	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}

	return count >= l.opts.Requests, nil
}

// RecordIPRequestWithPurpose counts one request from ip. The window starts
// with the first request.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	if !l.enabled() {
		return nil
	}

	key := ipKey(ip, purpose)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, key, l.opts.Window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	return nil
}

// AcquireEmailCooldown starts the cooldown for email and reports whether it
// was free. A false result means a code was issued too recently. A
// non-positive Cooldown disables the check.
func (l *Limiter) AcquireEmailCooldown(ctx context.Context, email string) (bool, error) {
	if !l.enabled() || l.opts.Cooldown <= 0 {
		return true, nil
	}

	ok, err := l.client.SetNX(ctx, cooldownKey(email), 1, l.opts.Cooldown).Result()
	if err != nil {
		return true, fmt.Errorf("failed to set email cooldown: %w", err)
	}

	return ok, nil
}

// ReleaseEmailCooldown ends the cooldown for email early
func (l *Limiter) ReleaseEmailCooldown(ctx context.Context, email string) error {
	if !l.enabled() {
		return nil
	}

	if err := l.client.Del(ctx, cooldownKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to release email cooldown: %w", err)
	}
	return nil
}
