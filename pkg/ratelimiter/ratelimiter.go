package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"anoa.com/unimarket/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ScopeGlobal  = "global"
	ScopeProduct = "create_product"
)

// RateLimitError carries the remaining cooldown so handlers can set Retry-After.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return apperror.ErrRateLimitExceeded
}

// CheckAndSetRateLimit reports whether the action is allowed and, if so, starts its cooldown.
// A nil client always allows.
func CheckAndSetRateLimit(ctx context.Context, rdb *redis.Client, studentID uuid.UUID, scope string, limit time.Duration) (bool, error) {
	if rdb == nil {
		return true, nil
	}

	wasSet, err := rdb.SetNX(ctx, key(studentID, scope), "locked", limit).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit in redis: %w", err)
	}

	return wasSet, nil
}

func GetRateLimitTTL(ctx context.Context, rdb *redis.Client, studentID uuid.UUID, scope string) (time.Duration, error) {
	if rdb == nil {
		return 0, nil
	}
	return rdb.TTL(ctx, key(studentID, scope)).Result()
}

func ClearRateLimit(ctx context.Context, rdb *redis.Client, studentID uuid.UUID, scope string) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.Del(ctx, key(studentID, scope)).Result()
	return err
}

func key(studentID uuid.UUID, scope string) string {
	return fmt.Sprintf("rate_limit:student:%s:%s", studentID.String(), scope)
}
