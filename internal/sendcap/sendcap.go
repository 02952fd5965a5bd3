// internal/sendcap/sendcap.go
package sendcap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyTTL keeps daily counters around long enough to cover any timezone's
// current day plus clock skew.
const keyTTL = 48 * time.Hour

// Counter enforces the per-tenant daily send cap with a Redis counter keyed
// by tenant id and local calendar date.
type Counter struct {
	rdb *redis.Client
}

func NewCounter(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

// Allow reserves one send against the tenant's daily cap. A limit of zero or
// less means uncapped. When the cap is reached the reservation is rolled back
// and false is returned; the caller defers the job without consuming a retry.
// Redis errors fail open: the cap is an operational guard, not a correctness
// invariant, and sending must not halt when Redis is down.
func (c *Counter) Allow(ctx context.Context, userID, limit int, localDate string) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	key := fmt.Sprintf("sendcap:%d:%s", userID, localDate)
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return true, fmt.Errorf("send cap check failed for user %d: %w", userID, err)
	}
	if n == 1 {
		c.rdb.Expire(ctx, key, keyTTL)
	}

	if n > int64(limit) {
		c.rdb.Decr(ctx, key)
		return false, nil
	}
	return true, nil
}

// Release undoes a reservation made by Allow, for sends that were reserved
// but never attempted (e.g. the recipient claim was lost to another worker).
func (c *Counter) Release(ctx context.Context, userID int, localDate string) {
	key := fmt.Sprintf("sendcap:%d:%s", userID, localDate)
	c.rdb.Decr(ctx, key)
}
