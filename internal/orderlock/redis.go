// Package orderlock holds per-order action locks in Redis so that storefront replicas
// do not send two transitions for the same order at once.
package orderlock

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/grocery_storefront/internal/logging"
)

const (
	keyPrefix  = "storefront:order-action:"
	DefaultTTL = 30 * time.Second
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// TTLFor sizes the lock to outlive an action's backend calls: the status read, the
// transition and the re-read after a failure.
func TTLFor(backendTimeout time.Duration) time.Duration {
	return max(DefaultTTL, 3*backendTimeout+5*time.Second)
}

func key(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

// Acquire takes the order's lock for ttl. The lock expires on its own if the holder
// dies before releasing it.
func (r *Redis) Acquire(ctx context.Context, id int64, action string) (func(), bool, error) {
	token := action + ":" + uuid.NewString()
	ok, err := r.client.SetNX(ctx, key(id), token, r.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{key(id)}, token).Err(); err != nil {
			logging.FromContext(ctx).Warn("order_lock_release_failed", "order_id", id, "error", err)
		}
	}, true, nil
}

// Holder returns the action holding the order's lock, if any.
func (r *Redis) Holder(ctx context.Context, id int64) (string, bool, error) {
	v, err := r.client.Get(ctx, key(id)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	action, _, _ := strings.Cut(v, ":")
	return action, true, nil
}
