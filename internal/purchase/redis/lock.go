package redis

import (
	"context"
	"fmt"
	"time"

	"kanzey-ticketing/internal/logger"

	"github.com/go-redis/redis/v8"
)

const verifyLockPrefix = "payment_verify:"

// unlockScript deletes the key only when it still holds the caller's token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis guards provider status polls so one ticket is verified by one request at a time.
type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

func verifyKey(ticketID string) string {
	return verifyLockPrefix + ticketID
}

// LockVerify reports false when another poll for the ticket is in flight.
func (r *Redis) LockVerify(ctx context.Context, ticketID, token string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, verifyKey(ticketID), token, r.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("lock verify %s: %w", ticketID, err)
	}
	if !ok {
		r.Logger.Debug("REDIS", fmt.Sprintf("verify lock for %s already held", ticketID))
	}
	return ok, nil
}

func (r *Redis) UnlockVerify(ctx context.Context, ticketID, token string) error {
	if err := unlockScript.Run(ctx, r.Client, []string{verifyKey(ticketID)}, token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("unlock verify %s: %w", ticketID, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}
