package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
	extErrors "github.com/pkg/errors"
)

// DefaultLedgerTTL covers Stripe's redelivery window of three days
const DefaultLedgerTTL = 72 * time.Hour

const ledgerKeyPrefix = "stripe:event:"

// EventLedger remembers Stripe events that were applied successfully so that
// a redelivery can be acknowledged without dispatching again
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// RedisLedger is an EventLedger backed by expiring Redis keys
type RedisLedger struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

var _ EventLedger = &RedisLedger{}

// NewRedisLedger returns a RedisLedger. A ttl of 0 uses DefaultLedgerTTL.
func NewRedisLedger(client redis.UniversalClient, ttl time.Duration) (*RedisLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("nil redisClient is invalid")
	}
	if ttl <= 0 {
		ttl = DefaultLedgerTTL
	}
	return &RedisLedger{
		redis: client,
		ttl:   ttl,
	}, nil
}

func ledgerKey(eventID string) string {
	return ledgerKeyPrefix + eventID
}

func (l *RedisLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := l.redis.Exists(ledgerKey(eventID)).Result()
	if err != nil {
		return false, extErrors.Wrap(err, "Cannot query event ledger")
	}
	return n > 0, nil
}

func (l *RedisLedger) Remember(ctx context.Context, eventID string) error {
	if err := l.redis.Set(ledgerKey(eventID), time.Now().Unix(), l.ttl).Err(); err != nil {
		return extErrors.Wrap(err, "Cannot record event in ledger")
	}
	return nil
}
