package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemPending = "PENDING"
	idemDone    = "DONE:"
)

type IdemState int

const (
	// IdemNew means the caller now owns the key and must Complete or
	// Abandon it.
	IdemNew IdemState = iota
	// IdemInFlight means another request with the same key is running.
	IdemInFlight
	// IdemReplay means the key already has a stored response.
	IdemReplay
)

// IdempotencyStore remembers responses of retried check-in requests so a
// client resending after a timeout gets the original outcome instead of a
// second attempt.
type IdempotencyStore struct {
	rdb     *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl, lockTTL: 30 * time.Second}
}

// Begin claims key. For IdemReplay the stored payload is returned.
func (s *IdempotencyStore) Begin(ctx context.Context, key string) (IdemState, string, error) {
	const op = "redis.IdempotencyStore.Begin"

	ok, err := s.rdb.SetNX(ctx, key, idemPending, s.lockTTL).Result()
	if err != nil {
		return IdemNew, "", fmt.Errorf("%s:%w", op, err)
	}
	if ok {
		return IdemNew, "", nil
	}

	v, err := s.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		// Expired between SETNX and GET; try once more.
		ok, err = s.rdb.SetNX(ctx, key, idemPending, s.lockTTL).Result()
		if err != nil {
			return IdemNew, "", fmt.Errorf("%s:%w", op, err)
		}
		if ok {
			return IdemNew, "", nil
		}
		return IdemInFlight, "", nil
	}
	if err != nil {
		return IdemNew, "", fmt.Errorf("%s:%w", op, err)
	}

	if payload, found := strings.CutPrefix(v, idemDone); found {
		return IdemReplay, payload, nil
	}

	return IdemInFlight, "", nil
}

// Complete stores the final response for key.
func (s *IdempotencyStore) Complete(ctx context.Context, key, payload string) error {
	return s.rdb.Set(ctx, key, idemDone+payload, s.ttl).Err()
}

// Abandon drops the claim so the request can be retried.
func (s *IdempotencyStore) Abandon(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
