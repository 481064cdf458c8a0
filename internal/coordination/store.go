// Package coordination provides the narrow capability facade the rest of the
// crawler core depends on: bitfield, sorted-set and key/value primitives
// backed by Redis, plus a pipeline helper for network amortization. No
// caller outside this package imports go-redis directly, so the backing
// store is swappable without touching the frontier, politeness controller
// or approximate filter.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	infraerrors "github.com/jonesrussell/crawld/internal/infra/errors"
	"github.com/jonesrussell/crawld/internal/infra/retry"
)

// ErrKeyNotFound is returned by KVGet when the key does not exist.
var ErrKeyNotFound = errors.New("coordination: key not found")

// ErrTimeout is returned when an operation exceeds its deadline.
var ErrTimeout = errors.New("coordination: operation timed out")

var compareAndDeleteScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

var compareAndExtendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end
`)

// Store is a thin wrapper over a Redis client exposing only the primitives
// C1-C5 are allowed to depend on.
type Store struct {
	client *redis.Client
}

// New wraps an already-connected Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// Ping verifies the coordination store is reachable. A handful of
// connection-refused/timeout retries are given before giving up. The
// worker's startup path does not call it: the exit-code-3 check is the
// single ping inside rediscfg.NewClient.
func (s *Store) Ping(ctx context.Context) error {
	err := retry.Retry(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		IsRetryable:  retry.DefaultIsRetryable,
	}, func() error {
		return s.client.Ping(ctx).Err()
	})
	if err != nil {
		return fmt.Errorf("coordination store unreachable: %w", err)
	}
	return nil
}

// BitfieldGetBits reads the bits at the given offsets from key, in order.
func (s *Store) BitfieldGetBits(ctx context.Context, key string, offsets []uint64) ([]bool, error) {
	if len(offsets) == 0 {
		return nil, nil
	}
	pipe := s.client.Pipeline()
	cmds := make([]*redis.IntCmd, len(offsets))
	for i, off := range offsets {
		cmds[i] = pipe.GetBit(ctx, key, int64(off))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, translateErr(err)
	}
	result := make([]bool, len(offsets))
	for i, cmd := range cmds {
		v, err := cmd.Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return nil, translateErr(err)
		}
		result[i] = v == 1
	}
	return result, nil
}

// BitfieldSetBits sets the bits at the given offsets in key to 1. Idempotent.
func (s *Store) BitfieldSetBits(ctx context.Context, key string, offsets []uint64) error {
	if len(offsets) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, off := range offsets {
		pipe.SetBit(ctx, key, int64(off), 1)
	}
	_, err := pipe.Exec(ctx)
	return translateErr(err)
}

// BitfieldPopCount returns the number of set bits in key.
func (s *Store) BitfieldPopCount(ctx context.Context, key string) (int64, error) {
	n, err := s.client.BitCount(ctx, key, nil).Result()
	return n, translateErr(err)
}

// ZSetAdd adds member to the sorted set at key with the given score.
func (s *Store) ZSetAdd(ctx context.Context, key string, score float64, member string) error {
	err := s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
	return translateErr(err)
}

// ZSetPopMin atomically removes and returns the lowest-score member of key.
// The ok return value is false if the set was empty.
func (s *Store) ZSetPopMin(ctx context.Context, key string) (member string, score float64, ok bool, err error) {
	res, popErr := s.client.ZPopMin(ctx, key, 1).Result()
	if popErr != nil {
		return "", 0, false, translateErr(popErr)
	}
	if len(res) == 0 {
		return "", 0, false, nil
	}
	m, _ := res[0].Member.(string)
	return m, res[0].Score, true, nil
}

// ZSetCard returns the number of members in the sorted set at key.
func (s *Store) ZSetCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.ZCard(ctx, key).Result()
	return n, translateErr(err)
}

// ZSetRemove removes member from the sorted set at key, if present.
func (s *Store) ZSetRemove(ctx context.Context, key, member string) error {
	return translateErr(s.client.ZRem(ctx, key, member).Err())
}

// KVSetIfAbsent atomically sets key=value with the given ttl only if key did
// not already exist. Returns true iff this call performed the write.
func (s *Store) KVSetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, ttl).Result()
	return ok, translateErr(err)
}

// KVCompareAndDelete deletes key only if its current value equals expected.
// Returns true iff the delete happened.
func (s *Store) KVCompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	result, err := compareAndDeleteScript.Run(ctx, s.client, []string{key}, expected).Int()
	if err != nil {
		return false, translateErr(err)
	}
	return result == 1, nil
}

// KVCompareAndExtend extends key's TTL only if its current value equals
// expected. Used to renew a lease or an in-flight claim without clobbering
// a different owner's entry.
func (s *Store) KVCompareAndExtend(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	result, err := compareAndExtendScript.Run(ctx, s.client, []string{key}, expected, ttl.Milliseconds()).Int()
	if err != nil {
		return false, translateErr(err)
	}
	return result == 1, nil
}

// KVIncr atomically increments the integer value at key by 1, creating it at
// 1 if absent, and returns the new value. Used for the frontier's per-URL
// retry counters.
func (s *Store) KVIncr(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	return n, translateErr(err)
}

// KVDelete removes key unconditionally. A no-op if key does not exist.
func (s *Store) KVDelete(ctx context.Context, key string) error {
	return translateErr(s.client.Del(ctx, key).Err())
}

// KVSet unconditionally sets key=value with the given ttl (0 = no expiry).
func (s *Store) KVSet(ctx context.Context, key, value string, ttl time.Duration) error {
	return translateErr(s.client.Set(ctx, key, value, ttl).Err())
}

// KVGet returns the value at key, or ErrKeyNotFound if it does not exist.
func (s *Store) KVGet(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", translateErr(err)
	}
	return val, nil
}

// KVTTL returns the remaining time-to-live of key.
func (s *Store) KVTTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.TTL(ctx, key).Result()
	return ttl, translateErr(err)
}

// KVScan iterates keys matching prefix+"*", invoking fn for each. Iteration
// stops early if fn returns an error.
func (s *Store) KVScan(ctx context.Context, prefix string, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return translateErr(iter.Err())
}

// PipelineOp is a single deferred operation submitted to Pipeline.
type PipelineOp func(pipe redis.Pipeliner)

// Pipeline batches ops into a single round-trip. Atomicity across ops is
// not guaranteed or required; this exists purely for network amortization.
func (s *Store) Pipeline(ctx context.Context, ops ...PipelineOp) error {
	pipe := s.client.Pipeline()
	for _, op := range ops {
		op(pipe)
	}
	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return translateErr(err)
	}
	return nil
}

func translateErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return infraerrors.WrapWithContext(err, "coordination: store operation failed")
}
