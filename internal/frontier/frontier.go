package frontier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonesrussell/crawld/internal/coordination"
)

// Coordination store key prefixes, stable per the external interface.
const (
	queueKey       = "frontier"
	inflightPrefix = "inflight:"
	retryPrefix    = "retries:"
)

// stalePenalty and retryPenalty nudge priority downward (served later) when
// a URL is recycled, so persistently failing URLs don't starve fresh ones.
const (
	stalePenalty = 2.0
	retryPenalty = 1.0
)

// ErrEmpty is returned by Claim when the frontier has no ready URL.
var ErrEmpty = errors.New("frontier: empty")

// membershipFilter is the capability C3 needs from the approximate filter
// (C1): a narrower view than filter.Filter's full API, so this package does
// not need to import filter's sizing/hashing concerns.
type membershipFilter interface {
	Contains(ctx context.Context, normalizedURL string) (bool, error)
	Insert(ctx context.Context, normalizedURL string) error
}

// claimRecord is the JSON value stored at inflight:<url>.
type claimRecord struct {
	Worker    string    `json:"worker"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// Frontier is the priority queue of URLs awaiting fetch, with in-flight
// claim tracking and crash recovery via stale-claim sweeping.
type Frontier struct {
	store      *coordination.Store
	filter     membershipFilter
	claimTTL   time.Duration
	maxRetries int
}

// New constructs a Frontier backed by store and gated by filter.
func New(store *coordination.Store, filter membershipFilter, claimTTL time.Duration, maxRetries int) *Frontier {
	return &Frontier{store: store, filter: filter, claimTTL: claimTTL, maxRetries: maxRetries}
}

// Enqueue admits url at the given priority (lower = earlier). The URL is
// normalized, checked against the approximate filter, and inserted into the
// filter before the frontier sorted set — in that order — so a crash
// between the two steps yields at most a harmless duplicate insert attempt
// later, never a URL that is in the frontier but unmarked in the filter.
func (f *Frontier) Enqueue(ctx context.Context, rawURL string, priority float64) error {
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}

	seen, err := f.filter.Contains(ctx, normalized)
	if err != nil {
		return fmt.Errorf("frontier: filter check: %w", err)
	}
	if seen {
		return nil
	}

	if err := f.filter.Insert(ctx, normalized); err != nil {
		return fmt.Errorf("frontier: filter insert: %w", err)
	}

	if err := f.store.ZSetAdd(ctx, queueKey, priority, normalized); err != nil {
		return fmt.Errorf("frontier: zset add: %w", err)
	}
	return nil
}

// Claim atomically pops the lowest-priority URL and records an in-flight
// claim for worker. Returns ErrEmpty if the frontier has nothing ready.
func (f *Frontier) Claim(ctx context.Context, worker string) (string, error) {
	member, _, ok, err := f.store.ZSetPopMin(ctx, queueKey)
	if err != nil {
		return "", fmt.Errorf("frontier: claim: %w", err)
	}
	if !ok {
		return "", ErrEmpty
	}

	record := claimRecord{Worker: worker, ClaimedAt: time.Now()}
	encoded, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("frontier: marshal claim: %w", err)
	}

	if err := f.store.KVSet(ctx, inflightPrefix+member, string(encoded), f.claimTTL); err != nil {
		return "", fmt.Errorf("frontier: record claim: %w", err)
	}
	return member, nil
}

// Complete marks url as done: the in-flight entry is deleted if and only if
// it is still owned by worker, and the per-URL retry counter is cleared.
func (f *Frontier) Complete(ctx context.Context, url, worker string) error {
	owned, raw, err := f.ownsClaim(ctx, url, worker)
	if err != nil {
		return err
	}
	if !owned {
		return nil
	}
	if _, err := f.store.KVCompareAndDelete(ctx, inflightPrefix+url, raw); err != nil {
		return fmt.Errorf("frontier: complete: %w", err)
	}
	_ = f.store.KVDelete(ctx, retryPrefix+url)
	return nil
}

// Fail reports that fetching url failed. If requeue is true and the URL's
// retry count is below the configured maximum, it is re-admitted to the
// frontier with an added penalty; otherwise it is dropped (the approximate
// filter still reflects it as seen, so it will never be re-admitted via
// Enqueue either).
func (f *Frontier) Fail(ctx context.Context, url, worker string, requeue bool) error {
	owned, raw, err := f.ownsClaim(ctx, url, worker)
	if err != nil {
		return err
	}
	if !owned {
		return nil
	}

	if _, err := f.store.KVCompareAndDelete(ctx, inflightPrefix+url, raw); err != nil {
		return fmt.Errorf("frontier: fail: %w", err)
	}

	if !requeue {
		return nil
	}

	count, err := f.store.KVIncr(ctx, retryPrefix+url)
	if err != nil {
		return fmt.Errorf("frontier: increment retry count: %w", err)
	}
	if int(count) > f.maxRetries {
		return nil
	}

	var record claimRecord
	priority := retryPenalty
	if json.Unmarshal([]byte(raw), &record) == nil {
		// retain no prior priority information beyond the penalty; the
		// caller supplies the base priority via re-enqueue when it has one.
		_ = record
	}
	return f.store.ZSetAdd(ctx, queueKey, priority*float64(count), url)
}

// ownsClaim reads the in-flight record for url and reports whether worker is
// its current owner, returning the raw stored value for use in a subsequent
// compare-and-delete.
func (f *Frontier) ownsClaim(ctx context.Context, url, worker string) (bool, string, error) {
	raw, err := f.store.KVGet(ctx, inflightPrefix+url)
	if errors.Is(err, coordination.ErrKeyNotFound) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("frontier: read claim: %w", err)
	}
	var record claimRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return false, "", nil
	}
	return record.Worker == worker, raw, nil
}

// SweepStale scans in-flight entries and returns any whose claim has expired
// the claim TTL back to the frontier with a stale penalty, incrementing
// their retry counter. Safe to run concurrently from multiple workers: the
// move is a compare-and-delete on the observed claim record, so only one
// sweeper wins the race for any given URL.
func (f *Frontier) SweepStale(ctx context.Context) (int, error) {
	var recovered int
	var staleURLs []string
	var staleRaw []string

	err := f.store.KVScan(ctx, inflightPrefix, func(key string) error {
		raw, err := f.store.KVGet(ctx, key)
		if errors.Is(err, coordination.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var record claimRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil
		}
		if time.Since(record.ClaimedAt) > f.claimTTL {
			staleURLs = append(staleURLs, key[len(inflightPrefix):])
			staleRaw = append(staleRaw, raw)
		}
		return nil
	})
	if err != nil {
		return recovered, fmt.Errorf("frontier: sweep scan: %w", err)
	}

	for i, url := range staleURLs {
		moved, err := f.store.KVCompareAndDelete(ctx, inflightPrefix+url, staleRaw[i])
		if err != nil || !moved {
			continue
		}
		count, err := f.store.KVIncr(ctx, retryPrefix+url)
		if err != nil {
			continue
		}
		if int(count) > f.maxRetries {
			continue
		}
		if err := f.store.ZSetAdd(ctx, queueKey, stalePenalty*float64(count), url); err == nil {
			recovered++
		}
	}

	return recovered, nil
}

// Size returns the number of URLs currently waiting in the frontier.
func (f *Frontier) Size(ctx context.Context) (int64, error) {
	return f.store.ZSetCard(ctx, queueKey)
}
