// Package politeness implements the per-domain politeness controller (C2):
// robots.txt compliance, adaptive crawl-delay, and a distributed mutual-
// exclusion lease so at most one worker fetches a given host at a time.
package politeness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/jonesrussell/crawld/internal/coordination"
)

// Coordination store key prefixes, stable per the external interface.
const (
	leaseKeyPrefix  = "lease:"
	domainKeyPrefix = "domain:"
	robotsKeyPrefix = "robots:"
)

const (
	robotsTxtPath       = "/robots.txt"
	maxRobotsBodyBytes  = 512 * 1024
	maxAdaptiveDelay    = 5 * time.Minute
	adaptiveDecayAmount = 500 * time.Millisecond
	adaptiveGrowthRate  = 2
)

// ErrBusy is returned by TryAcquire when another worker already holds the
// host's lease.
var ErrBusy = errors.New("politeness: host lease held by another worker")

// ErrDelayNotElapsed is returned by TryAcquire when the lease was acquired
// but the minimum crawl delay has not yet passed since the last fetch; the
// lease is released before returning so the caller does not hold it idle.
var ErrDelayNotElapsed = errors.New("politeness: crawl delay not elapsed")

// domainRecord is the per-host politeness state persisted under domain:<host>.
type domainRecord struct {
	LastFetchAt   time.Time     `json:"last_fetch_at"`
	AdaptiveDelay time.Duration `json:"adaptive_delay_ns"`
}

// robotsCacheEntry is the per-host robots.txt snapshot persisted under robots:<host>.
type robotsCacheEntry struct {
	Body       []byte        `json:"body,omitempty"`
	FetchedAt  time.Time     `json:"fetched_at"`
	AllowAll   bool          `json:"allow_all"`
	CrawlDelay time.Duration `json:"crawl_delay_ns"`
}

// Controller implements the lease protocol and robots.txt cache described in
// the component design's politeness controller.
type Controller struct {
	store           *coordination.Store
	httpClient      *http.Client
	userAgent       string
	floorDelay      time.Duration
	leaseTTL        time.Duration
	robotsCacheTTL  time.Duration
	robotsInFlight  sync.Map // host -> *sync.Mutex, dedupes concurrent robots.txt fetches
}

// Config configures a Controller.
type Config struct {
	HTTPClient     *http.Client
	UserAgent      string
	FloorDelay     time.Duration
	LeaseTTL       time.Duration
	RobotsCacheTTL time.Duration
}

// New constructs a Controller backed by store.
func New(store *coordination.Store, cfg Config) *Controller {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Controller{
		store:          store,
		httpClient:     client,
		userAgent:      cfg.UserAgent,
		floorDelay:     cfg.FloorDelay,
		leaseTTL:       cfg.LeaseTTL,
		robotsCacheTTL: cfg.RobotsCacheTTL,
	}
}

// IsAllowed reports whether rawURL is permitted by its host's robots.txt for
// the controller's user agent. A robots.txt that fails to fetch or parse is
// treated as allow-all, per the component design's graceful degradation.
func (c *Controller) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("politeness: parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return false, fmt.Errorf("politeness: empty host in url %q", rawURL)
	}

	entry, err := c.getOrFetchRobots(ctx, host, parsed.Scheme)
	if err != nil {
		return false, err
	}
	if entry.AllowAll {
		return true, nil
	}

	robots, parseErr := robotstxt.FromBytes(entry.Body)
	if parseErr != nil {
		return true, nil
	}
	return robots.TestAgent(parsed.Path, c.userAgent), nil
}

// getOrFetchRobots reads the cached robots entry for host from the
// coordination store, fetching and populating it if absent or stale. An
// in-process mutex per host dedupes concurrent fetches for the same host
// within this worker; cross-worker stampedes are bounded by the cache TTL.
func (c *Controller) getOrFetchRobots(ctx context.Context, host, scheme string) (*robotsCacheEntry, error) {
	key := robotsKeyPrefix + host

	if raw, err := c.store.KVGet(ctx, key); err == nil {
		var entry robotsCacheEntry
		if jsonErr := json.Unmarshal([]byte(raw), &entry); jsonErr == nil {
			return &entry, nil
		}
	} else if !errors.Is(err, coordination.ErrKeyNotFound) {
		return nil, err
	}

	lockAny, _ := c.robotsInFlight.LoadOrStore(host, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	if raw, err := c.store.KVGet(ctx, key); err == nil {
		var entry robotsCacheEntry
		if jsonErr := json.Unmarshal([]byte(raw), &entry); jsonErr == nil {
			return &entry, nil
		}
	}

	entry := c.fetchRobots(ctx, host, scheme)
	encoded, marshalErr := json.Marshal(entry)
	if marshalErr == nil {
		_ = c.store.KVSet(ctx, key, string(encoded), c.robotsCacheTTL)
	}
	return entry, nil
}

// fetchRobots fetches and parses host's robots.txt. Errors and non-2xx
// responses both resolve to allow-all, never returned as an error, since a
// missing robots.txt is standard crawling practice for "allow everything".
func (c *Controller) fetchRobots(ctx context.Context, host, scheme string) *robotsCacheEntry {
	if scheme == "" {
		scheme = "https"
	}
	robotsURL := scheme + "://" + host + robotsTxtPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return &robotsCacheEntry{FetchedAt: time.Now(), AllowAll: true}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &robotsCacheEntry{FetchedAt: time.Now(), AllowAll: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &robotsCacheEntry{FetchedAt: time.Now(), AllowAll: true}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return &robotsCacheEntry{FetchedAt: time.Now(), AllowAll: true}
	}

	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		return &robotsCacheEntry{FetchedAt: time.Now(), AllowAll: true}
	}

	var crawlDelay time.Duration
	if group := robots.FindGroup(c.userAgent); group != nil {
		crawlDelay = group.CrawlDelay
	}

	return &robotsCacheEntry{Body: body, FetchedAt: time.Now(), CrawlDelay: crawlDelay}
}

// TryAcquire attempts to begin a fetch on host for workerID. On success the
// caller owns host until Release or lease expiry. ErrBusy means another
// worker holds the lease; ErrDelayNotElapsed means the lease was granted and
// immediately released because the minimum crawl delay has not passed —
// either way the caller must back off and retry.
func (c *Controller) TryAcquire(ctx context.Context, host, workerID string) error {
	leaseKey := leaseKeyPrefix + host

	acquired, err := c.store.KVSetIfAbsent(ctx, leaseKey, workerID, c.leaseTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrBusy
	}

	record, err := c.getDomainRecord(ctx, host)
	if err != nil {
		_, _ = c.store.KVCompareAndDelete(ctx, leaseKey, workerID)
		return err
	}

	delay := c.effectiveDelay(ctx, host, record)
	if !record.LastFetchAt.IsZero() {
		if elapsed := time.Since(record.LastFetchAt); elapsed < delay {
			_, _ = c.store.KVCompareAndDelete(ctx, leaseKey, workerID)
			return fmt.Errorf("%w: retry after %s", ErrDelayNotElapsed, delay-elapsed)
		}
	}

	return nil
}

// Release atomically writes last-fetch=now and deletes the host lease, but
// only if it is still owned by workerID — preventing a slow worker from
// clobbering a successor's lease.
func (c *Controller) Release(ctx context.Context, host, workerID string) error {
	leaseKey := leaseKeyPrefix + host

	deleted, err := c.store.KVCompareAndDelete(ctx, leaseKey, workerID)
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}

	record, err := c.getDomainRecord(ctx, host)
	if err != nil {
		record = &domainRecord{}
	}
	record.LastFetchAt = time.Now()
	return c.saveDomainRecord(ctx, host, record)
}

// RecordOutcome updates the host's adaptive delay: doubling on a transient
// failure (5xx/429) and decaying additively on success.
func (c *Controller) RecordOutcome(ctx context.Context, host string, failed bool) error {
	record, err := c.getDomainRecord(ctx, host)
	if err != nil {
		record = &domainRecord{}
	}
	if failed {
		next := record.AdaptiveDelay * adaptiveGrowthRate
		if next == 0 {
			next = adaptiveDecayAmount
		}
		if next > maxAdaptiveDelay {
			next = maxAdaptiveDelay
		}
		record.AdaptiveDelay = next
	} else if record.AdaptiveDelay > 0 {
		record.AdaptiveDelay -= adaptiveDecayAmount
		if record.AdaptiveDelay < 0 {
			record.AdaptiveDelay = 0
		}
	}
	return c.saveDomainRecord(ctx, host, record)
}

// effectiveDelay returns max(floor, robots crawl-delay, adaptive penalty).
func (c *Controller) effectiveDelay(ctx context.Context, host string, record *domainRecord) time.Duration {
	delay := c.floorDelay

	if raw, err := c.store.KVGet(ctx, robotsKeyPrefix+host); err == nil {
		var entry robotsCacheEntry
		if json.Unmarshal([]byte(raw), &entry) == nil && entry.CrawlDelay > delay {
			delay = entry.CrawlDelay
		}
	}

	if record.AdaptiveDelay > delay {
		delay = record.AdaptiveDelay
	}

	return delay
}

func (c *Controller) getDomainRecord(ctx context.Context, host string) (*domainRecord, error) {
	raw, err := c.store.KVGet(ctx, domainKeyPrefix+host)
	if errors.Is(err, coordination.ErrKeyNotFound) {
		return &domainRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	var record domainRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return &domainRecord{}, nil
	}
	return &record, nil
}

func (c *Controller) saveDomainRecord(ctx context.Context, host string, record *domainRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("politeness: marshal domain record: %w", err)
	}
	return c.store.KVSet(ctx, domainKeyPrefix+host, string(encoded), 0)
}
