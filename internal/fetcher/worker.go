package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonesrussell/crawld/internal/frontier"
	"github.com/jonesrussell/crawld/internal/infra/logger"
	"github.com/jonesrussell/crawld/internal/metrics"
	"github.com/jonesrussell/crawld/internal/politeness"
	"github.com/jonesrussell/crawld/internal/storagepipeline"
)

// HTTP status classes the worker switches on.
const (
	statusOK           = http.StatusOK
	statusNotModified  = http.StatusNotModified
	statusNotFound     = http.StatusNotFound
	statusTooManyReqs  = http.StatusTooManyRequests
	statusServerErrLow = http.StatusInternalServerError
)

// Drop/failure reasons recorded against the dropped/failed metric vectors.
const (
	reasonRobotsBlocked   = "robots_blocked"
	reasonNotFound        = "not_found"
	reasonMaxRetries      = "max_retries_exceeded"
	reasonFetchError      = "fetch_error"
	reasonServerError     = "server_error"
	reasonExtractError    = "extract_error"
	reasonUnhandledStatus = "unhandled_status"
	reasonBadRedirect     = "bad_redirect"
)

// maxResponseBodyBytes bounds how much of a response body the worker reads,
// overridable per worker via WorkerPoolConfig.MaxContentBytes.
const maxResponseBodyBytes = 10 * 1024 * 1024

// redirectPriority is the frontier priority a redirect target is enqueued
// at: a small penalty relative to the fresh-link baseline of 0, so a chain
// of redirects is served after directly-discovered links. It ties with a URL
// on its first failure retry, which the frontier requeues at retryPenalty
// (1.0) times the retry count.
const redirectPriority = 1.0

// defaultHostClaimBudget bounds the local try_acquire retry loop when
// WorkerPoolConfig.HostClaimBudget is left unset.
const defaultHostClaimBudget = 1

// WorkerPoolConfig configures a WorkerPool.
type WorkerPoolConfig struct {
	WorkerID        string
	Concurrency     int
	MaxPages        int
	IdleBackoff     time.Duration
	MaxIdlePolls    int
	FetchTimeout    time.Duration
	MaxContentBytes int64
	UserAgent       string
	HostClaimBudget int

	Frontier   Frontier
	Politeness PolitenessController
	Pipeline   StoragePipeline
	Extractor  *ContentExtractor
	Metrics    *metrics.Metrics
	Logger     logger.Logger
	HTTPClient Fetcher
}

// WorkerPool runs Concurrency goroutines, each looping claim -> robots check
// -> host lease -> fetch -> release -> parse -> persist -> enqueue links ->
// complete until the frontier is exhausted past MaxIdlePolls, MaxPages is
// reached, or the context is cancelled.
type WorkerPool struct {
	cfg          WorkerPoolConfig
	pagesFetched atomic.Int64
	wg           sync.WaitGroup
}

// NewWorkerPool constructs a WorkerPool. HTTPClient defaults to a client
// with FetchTimeout and a CheckRedirect that never auto-follows, since the
// worker loop itself observes and re-enqueues redirect targets.
func NewWorkerPool(cfg WorkerPoolConfig) *WorkerPool {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Timeout:       cfg.FetchTimeout,
			CheckRedirect: stopRedirects,
		}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = maxResponseBodyBytes
	}
	if cfg.HostClaimBudget <= 0 {
		cfg.HostClaimBudget = defaultHostClaimBudget
	}
	return &WorkerPool{cfg: cfg}
}

// Start launches Concurrency worker goroutines.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Concurrency; i++ {
		p.wg.Add(1)
		go p.runWorker(ctx)
	}
}

// Wait blocks until every worker goroutine has returned.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// PagesFetched returns the number of pages successfully persisted so far,
// across all goroutines in the pool.
func (p *WorkerPool) PagesFetched() int64 {
	return p.pagesFetched.Load()
}

func (p *WorkerPool) runWorker(ctx context.Context) {
	defer p.wg.Done()

	idlePolls := 0
	for {
		if ctx.Err() != nil {
			return
		}
		if p.cfg.MaxPages > 0 && p.pagesFetched.Load() >= int64(p.cfg.MaxPages) {
			return
		}

		err := p.claimAndProcess(ctx)
		switch {
		case err == nil:
			idlePolls = 0
		case errors.Is(err, frontier.ErrEmpty):
			idlePolls++
			if p.cfg.MaxIdlePolls > 0 && idlePolls >= p.cfg.MaxIdlePolls {
				return
			}
			if p.sleepOrCancel(ctx, p.cfg.IdleBackoff) {
				return
			}
		case errors.Is(err, politeness.ErrBusy), errors.Is(err, politeness.ErrDelayNotElapsed):
			if p.sleepOrCancel(ctx, p.cfg.IdleBackoff) {
				return
			}
		default:
			p.cfg.Logger.Warn("worker iteration failed", logger.Error(err))
		}
	}
}

func (p *WorkerPool) sleepOrCancel(ctx context.Context, d time.Duration) (cancelled bool) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true
	case <-timer.C:
		return false
	}
}

// claimAndProcess claims one URL and runs it through the fetch loop:
//
//  1. claim a URL from the frontier
//  2. check robots.txt (before touching the host lease at all)
//  3. acquire the host lease, retrying locally up to HostClaimBudget times
//  4. fetch
//  5. release the lease immediately, before any parsing/storage work
//  6. route the response: success is extracted/persisted/enqueued, a
//     redirect is normalized and re-enqueued as its own frontier entry,
//     terminal failures drop the URL, transient failures are requeued
//
// Errors from Claim (frontier.ErrEmpty) and the lease acquisition
// (politeness.ErrBusy / ErrDelayNotElapsed) are returned unwrapped so the
// caller can distinguish "nothing to do right now" from a genuine failure.
func (p *WorkerPool) claimAndProcess(ctx context.Context) error {
	rawURL, err := p.cfg.Frontier.Claim(ctx, p.cfg.WorkerID)
	if err != nil {
		return err
	}

	host, err := frontier.ExtractHost(rawURL)
	if err != nil {
		return p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, false)
	}

	allowed, allowErr := p.cfg.Politeness.IsAllowed(ctx, rawURL)
	if allowErr != nil {
		_ = p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, true)
		return allowErr
	}
	if !allowed {
		p.cfg.Metrics.Dropped.WithLabelValues(reasonRobotsBlocked).Inc()
		return p.cfg.Frontier.Complete(ctx, rawURL, p.cfg.WorkerID)
	}

	if acquireErr := p.acquireHostLease(ctx, host); acquireErr != nil {
		_ = p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, true)
		return acquireErr
	}

	status, body, finalURL, location, fetchErr := p.fetchPage(ctx, rawURL)

	if releaseErr := p.cfg.Politeness.Release(ctx, host, p.cfg.WorkerID); releaseErr != nil {
		p.cfg.Logger.Warn("release lease failed", logger.String("host", host), logger.Error(releaseErr))
	}

	if fetchErr != nil {
		p.handleFetchError(ctx, rawURL, host, fetchErr)
		return nil
	}

	p.routeResponse(ctx, rawURL, finalURL, host, status, body, location)
	return nil
}

// acquireHostLease retries TryAcquire locally, sleeping IdleBackoff between
// attempts, up to HostClaimBudget times before giving up. This keeps
// ordinary lease contention (another worker briefly holding the same host)
// from being charged against the frontier's shared per-URL fetch-failure
// retry counter on every single contention event: only exhausting the whole
// local budget ever reaches Frontier.Fail.
func (p *WorkerPool) acquireHostLease(ctx context.Context, host string) error {
	var err error
	for attempt := 0; attempt < p.cfg.HostClaimBudget; attempt++ {
		err = p.cfg.Politeness.TryAcquire(ctx, host, p.cfg.WorkerID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, politeness.ErrBusy) && !errors.Is(err, politeness.ErrDelayNotElapsed) {
			return err
		}
		if attempt < p.cfg.HostClaimBudget-1 {
			if p.sleepOrCancel(ctx, p.cfg.IdleBackoff) {
				return err
			}
		}
	}
	return err
}

// routeResponse inspects a completed fetch's status code and dispatches to
// the matching outcome. Called after the host lease has already been
// released.
func (p *WorkerPool) routeResponse(ctx context.Context, rawURL, finalURL, host string, status int, body []byte, location string) {
	switch {
	case status == statusOK:
		p.handleSuccess(ctx, rawURL, finalURL, host, status, body)
	case status == statusNotModified:
		_ = p.cfg.Politeness.RecordOutcome(ctx, host, false)
		_ = p.cfg.Frontier.Complete(ctx, rawURL, p.cfg.WorkerID)
	case status >= 300 && status < 400:
		p.handleRedirect(ctx, rawURL, host, location)
	case status == statusNotFound:
		p.cfg.Metrics.Dropped.WithLabelValues(reasonNotFound).Inc()
		_ = p.cfg.Politeness.RecordOutcome(ctx, host, false)
		_ = p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, false)
	case status == statusTooManyReqs || status >= statusServerErrLow:
		p.cfg.Metrics.Failed.WithLabelValues(reasonServerError).Inc()
		_ = p.cfg.Politeness.RecordOutcome(ctx, host, true)
		p.requeueOrDrop(ctx, rawURL)
	default:
		// Other 2xx/4xx statuses: not worth a retry, but not a robots or
		// politeness signal either.
		p.cfg.Metrics.Dropped.WithLabelValues(reasonUnhandledStatus).Inc()
		_ = p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, false)
	}
}

// handleRedirect normalizes the Location header against rawURL and admits
// the target to the frontier as its own entry, so the destination host goes
// through its own robots check and lease acquisition rather than inheriting
// the origin's. The original URL is marked complete, not failed: observing
// a redirect is a normal outcome, not an error.
func (p *WorkerPool) handleRedirect(ctx context.Context, rawURL, host, location string) {
	_ = p.cfg.Politeness.RecordOutcome(ctx, host, false)

	target, err := resolveRedirectTarget(rawURL, location)
	if err != nil {
		p.cfg.Metrics.Dropped.WithLabelValues(reasonBadRedirect).Inc()
		_ = p.cfg.Frontier.Complete(ctx, rawURL, p.cfg.WorkerID)
		return
	}

	if err := p.cfg.Frontier.Enqueue(ctx, target, redirectPriority); err != nil {
		p.cfg.Logger.Warn("enqueue redirect target failed", logger.String("url", target), logger.Error(err))
	}
	_ = p.cfg.Frontier.Complete(ctx, rawURL, p.cfg.WorkerID)
}

// resolveRedirectTarget resolves a (possibly relative) Location header
// against rawURL, reusing the same link-resolution rules ExtractLinks uses
// for in-page anchors: only http/https targets survive, fragments are
// stripped.
func resolveRedirectTarget(rawURL, location string) (string, error) {
	if strings.TrimSpace(location) == "" {
		return "", fmt.Errorf("fetcher: redirect with no location header")
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("fetcher: parse redirect base: %w", err)
	}
	return resolveLink(base, location)
}

func (p *WorkerPool) handleSuccess(ctx context.Context, rawURL, finalURL, host string, status int, body []byte) {
	_ = p.cfg.Politeness.RecordOutcome(ctx, host, false)

	extracted, err := p.cfg.Extractor.Extract(p.cfg.WorkerID, rawURL, body)
	if err != nil {
		p.cfg.Metrics.Failed.WithLabelValues(reasonExtractError).Inc()
		_ = p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, false)
		return
	}

	rec := storagepipeline.PageRecord{
		Metadata: storagepipeline.PageMetadata{
			URL:         rawURL,
			FinalURL:    finalURL,
			Title:       extracted.Title,
			Description: extracted.Description,
			Author:      extracted.Author,
			StatusCode:  status,
			FetchedAt:   time.Now(),
			WorkerID:    p.cfg.WorkerID,
		},
		Body: body,
	}

	duplicate, err := p.cfg.Pipeline.Submit(ctx, rec)
	if err != nil {
		p.cfg.Logger.Warn("persist page failed", logger.String("url", rawURL), logger.Error(err))
		_ = p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, true)
		return
	}
	if duplicate {
		p.cfg.Metrics.DuplicateContent.Inc()
	}

	links, err := ExtractLinks(finalURL, body)
	if err == nil {
		for _, link := range links {
			_ = p.cfg.Frontier.Enqueue(ctx, link, 0)
		}
	}

	p.cfg.Metrics.Fetched.WithLabelValues(statusClass(status)).Inc()
	p.pagesFetched.Add(1)
	_ = p.cfg.Frontier.Complete(ctx, rawURL, p.cfg.WorkerID)
}

func (p *WorkerPool) handleFetchError(ctx context.Context, rawURL, host string, err error) {
	p.cfg.Logger.Warn("fetch failed", logger.String("url", rawURL), logger.Error(err))
	p.cfg.Metrics.Failed.WithLabelValues(reasonFetchError).Inc()
	_ = p.cfg.Politeness.RecordOutcome(ctx, host, true)
	p.requeueOrDrop(ctx, rawURL)
}

// requeueOrDrop hands rawURL back to the frontier with requeue set. The
// frontier owns the retry-count bookkeeping (see Frontier.Fail) and drops the
// URL itself once the retry budget is exhausted; Frontier.Fail does not
// report which branch it took, so no dropped metric is recorded here.
func (p *WorkerPool) requeueOrDrop(ctx context.Context, rawURL string) {
	if err := p.cfg.Frontier.Fail(ctx, rawURL, p.cfg.WorkerID, true); err != nil {
		p.cfg.Logger.Warn("requeue failed", logger.String("url", rawURL), logger.Error(err))
	}
}

// fetchPage issues the GET request and returns the status code, body, the
// (possibly redirected-from) final URL, and the Location header verbatim
// for 3xx responses. Redirects are never auto-followed (see stopRedirects);
// the caller decides what to do with a 3xx status.
func (p *WorkerPool) fetchPage(ctx context.Context, rawURL string) (status int, body []byte, finalURL, location string, err error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if p.cfg.FetchTimeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, p.cfg.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, nil, "", "", err
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, "", "", err
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, p.cfg.MaxContentBytes)
	data, readErr := io.ReadAll(limited)
	if readErr != nil {
		return 0, nil, "", "", readErr
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return resp.StatusCode, data, final, resp.Header.Get("Location"), nil
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}
