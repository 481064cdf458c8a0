package fetcher

import (
	"context"
	"net/http"

	"github.com/jonesrussell/crawld/internal/storagepipeline"
)

//go:generate mockgen -source=capabilities.go -destination=capabilities_mock_test.go -package=fetcher_test

// Frontier is the capability WorkerPool needs from the URL frontier (C3):
// claim one URL, report its outcome, and enqueue links discovered while
// processing it.
type Frontier interface {
	Claim(ctx context.Context, worker string) (string, error)
	Complete(ctx context.Context, url, worker string) error
	Fail(ctx context.Context, url, worker string, requeue bool) error
	Enqueue(ctx context.Context, rawURL string, priority float64) error
}

// PolitenessController is the capability WorkerPool needs from the per-domain
// politeness controller (C2): host lease acquisition, robots compliance, and
// adaptive-delay feedback.
type PolitenessController interface {
	TryAcquire(ctx context.Context, host, workerID string) error
	Release(ctx context.Context, host, workerID string) error
	IsAllowed(ctx context.Context, rawURL string) (bool, error)
	RecordOutcome(ctx context.Context, host string, failed bool) error
}

// StoragePipeline is the capability WorkerPool needs from the storage
// pipeline (C4): hand off one fetched page for compression, dedup and batch
// persistence.
type StoragePipeline interface {
	Submit(ctx context.Context, rec storagepipeline.PageRecord) (duplicate bool, err error)
}

// Fetcher is the capability WorkerPool needs to issue an HTTP request.
// *http.Client satisfies this without modification.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}
