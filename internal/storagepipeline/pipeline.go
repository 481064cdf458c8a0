package storagepipeline

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/flate"

	"github.com/jonesrussell/crawld/internal/infra/logger"
	"github.com/jonesrussell/crawld/internal/infra/retry"
)

// dedupCacheSize bounds the in-process content-hash cache that short-
// circuits the MinIO stat round-trip for hashes this worker has already
// persisted or checked recently.
const dedupCacheSize = 4096

// Pipeline is the storage pipeline (C4): it compresses and deduplicates
// fetched page bodies into the content collection, and batches their
// metadata into the metadata collection by count (batch_size) or age
// (batch_age), whichever comes first.
type Pipeline struct {
	metadata *MetadataStore
	content  *ContentStore
	log      logger.Logger

	batchSize int
	batchAge  time.Duration

	dedupCache *lru.Cache[string, bool]

	mu     sync.Mutex
	buffer []PageMetadata
	oldest time.Time

	flushCh chan struct{}
}

// NewPipeline constructs a Pipeline. batchSize and batchAge come from the
// worker's startup configuration.
func NewPipeline(metadata *MetadataStore, content *ContentStore, batchSize int, batchAge time.Duration, log logger.Logger) (*Pipeline, error) {
	cache, err := lru.New[string, bool](dedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: create dedup cache: %w", err)
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Pipeline{
		metadata:   metadata,
		content:    content,
		log:        log,
		batchSize:  batchSize,
		batchAge:   batchAge,
		dedupCache: cache,
		flushCh:    make(chan struct{}, 1),
	}, nil
}

// Run drives the periodic batch-age flush until ctx is cancelled. Callers
// start this in its own goroutine alongside the worker pool.
func (p *Pipeline) Run(ctx context.Context) {
	ticker := time.NewTicker(p.batchAge)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.flush(ctx, false); err != nil {
				p.log.Warn("periodic batch flush failed", logger.Error(err))
			}
		case <-p.flushCh:
			if err := p.flush(ctx, true); err != nil {
				p.log.Warn("batch-size flush failed", logger.Error(err))
			}
		}
	}
}

// Submit compresses and content-addressably stores rec.Body, skipping the
// write entirely when an identical hash was already seen, then queues
// rec.Metadata for the next batch flush. Returns true if the content was a
// duplicate of content already in the content collection.
func (p *Pipeline) Submit(ctx context.Context, rec PageRecord) (duplicate bool, err error) {
	hash := ContentHash(rec.Body)
	rec.Metadata.ContentHash = hash
	rec.Metadata.ContentLength = int64(len(rec.Body))

	if _, seen := p.dedupCache.Get(hash); seen {
		duplicate = true
	} else {
		compressed, compErr := compress(rec.Body)
		if compErr != nil {
			return false, fmt.Errorf("storagepipeline: compress body: %w", compErr)
		}
		existed, putErr := p.content.PutIfAbsent(ctx, hash, compressed, int64(len(rec.Body)))
		if putErr != nil {
			return false, fmt.Errorf("storagepipeline: persist content: %w", putErr)
		}
		duplicate = existed
		p.dedupCache.Add(hash, true)
	}

	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.oldest = time.Now()
	}
	p.buffer = append(p.buffer, rec.Metadata)
	due := len(p.buffer) >= p.batchSize
	p.mu.Unlock()

	if due {
		select {
		case p.flushCh <- struct{}{}:
		default:
		}
	}
	return duplicate, nil
}

// Flush forces an immediate flush of any buffered metadata. Called at
// shutdown so a partially-filled batch isn't lost.
func (p *Pipeline) Flush(ctx context.Context) error {
	return p.flush(ctx, true)
}

func (p *Pipeline) flush(ctx context.Context, force bool) error {
	p.mu.Lock()
	if len(p.buffer) == 0 {
		p.mu.Unlock()
		return nil
	}
	if !force && len(p.buffer) < p.batchSize && time.Since(p.oldest) < p.batchAge {
		p.mu.Unlock()
		return nil
	}
	batch := p.buffer
	p.buffer = nil
	p.mu.Unlock()

	return retry.RetryWithDefaults(ctx, func() error {
		return p.metadata.PutBatch(ctx, batch)
	})
}

// GetPage returns previously persisted metadata for url, or ErrPageNotFound.
func (p *Pipeline) GetPage(ctx context.Context, url string) (*PageMetadata, error) {
	return p.metadata.Get(ctx, url)
}

// FindByContentHash returns every page previously persisted with the given
// content hash.
func (p *Pipeline) FindByContentHash(ctx context.Context, hash string) ([]PageMetadata, error) {
	return p.metadata.FindByContentHash(ctx, hash)
}

// GetContent returns the decompressed body stored under contentHash.
func (p *Pipeline) GetContent(ctx context.Context, contentHash string) ([]byte, error) {
	return p.content.Get(ctx, contentHash)
}

func compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, 6) // deflate level 6
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: new flate writer: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return nil, fmt.Errorf("storagepipeline: flate write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("storagepipeline: flate close: %w", err)
	}
	return buf.Bytes(), nil
}
