// Package fetcher wires together the coordination store, approximate
// filter, politeness controller, frontier, storage pipeline and metrics
// into the worker control loop and drives it from process start to a
// graceful, signal-triggered shutdown.
package fetcher

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonesrussell/crawld/internal/config"
	"github.com/jonesrussell/crawld/internal/coordination"
	"github.com/jonesrussell/crawld/internal/filter"
	"github.com/jonesrussell/crawld/internal/frontier"
	"github.com/jonesrussell/crawld/internal/infra/logger"
	rediscfg "github.com/jonesrussell/crawld/internal/infra/redis"
	"github.com/jonesrussell/crawld/internal/metrics"
	"github.com/jonesrussell/crawld/internal/politeness"
	"github.com/jonesrussell/crawld/internal/storagepipeline"
)

// Run loads configuration, connects to the coordination and document
// stores, and drives the worker pool until ctx is cancelled (typically by
// SIGINT/SIGTERM) or MaxPages is reached. The returned error, if any, wraps
// one of the exit-code sentinels in this package; see ExitCode.
func Run(ctx context.Context, cfgPath string, debug bool) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("%w: load config: %v", errMisconfigured, err)
	}
	if debug {
		cfg.Logger.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", errMisconfigured, err)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Format:      cfg.Logger.Format,
		Development: cfg.Logger.Development,
		OutputPaths: cfg.Logger.OutputPaths,
	})
	if err != nil {
		return fmt.Errorf("%w: create logger: %v", errMisconfigured, err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting worker", logger.String("worker_id", cfg.WorkerID))

	redisClient, err := rediscfg.NewClient(cfg.Redis)
	if err != nil {
		return fmt.Errorf("%w: %v", errCoordinationStoreUnreachable, err)
	}
	defer redisClient.Close()

	store := coordination.New(redisClient)

	metadataStore, err := storagepipeline.NewMetadataStore(&cfg.Elasticsearch, cfg.Elasticsearch.IndexName, log)
	if err != nil {
		return fmt.Errorf("%w: %v", errDocumentStoreUnreachable, err)
	}
	healthCtx, healthCancel := context.WithTimeout(ctx, 10*time.Second)
	healthErr := metadataStore.HealthCheck(healthCtx)
	healthCancel()
	if healthErr != nil {
		return fmt.Errorf("%w: %v", errDocumentStoreUnreachable, healthErr)
	}

	contentStore, err := storagepipeline.NewContentStore(&cfg.Minio, log)
	if err != nil {
		return fmt.Errorf("%w: %v", errDocumentStoreUnreachable, err)
	}
	if err := contentStore.HealthCheck(ctx); err != nil && !cfg.Minio.FailSilently {
		return fmt.Errorf("%w: %v", errDocumentStoreUnreachable, err)
	}

	pipeline, err := storagepipeline.NewPipeline(metadataStore, contentStore, cfg.BatchSize, cfg.BatchAge, log)
	if err != nil {
		return fmt.Errorf("%w: %v", errMisconfigured, err)
	}

	urlFilter := filter.New(store, cfg.FilterCapacity, cfg.FilterErrorRate)
	urlFrontier := frontier.New(store, urlFilter, cfg.ClaimTTL, cfg.MaxRetries)
	politenessController := politeness.New(store, politeness.Config{
		UserAgent:      cfg.UserAgent,
		FloorDelay:     cfg.DefaultCrawlDelay,
		LeaseTTL:       cfg.LeaseTTL,
		RobotsCacheTTL: cfg.RobotsCacheTTL,
	})
	workerMetrics := metrics.New(prometheus.DefaultRegisterer, cfg.WorkerID)

	pool := NewWorkerPool(WorkerPoolConfig{
		WorkerID:        cfg.WorkerID,
		Concurrency:     1,
		MaxPages:        cfg.MaxPages,
		IdleBackoff:     cfg.IdleBackoff,
		MaxIdlePolls:    cfg.MaxIdlePolls,
		FetchTimeout:    cfg.FetchTimeout,
		MaxContentBytes: cfg.MaxContentBytes,
		UserAgent:       cfg.UserAgent,
		HostClaimBudget: cfg.HostClaimBudget,
		Frontier:        urlFrontier,
		Politeness:      politenessController,
		Pipeline:        pipeline,
		Extractor:       NewContentExtractor(),
		Metrics:         workerMetrics,
		Logger:          log,
	})

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipelineCtx, pipelineCancel := context.WithCancel(context.Background())
	defer pipelineCancel()
	go pipeline.Run(pipelineCtx)

	go runSweeper(runCtx, urlFrontier, workerMetrics, log, cfg.SweepInterval)

	pool.Start(runCtx)
	pool.Wait()

	log.Info("worker stopped, flushing pipeline", logger.String("worker_id", cfg.WorkerID))

	flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.GracePeriod)
	defer flushCancel()
	if err := pipeline.Flush(flushCtx); err != nil {
		log.Warn("final pipeline flush failed", logger.Error(err))
	}

	return nil
}

// runSweeper periodically recovers stale in-flight claims until ctx is
// cancelled. Any worker may run this cooperatively; there is no singleton
// recovery role.
func runSweeper(ctx context.Context, f *frontier.Frontier, m *metrics.Metrics, log logger.Logger, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recovered, err := f.SweepStale(ctx)
			if err != nil {
				log.Warn("stale claim sweep failed", logger.Error(err))
				continue
			}
			if recovered > 0 {
				m.Recovered.Add(float64(recovered))
				log.Debug("recovered stale claims", logger.Int("count", recovered))
			}
		}
	}
}
