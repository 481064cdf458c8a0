// Package storagepipeline implements the storage pipeline (C4): compressed,
// batched persistence of fetched pages split across a metadata collection
// (Elasticsearch) and a content-addressable content collection (MinIO),
// deduplicated by content hash.
package storagepipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jonesrussell/crawld/internal/config/minio"
	"github.com/jonesrussell/crawld/internal/infra/logger"
)

// ErrContentNotFound is returned by ContentStore.Get when no object exists
// for the given content hash.
var ErrContentNotFound = errors.New("storagepipeline: content not found")

// ContentStore persists compressed page bodies keyed by content_hash in a
// MinIO bucket, the pages_content collection.
type ContentStore struct {
	client *miniogo.Client
	cfg    *minio.Config
	log    logger.Logger
}

// NewContentStore constructs a ContentStore. If cfg.Enabled is false, the
// returned store is a no-op: writes succeed without persisting (the worker
// keeps crawling) and reads always return ErrContentNotFound.
func NewContentStore(cfg *minio.Config, log logger.Logger) (*ContentStore, error) {
	store := &ContentStore{cfg: cfg, log: log}
	if !cfg.Enabled {
		log.Info("content store disabled, writes are no-ops")
		return store, nil
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		if cfg.FailSilently {
			log.Warn("failed to create content store client, continuing without it", logger.Error(err))
			return store, nil
		}
		return nil, fmt.Errorf("storagepipeline: create minio client: %w", err)
	}
	store.client = client
	return store, nil
}

// PutIfAbsent uploads compressed body under contentHash if no object exists
// there yet. Returns existed=true when the object was already present
// (content deduplication hit), in which case nothing is written.
func (s *ContentStore) PutIfAbsent(ctx context.Context, contentHash string, compressed []byte, originalLength int64) (existed bool, err error) {
	if s.client == nil {
		return false, nil
	}

	_, statErr := s.client.StatObject(ctx, s.cfg.Bucket, contentHash, miniogo.StatObjectOptions{})
	if statErr == nil {
		return true, nil
	}
	var resp miniogo.ErrorResponse
	if !errors.As(statErr, &resp) || resp.Code != "NoSuchKey" {
		if s.cfg.FailSilently {
			s.log.Warn("content store stat failed, continuing", logger.Error(statErr))
			return false, nil
		}
		return false, fmt.Errorf("storagepipeline: stat content object: %w", statErr)
	}

	_, err = s.client.PutObject(
		ctx,
		s.cfg.Bucket,
		contentHash,
		bytes.NewReader(compressed),
		int64(len(compressed)),
		miniogo.PutObjectOptions{
			ContentType: "application/octet-stream",
			UserMetadata: map[string]string{
				"original-length": fmt.Sprintf("%d", originalLength),
				"compression":     "deflate",
			},
		},
	)
	if err != nil {
		if s.cfg.FailSilently {
			s.log.Warn("content store upload failed, continuing", logger.Error(err))
			return false, nil
		}
		return false, fmt.Errorf("storagepipeline: put content object: %w", err)
	}
	return false, nil
}

// Get retrieves and decompresses the content stored under contentHash.
func (s *ContentStore) Get(ctx context.Context, contentHash string) ([]byte, error) {
	if s.client == nil {
		return nil, ErrContentNotFound
	}

	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, contentHash, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: get content object: %w", err)
	}
	defer obj.Close()

	compressed, err := io.ReadAll(obj)
	if err != nil {
		var resp miniogo.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, ErrContentNotFound
		}
		return nil, fmt.Errorf("storagepipeline: read content object: %w", err)
	}

	reader := flate.NewReader(bytes.NewReader(compressed))
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: decompress content object: %w", err)
	}
	return data, nil
}

// HealthCheck verifies the content bucket exists and is reachable.
func (s *ContentStore) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("storagepipeline: content store health check: %w", err)
	}
	if !exists {
		return fmt.Errorf("storagepipeline: bucket %s does not exist", s.cfg.Bucket)
	}
	return nil
}

// ContentHash returns the hex-encoded SHA-256 digest of body.
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
