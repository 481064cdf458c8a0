package storagepipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/crawld/internal/config/elasticsearch"
	"github.com/jonesrussell/crawld/internal/infra/logger"
)

// ErrPageNotFound is returned by MetadataStore.Get when no document exists
// for the given URL.
var ErrPageNotFound = errors.New("storagepipeline: page not found")

// MetadataStore persists page metadata documents in the metadata collection,
// one Elasticsearch index holding one document per crawled URL.
type MetadataStore struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewMetadataStore builds a MetadataStore directly against cfg's addresses
// and credentials. The pack's internal infrastructure client wrapper isn't
// available here, so this constructs the official client the same way
// cfg.Validate already assumes: addresses, basic auth or API key, optional
// cloud ID.
func NewMetadataStore(cfg *elasticsearch.Config, index string, log logger.Logger) (*MetadataStore, error) {
	esCfg := es.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	}
	if cfg.Cloud.ID != "" {
		esCfg.CloudID = cfg.Cloud.ID
	}
	client, err := es.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: create elasticsearch client: %w", err)
	}
	return NewMetadataStoreWithClient(client, index, log), nil
}

// NewMetadataStoreWithClient wraps an already-constructed client, used by
// tests to inject a mock transport.
func NewMetadataStoreWithClient(client *es.Client, index string, log logger.Logger) *MetadataStore {
	return &MetadataStore{client: client, index: index, log: log}
}

// HealthCheck pings the Elasticsearch cluster, used at worker startup to
// decide between exit code 0 and exit code 4 (document store unreachable).
func (s *MetadataStore) HealthCheck(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("storagepipeline: metadata store unreachable: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("storagepipeline: metadata store ping error: %s", res.String())
	}
	return nil
}

// PutBatch bulk-indexes metadata documents via a single NDJSON request. This
// is a hand-rolled bulk body rather than esutil.BulkIndexer: the documents
// this pack indexes from never reach for that helper, preferring raw
// esapi.Bulk calls with manually built action/document pairs.
func (s *MetadataStore) PutBatch(ctx context.Context, batch []PageMetadata) error {
	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, m := range batch {
		action := map[string]any{
			"index": map[string]any{"_index": s.index, "_id": docID(m.URL)},
		}
		actionLine, err := json.Marshal(action)
		if err != nil {
			return fmt.Errorf("storagepipeline: marshal bulk action: %w", err)
		}
		docLine, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("storagepipeline: marshal metadata: %w", err)
		}
		buf.Write(actionLine)
		buf.WriteByte('\n')
		buf.Write(docLine)
		buf.WriteByte('\n')
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return fmt.Errorf("storagepipeline: bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("storagepipeline: bulk index error: %s", res.String())
	}

	var parsed struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("storagepipeline: decode bulk response: %w", err)
	}
	if parsed.Errors {
		s.log.Warn("bulk index reported per-item errors", logger.String("index", s.index))
	}
	return nil
}

// Get returns the previously persisted metadata document for url.
func (s *MetadataStore) Get(ctx context.Context, url string) (*PageMetadata, error) {
	res, err := s.client.Get(s.index, docID(url), s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: get metadata: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, ErrPageNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("storagepipeline: get metadata error: %s", res.String())
	}

	var wrapper struct {
		Source PageMetadata `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&wrapper); err != nil {
		return nil, fmt.Errorf("storagepipeline: decode metadata: %w", err)
	}
	return &wrapper.Source, nil
}

// FindByContentHash returns every page previously persisted with the given
// content hash, the read side of content deduplication.
func (s *MetadataStore) FindByContentHash(ctx context.Context, hash string) ([]PageMetadata, error) {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"content_hash": hash},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("storagepipeline: search by content hash: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("storagepipeline: search error: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source PageMetadata `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("storagepipeline: decode search response: %w", err)
	}

	results := make([]PageMetadata, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}

// docID derives a stable document ID from a URL so re-indexing the same URL
// updates rather than duplicates its metadata document.
func docID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
