package storagepipeline

import "time"

// PageMetadata is the document persisted in the metadata collection (the
// metadata store, Elasticsearch) for one successfully fetched page.
type PageMetadata struct {
	URL           string    `json:"url"`
	FinalURL      string    `json:"final_url,omitempty"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Author        string    `json:"author,omitempty"`
	ContentHash   string    `json:"content_hash"`
	StatusCode    int       `json:"status_code"`
	ContentLength int64     `json:"content_length"`
	FetchedAt     time.Time `json:"fetched_at"`
	WorkerID      string    `json:"worker_id"`
}

// PageRecord is what the worker submits to the pipeline for one fetched
// page: the metadata document plus the raw, uncompressed body destined for
// the content collection, deduplicated there by content hash.
type PageRecord struct {
	Metadata PageMetadata
	Body     []byte
}
