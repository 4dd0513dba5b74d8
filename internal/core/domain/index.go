package domain

import (
	"fmt"
	"time"
)

// UploadMode controls how much of the corpus is uploaded on index creation
type UploadMode string

const (
	// UploadModeAll uploads every record in consecutive batches
	UploadModeAll UploadMode = "all"

	// UploadModeFirstBatch uploads only the first batch, matching the original quickstart behaviour
	UploadModeFirstBatch UploadMode = "first-batch"
)

// IngestionWait selects how provisioning waits for asynchronous ingestion
type IngestionWait string

const (
	IngestionWaitDelay IngestionWait = "delay" // Fixed best-effort sleep
	IngestionWaitPoll  IngestionWait = "poll"  // Poll namespace record count until it catches up
	IngestionWaitNone  IngestionWait = "none"
)

// IndexSpec describes the semantic index to ensure
type IndexSpec struct {
	Name           string `yaml:"name" json:"name"`
	EmbeddingModel string `yaml:"embedding_model" json:"embedding_model"`
	Namespace      string `yaml:"namespace" json:"namespace"`
	Cloud          string `yaml:"cloud" json:"cloud"`
	Region         string `yaml:"region" json:"region"`
	TextField      string `yaml:"text_field" json:"text_field"` // Record field embedded by the service
	BatchSize      int    `yaml:"batch_size" json:"batch_size"`

	UploadMode       UploadMode    `yaml:"upload_mode" json:"upload_mode"`
	IngestionWait    IngestionWait `yaml:"ingestion_wait" json:"ingestion_wait"`
	IngestionDelay   time.Duration `yaml:"ingestion_delay" json:"ingestion_delay"`
	IngestionTimeout time.Duration `yaml:"ingestion_timeout" json:"ingestion_timeout"`
}

// DefaultIndexSpec returns sensible defaults
func DefaultIndexSpec() IndexSpec {
	return IndexSpec{
		Name:             "persona-posts",
		EmbeddingModel:   "llama-text-embed-v2",
		Namespace:        "posts",
		Cloud:            "aws",
		Region:           "us-east-1",
		TextField:        "chunk_text",
		BatchSize:        96,
		UploadMode:       UploadModeAll,
		IngestionWait:    IngestionWaitDelay,
		IngestionDelay:   10 * time.Second,
		IngestionTimeout: 2 * time.Minute,
	}
}

// Validate checks the IndexSpec is usable for provisioning
func (s IndexSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: index name is required", ErrInvalidInput)
	}
	if s.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidInput, s.BatchSize)
	}
	if s.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidInput)
	}
	switch s.UploadMode {
	case "", UploadModeAll, UploadModeFirstBatch:
	default:
		return fmt.Errorf("%w: unknown upload mode %q", ErrInvalidInput, s.UploadMode)
	}
	switch s.IngestionWait {
	case "", IngestionWaitDelay, IngestionWaitPoll, IngestionWaitNone:
	default:
		return fmt.Errorf("%w: unknown ingestion wait %q", ErrInvalidInput, s.IngestionWait)
	}
	return nil
}

// IndexDescription is the index service's view of an index
type IndexDescription struct {
	Name           string `json:"name"`
	Host           string `json:"host"`
	Ready          bool   `json:"ready"`
	State          string `json:"state"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// IndexHandle is a queryable reference to an existing index
type IndexHandle struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

// ProvisionResult reports what EnsureIndex did
type ProvisionResult struct {
	Handle   *IndexHandle `json:"handle"`
	Created  bool         `json:"created"`
	Uploaded int          `json:"uploaded"`
	Batches  int          `json:"batches"`
}

// IndexState is the locally recorded provisioning history of an index
type IndexState struct {
	Name            string     `json:"name"`
	Namespace       string     `json:"namespace"`
	EmbeddingModel  string     `json:"embedding_model"`
	Host            string     `json:"host"`
	RecordsTotal    int        `json:"records_total"`
	RecordsUploaded int        `json:"records_uploaded"`
	UploadMode      UploadMode `json:"upload_mode"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Truncated reports whether fewer records were uploaded than the corpus held
func (s *IndexState) Truncated() bool {
	return s.RecordsUploaded < s.RecordsTotal
}

// Batches splits n records into half-open [start, end) ranges of at most size
func Batches(n, size int) [][2]int {
	if n <= 0 || size <= 0 {
		return nil
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}
