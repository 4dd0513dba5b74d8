package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

const (
	// DefaultControlURL is the Pinecone control plane
	DefaultControlURL = "https://api.pinecone.io"

	// DefaultAPIVersion pins the REST API version sent on every request
	DefaultAPIVersion = "2025-01"
)

// VectorIndex implements driven.VectorIndex using Pinecone indexes with integrated embedding
type VectorIndex struct {
	apiKey      string
	controlURL  string
	apiVersion  string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryWindow time.Duration
}

// Config holds Pinecone connection configuration
type Config struct {
	APIKey string

	// ControlURL is the control plane endpoint (index management)
	ControlURL string
	APIVersion string

	// Timeout for HTTP requests
	Timeout time.Duration

	// UpsertRate paces record uploads (requests per second); zero disables pacing
	UpsertRate  float64
	UpsertBurst int

	// RetryWindow bounds retries of throttled or unavailable writes
	RetryWindow time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:      apiKey,
		ControlURL:  DefaultControlURL,
		APIVersion:  DefaultAPIVersion,
		Timeout:     30 * time.Second,
		UpsertRate:  5,
		UpsertBurst: 1,
		RetryWindow: 30 * time.Second,
	}
}

// NewVectorIndex creates a new Pinecone-backed VectorIndex
func NewVectorIndex(cfg Config) (*VectorIndex, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Pinecone API key is required")
	}
	if cfg.ControlURL == "" {
		cfg.ControlURL = DefaultControlURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.UpsertRate > 0 {
		burst := cfg.UpsertBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.UpsertRate), burst)
	}

	return &VectorIndex{
		apiKey:     cfg.APIKey,
		controlURL: strings.TrimSuffix(cfg.ControlURL, "/"),
		apiVersion: cfg.APIVersion,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:     limiter,
		retryWindow: cfg.RetryWindow,
	}, nil
}

// indexModel is the control plane index description
type indexModel struct {
	Name   string `json:"name"`
	Host   string `json:"host"`
	Status struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
	Embed *struct {
		Model string `json:"model"`
	} `json:"embed,omitempty"`
}

func (m *indexModel) toDomain() *domain.IndexDescription {
	desc := &domain.IndexDescription{
		Name:  m.Name,
		Host:  m.Host,
		Ready: m.Status.Ready,
		State: m.Status.State,
	}
	if m.Embed != nil {
		desc.EmbeddingModel = m.Embed.Model
	}
	return desc
}

// createForModelRequest creates an index with integrated embedding
type createForModelRequest struct {
	Name   string      `json:"name"`
	Cloud  string      `json:"cloud"`
	Region string      `json:"region"`
	Embed  embedConfig `json:"embed"`
}

type embedConfig struct {
	Model    string            `json:"model"`
	FieldMap map[string]string `json:"field_map"`
}

// searchRequest is the integrated-inference search body
type searchRequest struct {
	Query  searchQuery `json:"query"`
	Fields []string    `json:"fields,omitempty"`
}

type searchQuery struct {
	Inputs map[string]string `json:"inputs"`
	TopK   int               `json:"top_k"`
}

// indexStatsResponse is the data plane stats payload
type indexStatsResponse struct {
	Namespaces map[string]struct {
		VectorCount int `json:"vectorCount"`
	} `json:"namespaces"`
	TotalVectorCount int `json:"totalVectorCount"`
}

// StatusError is returned for non-success HTTP responses
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pinecone %s failed: %d - %s", e.Op, e.Status, e.Body)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	switch e.Status {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// DescribeIndex returns the index description, or domain.ErrNotFound
func (v *VectorIndex) DescribeIndex(ctx context.Context, name string) (*domain.IndexDescription, error) {
	var model indexModel
	err := v.do(ctx, "describe index", http.MethodGet, v.controlURL+"/indexes/"+url.PathEscape(name), "", nil, &model)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			return nil, fmt.Errorf("index %s: %w", name, domain.ErrNotFound)
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// CreateIndexForModel creates a serverless index bound to the IndexSpec's embedding model
func (v *VectorIndex) CreateIndexForModel(ctx context.Context, spec domain.IndexSpec) (*domain.IndexDescription, error) {
	body, err := json.Marshal(createForModelRequest{
		Name:   spec.Name,
		Cloud:  spec.Cloud,
		Region: spec.Region,
		Embed: embedConfig{
			Model:    spec.EmbeddingModel,
			FieldMap: map[string]string{"text": spec.TextField},
		},
	})
	if err != nil {
		return nil, err
	}

	var model indexModel
	op := func() error {
		return v.retryable(v.do(ctx, "create index", http.MethodPost, v.controlURL+"/indexes/create-for-model", "application/json", body, &model))
	}
	if err := backoff.Retry(op, backoff.WithContext(v.newBackOff(), ctx)); err != nil {
		return nil, err
	}
	return model.toDomain(), nil
}

// UpsertRecords writes records as NDJSON; the text goes into textField for embedding
func (v *VectorIndex) UpsertRecords(ctx context.Context, handle *domain.IndexHandle, namespace, textField string, records []domain.PostRecord) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(map[string]string{"_id": rec.ID, textField: rec.Text}); err != nil {
			return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
		}
	}
	body := buf.Bytes()

	endpoint := dataURL(handle.Host) + "/records/namespaces/" + url.PathEscape(namespace) + "/upsert"
	op := func() error {
		if err := v.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		return v.retryable(v.do(ctx, "upsert records", http.MethodPost, endpoint, "application/x-ndjson", body, nil))
	}
	return backoff.Retry(op, backoff.WithContext(v.newBackOff(), ctx))
}

// Search runs a text query embedded by the index's model
func (v *VectorIndex) Search(ctx context.Context, handle *domain.IndexHandle, query domain.SearchQuery, fields []string) (*driven.RawSearchResponse, error) {
	body, err := json.Marshal(searchRequest{
		Query: searchQuery{
			Inputs: map[string]string{"text": query.Text},
			TopK:   query.TopK,
		},
		Fields: fields,
	})
	if err != nil {
		return nil, err
	}

	endpoint := dataURL(handle.Host) + "/records/namespaces/" + url.PathEscape(query.Namespace) + "/search"
	var resp driven.RawSearchResponse
	if err := v.do(ctx, "search", http.MethodPost, endpoint, "application/json", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// NamespaceRecordCount returns the record count reported by index stats
func (v *VectorIndex) NamespaceRecordCount(ctx context.Context, handle *domain.IndexHandle, namespace string) (int, error) {
	var stats indexStatsResponse
	if err := v.do(ctx, "describe index stats", http.MethodPost, dataURL(handle.Host)+"/describe_index_stats", "application/json", []byte("{}"), &stats); err != nil {
		return 0, err
	}
	return stats.Namespaces[namespace].VectorCount, nil
}

// HealthCheck verifies the control plane is reachable and the key is valid
func (v *VectorIndex) HealthCheck(ctx context.Context) error {
	return v.do(ctx, "list indexes", http.MethodGet, v.controlURL+"/indexes", "", nil, nil)
}

// do sends one request and decodes a JSON response into out when non-nil
func (v *VectorIndex) do(ctx context.Context, op, method, endpoint, contentType string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", v.apiKey)
	req.Header.Set("X-Pinecone-API-Version", v.apiVersion)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("pinecone %s: failed to parse response: %w", op, err)
	}
	return nil
}

// retryable marks everything except throttling and unavailability as permanent
func (v *VectorIndex) retryable(err error) error {
	if err == nil {
		return nil
	}
	var se *StatusError
	if errors.As(err, &se) && se.Retryable() {
		return err
	}
	return backoff.Permanent(err)
}

func (v *VectorIndex) newBackOff() backoff.BackOff {
	if v.retryWindow <= 0 {
		return &backoff.StopBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = v.retryWindow
	b.Reset()
	return b
}

// dataURL turns an index host into a base URL; hosts come back without a scheme
func dataURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/")
	}
	return "https://" + strings.TrimSuffix(host, "/")
}
