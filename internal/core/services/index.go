package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/persona-core/internal/core/domain"
	"github.com/custodia-labs/persona-core/internal/core/ports/driven"
	"github.com/custodia-labs/persona-core/internal/core/ports/driving"
)

// Ensure indexManager implements IndexService
var _ driving.IndexService = (*indexManager)(nil)

const (
	// provisionLockPrefix namespaces provisioning locks per index
	provisionLockPrefix = "index-provision:"

	defaultLockTTL         = 10 * time.Minute
	defaultPollInterval    = 500 * time.Millisecond
	defaultMaxPollInterval = 10 * time.Second
	defaultReadyTimeout    = 5 * time.Minute
)

// IndexManagerConfig holds configuration for the index manager
type IndexManagerConfig struct {
	Index  driven.VectorIndex
	Lock   driven.DistributedLock // Optional, guards check-then-create across processes
	States driven.IndexStateStore // Optional, records provisioning history
	Logger *slog.Logger

	LockTTL         time.Duration
	PollInterval    time.Duration // First readiness poll interval
	MaxPollInterval time.Duration
	ReadyTimeout    time.Duration // Upper bound on waiting for a new index to become ready

	// Sleep implements the fixed ingestion delay; tests replace it
	Sleep func(ctx context.Context, d time.Duration) error
}

// indexManager ensures the posts index exists and is populated once
type indexManager struct {
	index  driven.VectorIndex
	lock   driven.DistributedLock
	states driven.IndexStateStore
	logger *slog.Logger

	lockTTL         time.Duration
	pollInterval    time.Duration
	maxPollInterval time.Duration
	readyTimeout    time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewIndexManager creates a new IndexService
func NewIndexManager(cfg IndexManagerConfig) driving.IndexService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &indexManager{
		index:           cfg.Index,
		lock:            cfg.Lock,
		states:          cfg.States,
		logger:          logger,
		lockTTL:         cfg.LockTTL,
		pollInterval:    cfg.PollInterval,
		maxPollInterval: cfg.MaxPollInterval,
		readyTimeout:    cfg.ReadyTimeout,
		sleep:           cfg.Sleep,
	}
	if m.lockTTL <= 0 {
		m.lockTTL = defaultLockTTL
	}
	if m.pollInterval <= 0 {
		m.pollInterval = defaultPollInterval
	}
	if m.maxPollInterval < m.pollInterval {
		m.maxPollInterval = defaultMaxPollInterval
		if m.maxPollInterval < m.pollInterval {
			m.maxPollInterval = m.pollInterval
		}
	}
	if m.readyTimeout <= 0 {
		m.readyTimeout = defaultReadyTimeout
	}
	if m.sleep == nil {
		m.sleep = sleepContext
	}
	return m
}

// EnsureIndex returns a handle to the named index, creating and populating it when absent.
// An existing index is returned unchanged; it is never re-populated or checked against the corpus.
func (m *indexManager) EnsureIndex(ctx context.Context, corpus []domain.PostRecord, spec domain.IndexSpec) (*domain.ProvisionResult, error) {
	spec = withSpecDefaults(spec)
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	// Fast path: index already exists
	desc, err := m.index.DescribeIndex(ctx, spec.Name)
	if err == nil {
		m.logger.Info("index exists, skipping provisioning", "index", spec.Name, "host", desc.Host)
		return &domain.ProvisionResult{Handle: handleFor(desc)}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: describe %s: %w", domain.ErrIndexProvisioning, spec.Name, err)
	}

	// Serialize creation across processes
	locked := false
	if m.lock != nil {
		lockName := provisionLockPrefix + spec.Name
		acquired, err := m.lock.Acquire(ctx, lockName, m.lockTTL)
		switch {
		case err != nil:
			m.logger.Warn("provisioning lock unavailable, continuing without it", "index", spec.Name, "error", err)
		case !acquired:
			m.logger.Info("another instance is provisioning, waiting for it to finish", "index", spec.Name)
			return m.awaitProvisioner(ctx, corpus, spec, lockName)
		default:
			locked = true
			defer func() {
				if err := m.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
					m.logger.Warn("failed to release provisioning lock", "index", spec.Name, "error", err)
				}
			}()

			// Re-check under the lock; a previous holder may have finished
			if desc, err := m.index.DescribeIndex(ctx, spec.Name); err == nil {
				m.logger.Info("index created by another instance", "index", spec.Name)
				return &domain.ProvisionResult{Handle: handleFor(desc)}, nil
			} else if !errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: describe %s: %w", domain.ErrIndexProvisioning, spec.Name, err)
			}
		}
	}

	return m.provision(ctx, corpus, spec, locked)
}

// provision creates the index, waits for readiness and uploads the corpus.
// When locked, the provisioning lock is extended after every batch.
func (m *indexManager) provision(ctx context.Context, corpus []domain.PostRecord, spec domain.IndexSpec, locked bool) (*domain.ProvisionResult, error) {
	m.logger.Info("creating index",
		"index", spec.Name,
		"model", spec.EmbeddingModel,
		"cloud", spec.Cloud,
		"region", spec.Region,
	)

	if _, err := m.index.CreateIndexForModel(ctx, spec); err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", domain.ErrIndexProvisioning, spec.Name, err)
	}

	desc, err := m.waitReady(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s: %w", domain.ErrIndexProvisioning, spec.Name, err)
	}
	handle := handleFor(desc)

	slices := domain.Batches(len(corpus), spec.BatchSize)
	if spec.UploadMode == domain.UploadModeFirstBatch && len(slices) > 1 {
		m.logger.Warn("uploading first batch only",
			"index", spec.Name,
			"records", len(corpus),
			"uploaded", slices[0][1],
		)
		slices = slices[:1]
	}

	uploaded := 0
	for i, s := range slices {
		batch := corpus[s[0]:s[1]]
		if err := m.index.UpsertRecords(ctx, handle, spec.Namespace, spec.TextField, batch); err != nil {
			return nil, fmt.Errorf("%w: upsert batch %d of %s: %w", domain.ErrIndexProvisioning, i, spec.Name, err)
		}
		uploaded += len(batch)
		m.logger.Debug("uploaded batch", "index", spec.Name, "batch", i, "size", len(batch))

		if locked {
			if err := m.lock.Extend(ctx, provisionLockPrefix+spec.Name, m.lockTTL); err != nil {
				m.logger.Warn("failed to extend provisioning lock", "index", spec.Name, "error", err)
			}
		}
	}

	if uploaded > 0 {
		m.awaitIngestion(ctx, handle, spec, uploaded)
	}

	result := &domain.ProvisionResult{
		Handle:   handle,
		Created:  true,
		Uploaded: uploaded,
		Batches:  len(slices),
	}

	if m.states != nil {
		state := &domain.IndexState{
			Name:            spec.Name,
			Namespace:       spec.Namespace,
			EmbeddingModel:  spec.EmbeddingModel,
			Host:            handle.Host,
			RecordsTotal:    len(corpus),
			RecordsUploaded: uploaded,
			UploadMode:      spec.UploadMode,
			CreatedAt:       time.Now().UTC(),
		}
		if err := m.states.Save(ctx, state); err != nil {
			m.logger.Warn("failed to record index state", "index", spec.Name, "error", err)
		}
	}

	m.logger.Info("index provisioned",
		"index", spec.Name,
		"host", handle.Host,
		"records", len(corpus),
		"uploaded", uploaded,
		"batches", len(slices),
	)
	return result, nil
}

// awaitProvisioner waits until the lock holder releases the provisioning lock, then re-runs EnsureIndex.
// The holder keeps the lock until upload and ingestion wait are done.
func (m *indexManager) awaitProvisioner(ctx context.Context, corpus []domain.PostRecord, spec domain.IndexSpec, lockName string) (*domain.ProvisionResult, error) {
	op := func() error {
		acquired, err := m.lock.Acquire(ctx, lockName, m.lockTTL)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !acquired {
			return fmt.Errorf("lock %s still held", lockName)
		}
		if err := m.lock.Release(context.WithoutCancel(ctx), lockName); err != nil {
			m.logger.Warn("failed to release provisioning lock", "index", spec.Name, "error", err)
		}
		return nil
	}

	// No elapsed cap: a crashed holder's lock expires or is dropped with its connection
	err := backoff.Retry(op, backoff.WithContext(m.newBackOff(0), ctx))
	switch {
	case err == nil:
		return m.EnsureIndex(ctx, corpus, spec)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("%w: waiting for %s: %w", domain.ErrIndexProvisioning, spec.Name, ctx.Err())
	}

	m.logger.Warn("provisioning lock unavailable while waiting, polling index instead", "index", spec.Name, "error", err)
	desc, err := m.waitReady(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: waiting for %s: %w", domain.ErrIndexProvisioning, spec.Name, err)
	}
	return &domain.ProvisionResult{Handle: handleFor(desc)}, nil
}

// waitReady polls the index description with exponential backoff until it reports ready
func (m *indexManager) waitReady(ctx context.Context, name string) (*domain.IndexDescription, error) {
	var ready *domain.IndexDescription

	op := func() error {
		desc, err := m.index.DescribeIndex(ctx, name)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return err
			}
			return backoff.Permanent(err)
		}
		if !desc.Ready {
			return fmt.Errorf("index %s not ready (state %s)", name, desc.State)
		}
		ready = desc
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(m.readyTimeout), ctx)); err != nil {
		return nil, err
	}
	return ready, nil
}

// awaitIngestion waits for asynchronous ingestion as selected by spec.IngestionWait.
// It is best effort: a timeout is logged and provisioning still succeeds.
func (m *indexManager) awaitIngestion(ctx context.Context, handle *domain.IndexHandle, spec domain.IndexSpec, uploaded int) {
	switch spec.IngestionWait {
	case domain.IngestionWaitNone:
		return

	case domain.IngestionWaitPoll:
		op := func() error {
			count, err := m.index.NamespaceRecordCount(ctx, handle, spec.Namespace)
			if err != nil {
				return err
			}
			if count < uploaded {
				return fmt.Errorf("namespace %s has %d of %d records", spec.Namespace, count, uploaded)
			}
			return nil
		}
		if err := backoff.Retry(op, backoff.WithContext(m.newBackOff(spec.IngestionTimeout), ctx)); err != nil {
			m.logger.Warn("ingestion not confirmed, continuing", "index", spec.Name, "error", err)
		}

	default:
		m.logger.Info("waiting for ingestion", "index", spec.Name, "delay", spec.IngestionDelay)
		if err := m.sleep(ctx, spec.IngestionDelay); err != nil {
			m.logger.Warn("ingestion wait interrupted", "index", spec.Name, "error", err)
		}
	}
}

// Status returns the recorded provisioning state, falling back to the live index description
func (m *indexManager) Status(ctx context.Context, name string) (*domain.IndexState, error) {
	if m.states != nil {
		state, err := m.states.Get(ctx, name)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("get index state: %w", err)
		}
	}

	desc, err := m.index.DescribeIndex(ctx, name)
	if err != nil {
		return nil, err
	}
	return &domain.IndexState{
		Name:           desc.Name,
		EmbeddingModel: desc.EmbeddingModel,
		Host:           desc.Host,
	}, nil
}

func (m *indexManager) newBackOff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.pollInterval
	b.MaxInterval = m.maxPollInterval
	b.MaxElapsedTime = maxElapsed
	b.Reset()
	return b
}

// withSpecDefaults fills optional fields left empty by the caller
func withSpecDefaults(spec domain.IndexSpec) domain.IndexSpec {
	defaults := domain.DefaultIndexSpec()
	if spec.TextField == "" {
		spec.TextField = defaults.TextField
	}
	if spec.UploadMode == "" {
		spec.UploadMode = defaults.UploadMode
	}
	if spec.IngestionWait == "" {
		spec.IngestionWait = defaults.IngestionWait
	}
	if spec.IngestionDelay < 0 {
		spec.IngestionDelay = 0
	}
	if spec.IngestionTimeout <= 0 {
		spec.IngestionTimeout = defaults.IngestionTimeout
	}
	return spec
}

func handleFor(desc *domain.IndexDescription) *domain.IndexHandle {
	return &domain.IndexHandle{Name: desc.Name, Host: desc.Host}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
