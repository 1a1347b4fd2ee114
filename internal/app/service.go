// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	eventqueue "github.com/okian/fightlog/internal/adapters/mq/queue"
	"github.com/okian/fightlog/internal/adapters/mq/worker"
	"github.com/okian/fightlog/internal/adapters/repository"
	"github.com/okian/fightlog/internal/domain/dedupe"
	"github.com/okian/fightlog/internal/domain/encounter"
	"github.com/okian/fightlog/internal/domain/model"
	"github.com/okian/fightlog/internal/domain/tracker"
	"github.com/okian/fightlog/pkg/logger"
	"github.com/okian/fightlog/pkg/metrics"
)

const (
	defaultQueueSize  = 100000
	defaultDedupeSize = 50000
	drainTimeout      = 30 * time.Second
)

// ErrNotStarted is returned when events arrive before Start or after Stop.
// EnqueueEvents wraps it together with the queue's ErrQueueClosed.
var ErrNotStarted = errors.New("service not started")

// Sink receives every finished record after it has been stored.
type Sink interface {
	Write(ctx context.Context, rec encounter.Record) error
	Flush() error
	Close() error
}

// Service owns the encounter engine and everything around it: the ingest
// queue and its worker, the record store and the optional sink.
//
// The engine is not safe for concurrent use; every engine call goes
// through engineMu.
type Service struct {
	mu       sync.RWMutex
	engineMu sync.Mutex

	engine *tracker.Engine
	store  repository.Store
	sink   Sink
	queue   *eventqueue.InMemoryQueue
	worker  *worker.InMemoryWorker
	deduper dedupe.Deduper

	queueSize   int
	dedupeSize  int
	engineOpts  []tracker.Option
	onFinished  []func(encounter.Record)
	started     bool
	finished    int64
	storeErrors int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds how many batch idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		s.dedupeSize = size
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the record store. The default is an unbounded memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSink sets a sink that receives every finished record.
func WithSink(sink Sink) Option {
	return func(s *Service) {
		s.sink = sink
	}
}

// WithEngineOptions passes options to the encounter engine.
func WithEngineOptions(opts ...tracker.Option) Option {
	return func(s *Service) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithFinishedHook registers fn to run for every finished record after it
// is stored.
func WithFinishedHook(fn func(encounter.Record)) Option {
	return func(s *Service) {
		if fn != nil {
			s.onFinished = append(s.onFinished, fn)
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:  defaultQueueSize,
		dedupeSize: defaultDedupeSize,
		logger:     logger.OrDiscard("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	engineOpts := append([]tracker.Option{tracker.WithLogger(s.logger.Named("tracker"))}, s.engineOpts...)
	s.engine = tracker.New(append(engineOpts, tracker.WithObserver(s))...)
	return s
}

// Start creates the ingest queue and starts its worker.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.worker = worker.NewInMemoryWorker(s.queue, s, worker.WithLogger(s.logger.Named("worker")))
	go s.worker.Run(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "encounter service started", logger.Int("queueSize", s.queueSize))
	return nil
}

// Stop closes the queue, waits for queued events to be handled, times out
// every active encounter so it is stored, and closes the store and sink.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.started {
		s.logger.Info(ctx, "stopping encounter service...")
		if err := s.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close queue: %w", err))
		}
		drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
		select {
		case <-s.worker.Done():
		case <-drainCtx.Done():
			errs = append(errs, fmt.Errorf("drain queue: %w", drainCtx.Err()))
			_ = s.worker.Shutdown(drainCtx)
		}
		cancel()
		s.started = false
	}

	s.Flush(ctx)
	if s.sink != nil {
		if err := s.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	s.logger.Info(ctx, "encounter service stopped")
	return errors.Join(errs...)
}

// HandleEvent feeds one event to the engine synchronously. The worker calls
// it for queued events; offline replay calls it directly.
func (s *Service) HandleEvent(ctx context.Context, ev model.Event) {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	s.engine.HandleEvent(ctx, ev)
}

// Flush times out every active encounter and raid. It returns how many
// encounters were removed.
func (s *Service) Flush(ctx context.Context) int {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	n := s.engine.ForceTimeouts(ctx)
	if s.sink != nil {
		if err := s.sink.Flush(); err != nil {
			s.logger.Error(ctx, "flush sink", logger.Error(err))
		}
	}
	return n
}

// EnqueueEvents queues a batch for the worker, all or nothing.
func (s *Service) EnqueueEvents(ctx context.Context, events []model.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return fmt.Errorf("%w: %w", ErrNotStarted, eventqueue.ErrQueueClosed)
	}
	return s.queue.EnqueueBatch(ctx, events)
}

// SeenAndRecord reports whether a batch key was already accepted and
// records it otherwise.
func (s *Service) SeenAndRecord(ctx context.Context, key string) bool {
	seen := s.deduper.SeenAndRecord(ctx, key)
	if seen {
		metrics.RecordErrorByComponent("service", "duplicate_batch")
	}
	return seen
}

// Unrecord forgets a batch key so the batch can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Size returns the number of remembered batch keys.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// EncounterStarted implements tracker.Observer.
func (s *Service) EncounterStarted(ctx context.Context, enc *encounter.Encounter) {
	s.logger.Debug(ctx, "encounter started",
		logger.String("encounter.id", enc.ID),
		logger.String("encounter.adversary", enc.Adversary.Name),
	)
}

// EncounterFinished implements tracker.Observer. It runs with engineMu held.
func (s *Service) EncounterFinished(ctx context.Context, enc *encounter.Encounter) {
	rec := enc.Record()
	s.finished++
	if err := s.store.Save(ctx, rec); err != nil {
		s.storeErrors++
		s.logger.Error(ctx, "store encounter",
			logger.String("encounter.id", rec.ID),
			logger.Error(err),
		)
	}
	if s.sink != nil {
		if err := s.sink.Write(ctx, rec); err != nil {
			s.logger.Error(ctx, "write encounter",
				logger.String("encounter.id", rec.ID),
				logger.Error(err),
			)
		}
	}
	for _, fn := range s.onFinished {
		fn(rec)
	}
}

// Encounters returns up to limit stored records, most recent first.
func (s *Service) Encounters(ctx context.Context, limit int) ([]encounter.Record, error) {
	recs, err := s.store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []encounter.Record{}
	}
	return recs, nil
}

// Encounter returns one stored record.
func (s *Service) Encounter(ctx context.Context, id string) (encounter.Record, error) {
	return s.store.Get(ctx, id)
}

// MergeEncounters combines stored encounters into one, stores it and
// returns it. The name defaults to the first encounter's adversary.
func (s *Service) MergeEncounters(ctx context.Context, name string, ids []string) (encounter.Record, error) {
	encs := make([]*encounter.Encounter, 0, len(ids))
	for _, id := range ids {
		rec, err := s.store.Get(ctx, id)
		if err != nil {
			return encounter.Record{}, err
		}
		enc, err := encounter.FromRecord(rec)
		if err != nil {
			return encounter.Record{}, fmt.Errorf("rebuild %s: %w", id, err)
		}
		encs = append(encs, enc)
	}
	slices.SortStableFunc(encs, func(a, b *encounter.Encounter) int { return a.StartedAt.Compare(b.StartedAt) })
	if name == "" && len(encs) > 0 {
		name = encs[0].Adversary.Name
	}

	merged := encounter.Merge(name, encs...).Record()
	if err := s.store.Save(ctx, merged); err != nil {
		return encounter.Record{}, fmt.Errorf("store merged encounter: %w", err)
	}
	s.logger.Info(ctx, "encounters merged",
		logger.String("encounter.id", merged.ID),
		logger.String("encounter.name", name),
		logger.Int("encounter.parts", len(ids)),
	)
	return merged, nil
}

// TopDamage ranks participants by their best single-encounter damage.
func (s *Service) TopDamage(ctx context.Context, n int) ([]repository.Entry, error) {
	entries, err := s.store.TopDamage(ctx, n)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []repository.Entry{}
	}
	return entries, nil
}

// ActiveEncounters summarizes the engine's active encounters.
func (s *Service) ActiveEncounters(_ context.Context) []tracker.EncounterView {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.engine.ActiveEncounters()
}

// ActiveRaids summarizes the engine's active raids.
func (s *Service) ActiveRaids(_ context.Context) []tracker.RaidView {
	s.engineMu.Lock()
	defer s.engineMu.Unlock()
	return s.engine.ActiveRaids()
}

// SetRaidTemplates replaces the engine's raid templates. Invalid templates
// are skipped, logged and reported.
func (s *Service) SetRaidTemplates(ctx context.Context, ts []encounter.RaidTemplate) error {
	s.engineMu.Lock()
	err := s.engine.SetRaidTemplates(ts)
	n := len(s.engine.RaidTemplates())
	s.engineMu.Unlock()

	if err != nil {
		metrics.RecordErrorByComponent("service", "invalid_raid_template")
		s.logger.Warn(ctx, "raid templates rejected", logger.Error(err))
	}
	s.logger.Info(ctx, "raid templates loaded", logger.Int("count", n))
	return err
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	ctx := context.Background()

	s.engineMu.Lock()
	engineStats := s.engine.Stats()
	finished, storeErrors := s.finished, s.storeErrors
	names := make([]string, 0, len(s.engine.RaidTemplates()))
	for _, t := range s.engine.RaidTemplates() {
		names = append(names, t.Name)
	}
	s.engineMu.Unlock()
	slices.Sort(names)

	s.mu.RLock()
	started := s.started
	queueLen := 0
	if started {
		queueLen = s.queue.Len(ctx)
	}
	s.mu.RUnlock()

	metrics.UpdateQueueSize(queueLen)
	return map[string]any{
		"started":         started,
		"queueSize":       s.queueSize,
		"queueLength":     queueLen,
		"dedupeSize":      s.dedupeSize,
		"dedupeKeys":      s.deduper.Size(),
		"storedRecords":   s.store.Count(ctx),
		"recordsFinished": finished,
		"storeErrors":     storeErrors,
		"raidTemplates":   names,
		"engine":          engineStats,
	}
}
