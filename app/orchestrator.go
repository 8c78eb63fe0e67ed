// Package app owns the in-memory inbox and runs the fetch and classify
// pipeline on behalf of the front-ends.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bassamadnan/mailsort/classify"
	"github.com/bassamadnan/mailsort/inbox"
	"github.com/bassamadnan/mailsort/store"
)

// ErrSuperseded is returned by a Refresh whose results were discarded
// because a newer Refresh started.
var ErrSuperseded = errors.New("refresh superseded by a newer run")

type Fetcher interface {
	Fetch(ctx context.Context, maxResults int) ([]inbox.EmailRecord, error)
}

type BatchClassifier interface {
	ClassifyAll(ctx context.Context, records []inbox.EmailRecord, onProgress classify.ProgressFunc) []inbox.EmailRecord
}

// Cache persists classified runs. store.SQLiteStore implements it.
type Cache interface {
	SaveSnapshot(ctx context.Context, runID string, records []inbox.EmailRecord, at time.Time) error
	LoadSnapshot(ctx context.Context) (store.Snapshot, error)
	CachedCategories(ctx context.Context, ids []string, since time.Time) (map[string]inbox.Category, error)
}

// Filter drops records the user muted. config.Manager implements it.
type Filter interface {
	Apply(records []inbox.EmailRecord) []inbox.EmailRecord
}

type Phase int

const (
	Idle Phase = iota
	Fetching
	Classifying
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Fetching:
		return "fetching"
	case Classifying:
		return "classifying"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "idle"
}

// State is an immutable snapshot handed to front-ends.
type State struct {
	Records     []inbox.EmailRecord
	Loading     bool
	Phase       Phase
	Err         error
	Selected    *inbox.Category
	Done, Total int
	LastRefresh time.Time
	RunID       string
}

type EventKind int

const (
	StateChanged EventKind = iota
	Progress
)

type Event struct {
	Kind  EventKind
	State State
}

// Orchestrator is the single writer of the inbox state. The records slice
// is only ever replaced wholesale, never edited in place.
type Orchestrator struct {
	fetcher    Fetcher
	batch      BatchClassifier
	cache      Cache
	cacheTTL   time.Duration
	filter     Filter
	logger     *log.Logger
	maxResults int
	now        func() time.Time

	mu     sync.RWMutex
	state  State
	gen    uint64
	cancel context.CancelFunc

	subMu sync.Mutex
	subs  []chan Event
}

type Option func(*Orchestrator)

// WithCache enables snapshot restore and skips the model for messages
// classified within ttl.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(o *Orchestrator) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

func WithFilter(f Filter) Option {
	return func(o *Orchestrator) { o.filter = f }
}

func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithMaxResults(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(fetcher Fetcher, batch BatchClassifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:    fetcher,
		batch:      batch,
		logger:     log.Default(),
		maxResults: 50,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current snapshot.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.clone()
}

func (s State) clone() State {
	if s.Selected != nil {
		c := *s.Selected
		s.Selected = &c
	}
	return s
}

// Visible is the record list filtered by the selected category.
func (o *Orchestrator) Visible() []inbox.EmailRecord {
	s := o.State()
	return inbox.Filter(s.Records, s.Selected)
}

// Counts returns per-category counts in declaration order.
func (o *Orchestrator) Counts() []inbox.CategoryCount {
	return inbox.OrderedCounts(o.State().Records)
}

// SelectCategory sets the filter; nil selects all.
func (o *Orchestrator) SelectCategory(c *inbox.Category) {
	o.mu.Lock()
	if c == nil {
		o.state.Selected = nil
	} else {
		sel := *c
		o.state.Selected = &sel
	}
	o.unlockAndPublish(StateChanged)
}

// Restore loads the last saved snapshot so the inbox is populated before
// the first refresh finishes. It does nothing once a refresh has started.
func (o *Orchestrator) Restore(ctx context.Context) error {
	if o.cache == nil {
		return nil
	}
	snap, err := o.cache.LoadSnapshot(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "loading snapshot")
	}

	o.mu.Lock()
	if o.gen != 0 {
		o.mu.Unlock()
		return nil
	}
	o.state.Records = snap.Records
	o.state.Phase = Ready
	o.state.LastRefresh = snap.SavedAt
	o.state.RunID = snap.RunID
	o.unlockAndPublish(StateChanged)

	o.logger.Info("restored snapshot", "run", snap.RunID, "count", len(snap.Records))
	return nil
}

// Refresh fetches and classifies the inbox. Starting a Refresh cancels any
// run still in flight; only the newest run may publish results.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.gen++
	gen := o.gen
	o.cancel = cancel
	runID := uuid.NewString()
	o.state.Loading = true
	o.state.Phase = Fetching
	o.state.Err = nil
	o.state.Done, o.state.Total = 0, 0
	o.state.RunID = runID
	o.unlockAndPublish(StateChanged)

	defer o.release(gen)
	logger := o.logger.With("run", runID)
	logger.Info("refresh started", "max", o.maxResults)

	records, err := o.fetcher.Fetch(runCtx, o.maxResults)
	if err != nil {
		if !o.commit(gen, func(s *State) {
			s.Loading = false
			s.Phase = Failed
			s.Err = err
		}) {
			return ErrSuperseded
		}
		logger.Error("fetch failed", "err", err)
		return err
	}
	if o.filter != nil {
		records = o.filter.Apply(records)
	}
	records = o.applyCache(runCtx, records)

	if !o.commit(gen, func(s *State) {
		s.Records = records
		s.Phase = Classifying
		s.Total = len(records)
	}) {
		return ErrSuperseded
	}
	logger.Info("fetched", "count", len(records))

	classified := o.batch.ClassifyAll(runCtx, records, func(done, total int) {
		o.progress(gen, done, total)
	})

	if err := runCtx.Err(); err != nil {
		if !o.commit(gen, func(s *State) {
			s.Records = classified
			s.Loading = false
			s.Phase = Failed
			s.Err = err
		}) {
			return ErrSuperseded
		}
		return err
	}

	at := o.now()
	if !o.commit(gen, func(s *State) {
		s.Records = classified
		s.Loading = false
		s.Phase = Ready
		s.LastRefresh = at
	}) {
		return ErrSuperseded
	}
	logger.Info("refresh finished", "count", len(classified))

	if o.cache != nil {
		if err := o.cache.SaveSnapshot(ctx, runID, classified, at); err != nil {
			logger.Warn("could not save snapshot", "err", err)
		}
	}
	return nil
}

// Poll refreshes every interval until ctx is done. A tick that lands while
// a run is still loading is skipped.
func (o *Orchestrator) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.State().Loading {
				continue
			}
			if err := o.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				o.logger.Warn("periodic refresh failed", "err", err)
			}
		}
	}
}

func (o *Orchestrator) applyCache(ctx context.Context, records []inbox.EmailRecord) []inbox.EmailRecord {
	if o.cache == nil || o.cacheTTL <= 0 || len(records) == 0 {
		return records
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	cached, err := o.cache.CachedCategories(ctx, ids, o.now().Add(-o.cacheTTL))
	if err != nil {
		o.logger.Warn("classification cache unavailable", "err", err)
		return records
	}
	if len(cached) == 0 {
		return records
	}
	out := make([]inbox.EmailRecord, len(records))
	for i, r := range records {
		if c, ok := cached[r.ID]; ok {
			r = r.WithCategory(c)
		}
		out[i] = r
	}
	o.logger.Debug("cache hits", "count", len(cached))
	return out
}

// commit applies fn to the state if gen is still current and publishes.
func (o *Orchestrator) commit(gen uint64, fn func(*State)) bool {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return false
	}
	fn(&o.state)
	o.unlockAndPublish(StateChanged)
	return true
}

func (o *Orchestrator) progress(gen uint64, done, total int) {
	o.mu.Lock()
	if gen != o.gen {
		o.mu.Unlock()
		return
	}
	o.state.Done, o.state.Total = done, total
	o.unlockAndPublish(Progress)
}

func (o *Orchestrator) release(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen == o.gen {
		o.cancel = nil
	}
}

// Subscribe returns a channel of state events. Slow readers lose older
// events, never the latest one.
func (o *Orchestrator) Subscribe() <-chan Event {
	ch := make(chan Event, 32)
	o.subMu.Lock()
	o.subs = append(o.subs, ch)
	o.subMu.Unlock()
	return ch
}

// Close cancels any running refresh and closes subscriber channels.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.gen++
	o.mu.Unlock()

	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		close(ch)
	}
	o.subs = nil
}

// unlockAndPublish must be called with o.mu held. It takes subMu before
// releasing mu so events reach subscribers in the order the state changed.
func (o *Orchestrator) unlockAndPublish(kind EventKind) {
	ev := Event{Kind: kind, State: o.state.clone()}
	o.subMu.Lock()
	o.mu.Unlock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}
