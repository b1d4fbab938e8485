// Package memstore is an in-memory reference implementation of
// datastore.Store, used by the core's own tests and local/dev wiring. It
// mirrors the in-memory/persistent split the teacher repository uses between
// storage.MemoryKeyStore and storage.PersistentKeyStore: the same interface,
// a simpler backing structure, full transactional semantics.
//
// spec.md places the datastore itself out of scope for the core; this
// adapter exists so the core's pipeline and batch driver can be exercised
// end-to-end without a running Postgres instance.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/attrib-io/attributor/internal/datastore"
	"github.com/attrib-io/attributor/internal/model"
)

// Store is a single-partition, mutex-guarded in-memory datastore. One Store
// corresponds to one datastore partition per spec.md §5 ("multiple
// invocations must not run simultaneously against the same datastore
// partition") — WithTransaction's lock enforces exactly that.
type Store struct {
	mu sync.Mutex

	sources          map[string]*model.Source
	triggers         map[string]*model.Trigger
	eventReports     map[string]*model.EventReport
	aggregateReports map[string]*model.AggregateReport
	attributions     map[string]*model.Attribution
	ignoredXNA       map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sources:          make(map[string]*model.Source),
		triggers:         make(map[string]*model.Trigger),
		eventReports:     make(map[string]*model.EventReport),
		aggregateReports: make(map[string]*model.AggregateReport),
		attributions:     make(map[string]*model.Attribution),
		ignoredXNA:       make(map[string]struct{}),
	}
}

// PutSource and PutTrigger seed the store for tests and fixtures; they are
// not part of the datastore.Store interface.
func (s *Store) PutSource(src *model.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = cloneSource(src)
}

func (s *Store) PutTrigger(t *model.Trigger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers[t.ID] = cloneTrigger(t)
}

// EventReports and AggregateReports expose committed state for assertions.
func (s *Store) EventReports() []*model.EventReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.EventReport, 0, len(s.eventReports))
	for _, r := range s.eventReports {
		out = append(out, cloneEventReport(r))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (s *Store) AggregateReports() []*model.AggregateReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.AggregateReport, 0, len(s.aggregateReports))
	for _, r := range s.aggregateReports {
		out = append(out, cloneAggregateReport(r))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (s *Store) Attributions() []*model.Attribution {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*model.Attribution, 0, len(s.attributions))
	for _, a := range s.attributions {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (s *Store) Source(id string) (*model.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[id]
	if !ok {
		return nil, false
	}

	return cloneSource(src), true
}

func (s *Store) Trigger(id string) (*model.Trigger, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.triggers[id]
	if !ok {
		return nil, false
	}

	cp := cloneTrigger(t)

	return cp, true
}

// PendingTriggerIDs implements datastore.Store.
func (s *Store) PendingTriggerIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.triggers))

	for id, t := range s.triggers {
		if t.Status == model.TriggerPending {
			ids = append(ids, id)
		}
	}

	sort.Strings(ids)

	return ids, nil
}

// WithTransaction implements datastore.Store. It snapshots state, runs fn
// against the live maps, and rolls back to the snapshot if fn returns an
// error — the same all-or-nothing guarantee spec.md §5 requires of a real
// transactional datastore.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx datastore.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	backup := s.snapshotLocked()

	tx := &txHandle{store: s}
	if err := fn(ctx, tx); err != nil {
		s.restoreLocked(backup)

		return err
	}

	return nil
}

func (s *Store) snapshotLocked() *Store {
	backup := New()
	for id, src := range s.sources {
		backup.sources[id] = cloneSource(src)
	}

	for id, t := range s.triggers {
		backup.triggers[id] = cloneTrigger(t)
	}

	for id, r := range s.eventReports {
		backup.eventReports[id] = cloneEventReport(r)
	}

	for id, r := range s.aggregateReports {
		backup.aggregateReports[id] = cloneAggregateReport(r)
	}

	for id, a := range s.attributions {
		cp := *a
		backup.attributions[id] = &cp
	}

	for k := range s.ignoredXNA {
		backup.ignoredXNA[k] = struct{}{}
	}

	return backup
}

func (s *Store) restoreLocked(backup *Store) {
	s.sources = backup.sources
	s.triggers = backup.triggers
	s.eventReports = backup.eventReports
	s.aggregateReports = backup.aggregateReports
	s.attributions = backup.attributions
	s.ignoredXNA = backup.ignoredXNA
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
