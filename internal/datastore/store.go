// Package datastore defines the transactional contract the attribution core
// requires from its datastore (spec.md §6). The core depends only on this
// interface; concrete adapters (internal/datastore/memstore,
// internal/datastore/postgres) live outside the core and may be swapped
// freely, following the dependency-inversion split the teacher repository
// uses between its ingestion.Store interface and storage.LineageStore
// implementation.
package datastore

import (
	"context"
	"errors"

	"github.com/attrib-io/attributor/internal/model"
)

// ErrUnavailable wraps any failure crossing the datastore boundary
// (spec.md §7 kind 1: Datastore-transient). The batch driver checks for it
// with errors.Is to decide whether to report retry-needed; it is never
// recovered inside the core.
var ErrUnavailable = errors.New("datastore: operation failed")

// Store is the entry point: it hands out the pending-trigger id list and
// scopes write transactions.
type Store interface {
	// PendingTriggerIDs reads pending trigger ids outside any write
	// transaction and returns them in arbitrary order (spec.md §4.1). A retrieval failure is
	// ErrUnavailable.
	PendingTriggerIDs(ctx context.Context) ([]string, error)

	// WithTransaction runs fn inside a single write transaction (spec.md
	// §4.2, §5): fn's non-nil error rolls the transaction back and is
	// returned wrapped in ErrUnavailable only if the failure originated at
	// the datastore boundary (commit/begin); business-rule drops inside fn
	// are not datastore errors and must not be treated as retry-needed by
	// the caller. Implementations commit iff fn returns nil.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside one write transaction
// (spec.md §6). Every method may suspend on the datastore boundary; none of
// them retry internally.
type Tx interface {
	GetTrigger(ctx context.Context, id string) (*model.Trigger, error)
	GetSource(ctx context.Context, id string) (*model.Source, error)

	// GetMatchingActiveSources returns active sources matching trigger's
	// destination, time window, and enrollment (spec.md §3, §6).
	GetMatchingActiveSources(ctx context.Context, trigger *model.Trigger) ([]*model.Source, error)

	// FetchTriggerMatchingSourcesForXNA returns the cross-network candidate
	// pool: sources matching trigger's destination/time window whose
	// enrollment is trigger's own or one of enrollments (spec.md §4.3, §6).
	FetchTriggerMatchingSourcesForXNA(
		ctx context.Context,
		trigger *model.Trigger,
		enrollments []string,
	) ([]*model.Source, error)

	NumEventReportsPerDestination(ctx context.Context, destination string, destType model.DestinationType) (int, error)
	NumAggregateReportsPerDestination(
		ctx context.Context,
		destination string,
		destType model.DestinationType,
	) (int, error)

	GetSourceEventReports(ctx context.Context, sourceID string) ([]*model.EventReport, error)
	GetSourceDestinations(ctx context.Context, sourceID string) (app []string, web []string, err error)

	// GetAttributionsPerRateLimitWindow counts attributions for source/
	// trigger's (source_site, destination_site, enrollment_id, registrant)
	// tuple with trigger_time in [windowStart, windowEnd) — spec.md §4.8's
	// sliding window, inclusive of its lower bound and exclusive of its
	// upper per §8.
	GetAttributionsPerRateLimitWindow(
		ctx context.Context,
		source *model.Source,
		trigger *model.Trigger,
		windowStart, windowEnd model.Millis,
	) (int, error)

	CountDistinctEnrollmentsPerPublisherXDestination(
		ctx context.Context,
		publisher, destination, ownEnrollment string,
		windowStart, windowEnd model.Millis,
	) (int, error)

	InsertEventReport(ctx context.Context, r *model.EventReport) error
	InsertAggregateReport(ctx context.Context, r *model.AggregateReport) error
	InsertAttribution(ctx context.Context, a *model.Attribution) error

	DeleteEventReport(ctx context.Context, reportID string) error

	UpdateSourceStatus(ctx context.Context, ids []string, status model.SourceStatus) error
	InsertIgnoredSourceForEnrollment(ctx context.Context, parentID, enrollmentID string) error

	UpdateSourceEventReportDedupKeys(ctx context.Context, source *model.Source) error
	UpdateSourceAggregateReportDedupKeys(ctx context.Context, source *model.Source) error
	UpdateSourceAggregateContributions(ctx context.Context, source *model.Source) error

	UpdateTriggerStatus(ctx context.Context, ids []string, status model.TriggerStatus) error
}
