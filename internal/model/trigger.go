package model

// EventTriggerSpec is one entry of a trigger's event_triggers sequence. It is
// embedded in the trigger and never mutated (spec.md §3).
type EventTriggerSpec struct {
	TriggerData  uint64
	Priority     int64
	DedupKey     *uint64
	FilterSet    FilterSet
	NotFilterSet FilterSet
}

// AggregatableTriggerDatum is one predicate in the aggregatable-trigger spec:
// it contributes its key pieces to the aggregate histogram whenever its
// filters match the source's aggregatable filter data.
type AggregatableTriggerDatum struct {
	KeyPieces    []string
	SourceKeys   []string
	FilterSet    FilterSet
	NotFilterSet FilterSet
}

// AggregatableDedupKeyPredicate pairs a candidate aggregate dedup key with the
// filters that must match for it to apply (spec.md §4.6 step 3).
type AggregatableDedupKeyPredicate struct {
	DedupKey     *uint64
	FilterSet    FilterSet
	NotFilterSet FilterSet
}

// Trigger is a recorded conversion event seeking attribution (spec.md §3).
type Trigger struct {
	ID                     string
	AttributionDestination string
	DestinationType        DestinationType
	EnrollmentID           string
	Registrant             string
	TriggerTime            Millis
	Status                 TriggerStatus

	Filters    FilterSet
	NotFilters FilterSet

	EventTriggers []EventTriggerSpec

	AggregatableTriggerData []AggregatableTriggerDatum
	AggregatableDedupKeys   []AggregatableDedupKeyPredicate
	AggregatableValues      map[string]int64

	// AttributionConfig names foreign enrollment ids eligible to contribute
	// cross-network derived sources (spec.md §4.3). Empty/nil means
	// cross-network attribution does not apply to this trigger. A malformed
	// source value is parsed to nil by the registration layer; the core never
	// sees raw JSON (spec.md §C.3 of SPEC_FULL.md).
	AttributionConfig []string
}

// HasAttributionConfig reports whether cross-network candidate expansion
// applies to this trigger.
func (t *Trigger) HasAttributionConfig() bool {
	return len(t.AttributionConfig) > 0
}
