package model

// EventReport is produced on the event path. It may later be evicted
// (deleted) by a higher-priority report sharing the same report-time bucket
// (spec.md §3, §4.7).
type EventReport struct {
	ID                     string
	SourceID               string
	TriggerID              string
	TriggerData            uint64
	TriggerPriority        int64
	TriggerTime            Millis
	ReportTime             Millis
	TriggerDedupKey        *uint64
	AttributionDestination string
	DestinationType        DestinationType
	Status                 ReportStatus
}

// Contribution is one (key, value) pair of an aggregate report's histogram.
type Contribution struct {
	Key   string
	Value int64
}

// AggregateReport is produced on the aggregate path and is never evicted by
// the core (spec.md §3).
type AggregateReport struct {
	ID                     string
	SourceID               string
	TriggerID              string
	SourceRegistrationTime Millis
	ScheduledReportTime    Millis
	AttributionDestination string
	DestinationType        DestinationType
	EnrollmentID           string
	Contributions          []Contribution
	DedupKey               *uint64
	Status                 ReportStatus
	DebugReportStatus      DebugReportStatus
}

// Sum returns the total value across all contributions.
func (r *AggregateReport) Sum() int64 {
	var total int64
	for _, c := range r.Contributions {
		total += c.Value
	}

	return total
}
