package model

// Attribution is the bookkeeping row inserted exactly once per successful
// attribution (spec.md §3, §4.10). It is what the rate-limit gate counts.
type Attribution struct {
	ID                string
	SourceSite        string
	SourceOrigin      string
	DestinationSite   string
	DestinationOrigin string
	EnrollmentID      string
	// SourceTime is the winning source's event_time, not the trigger's
	// trigger_time — spec.md §9 flags this naming confusion in the original
	// and §4.10 resolves it as SourceTime here.
	SourceTime Millis
	// TriggerTime is the trigger's own trigger_time, carried on the row so
	// the attribution-quota gate (spec.md §4.8) can compute its sliding
	// window without a join back to the (by-then-terminal) trigger.
	TriggerTime Millis
	Registrant  string
	SourceID    string
	TriggerID   string
}
