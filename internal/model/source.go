package model

// AggregatableSource maps a named bucket to its hex-encoded key piece, used
// to build aggregate-report histogram keys (spec.md §4.6).
type AggregatableSource map[string]string

// Source is a recorded impression that may later be attributed to a
// conversion. Fields mirror spec.md §3's Source entity; only fields the core
// reads or mutates are represented here.
type Source struct {
	ID            string
	EventID       uint64
	Publisher     string
	PublisherType PublisherType
	EnrollmentID  string

	// ParentID is non-empty iff this is a derived, cross-network source
	// synthesized at attribution time (spec.md §4.11). Derived sources are
	// never persisted and never produce event reports (invariant 6).
	ParentID string

	EventTime                Millis
	ExpiryTime               Millis
	EventReportWindow        Millis
	AggregatableReportWindow Millis

	Priority   int64
	SourceType SourceType
	Status     SourceStatus

	AttributionMode AttributionMode

	InstallAttributed     bool
	InstallCooldownWindow Millis

	FilterData         FilterData
	AggregatableSource AggregatableSource

	// AggregateContributions is the running sum of all aggregate-report
	// values attributed to this source; never exceeds the configured
	// per-source budget (spec.md §3 invariant 4). Always zero and never
	// mutated for a derived source (invariant 6).
	AggregateContributions int64

	EventReportDedupKeys     DedupKeySet
	AggregateReportDedupKeys DedupKeySet

	AppDestinations []string
	WebDestinations []string
}

// IsDerived reports whether this source was synthesised cross-network rather
// than loaded from the datastore.
func (s *Source) IsDerived() bool {
	return s.ParentID != ""
}

// InstallCooldownActive reports whether triggerTime falls inside this
// source's install-attribution cooldown window, the first tie-break key in
// the selector's ordering (spec.md §4.3).
func (s *Source) InstallCooldownActive(triggerTime Millis) bool {
	return s.InstallAttributed && triggerTime < s.EventTime+s.InstallCooldownWindow
}

// MatchesDestination reports whether the source is registered for the given
// destination URI under the given destination type.
func (s *Source) MatchesDestination(destination string, destType DestinationType) bool {
	switch destType {
	case DestinationApp:
		return containsString(s.AppDestinations, destination)
	case DestinationWeb:
		return containsString(s.WebDestinations, destination)
	default:
		return false
	}
}

func containsString(haystack []string, needle string) bool {
	for _, v := range haystack {
		if v == needle {
			return true
		}
	}

	return false
}
