// Package model provides the domain entities the attribution core reads and
// writes: sources (impressions), triggers (conversions), and the reports and
// bookkeeping rows attribution produces from them.
package model

// PublisherType distinguishes an app-registered source/destination from a web one.
type PublisherType string

const (
	PublisherApp PublisherType = "APP"
	PublisherWeb PublisherType = "WEB"
)

// DestinationType mirrors PublisherType on the trigger side.
type DestinationType string

const (
	DestinationApp DestinationType = "APP"
	DestinationWeb DestinationType = "WEB"
)

// SourceStatus is the lifecycle state of a Source.
type SourceStatus string

const (
	SourceActive         SourceStatus = "ACTIVE"
	SourceIgnored        SourceStatus = "IGNORED"
	SourceMarkedToDelete SourceStatus = "MARKED_TO_DELETE"
)

// SourceType distinguishes the two source registration shapes; it affects
// nothing in this core beyond being stored with the source and copied onto
// derived sources.
type SourceType string

const (
	SourceEvent      SourceType = "EVENT"
	SourceNavigation SourceType = "NAVIGATION"
)

// AttributionMode controls whether a source is eligible to produce event reports.
type AttributionMode string

const (
	AttributionTruthfully AttributionMode = "TRUTHFULLY"
	AttributionNever      AttributionMode = "NEVER"
	AttributionFalsely    AttributionMode = "FALSELY"
)

// TriggerStatus is the lifecycle state of a Trigger. Every trigger reaches
// exactly one terminal status: Attributed or Ignored.
type TriggerStatus string

const (
	TriggerPending    TriggerStatus = "PENDING"
	TriggerAttributed TriggerStatus = "ATTRIBUTED"
	TriggerIgnored    TriggerStatus = "IGNORED"
)

// ReportStatus is shared by event and aggregate reports.
type ReportStatus string

const (
	ReportPending ReportStatus = "PENDING"
	ReportNone    ReportStatus = "NONE"
)

// DebugReportStatus records whether a debug copy of a report was scheduled.
type DebugReportStatus string

const (
	DebugReportPending DebugReportStatus = "PENDING"
	DebugReportNone    DebugReportStatus = "NONE"
)

// DebugTag enumerates the drop/notable-decision tags the core schedules.
// Delivery of the underlying debug report is out of scope; the core only
// tags the decision (spec.md §6, §7).
type DebugTag string

const (
	TagNoMatchingSource          DebugTag = "TRIGGER_NO_MATCHING_SOURCE"
	TagNoMatchingFilterData      DebugTag = "TRIGGER_NO_MATCHING_FILTER_DATA"
	TagEventReportWindowPassed   DebugTag = "TRIGGER_EVENT_REPORT_WINDOW_PASSED"
	TagEventNoMatchingConfigs    DebugTag = "TRIGGER_EVENT_NO_MATCHING_CONFIGURATIONS"
	TagEventDeduplicated         DebugTag = "TRIGGER_EVENT_DEDUPLICATED"
	TagEventExcessiveReports     DebugTag = "TRIGGER_EVENT_EXCESSIVE_REPORTS"
	TagEventLowPriority          DebugTag = "TRIGGER_EVENT_LOW_PRIORITY"
	TagAttributionsPerSourceDest DebugTag = "TRIGGER_ATTRIBUTIONS_PER_SOURCE_DESTINATION_LIMIT"
	TagReportingOriginLimit      DebugTag = "TRIGGER_REPORTING_ORIGIN_LIMIT"
)
