package pipeline

import (
	"github.com/attrib-io/attributor/internal/model"
	"github.com/attrib-io/attributor/internal/siteorigin"
)

// buildAttribution materialises the bookkeeping row spec.md §4.10 inserts
// on every successful attribution. Site/origin resolution failures are not
// fatal to the pipeline (the row is still inserted; at the first failure
// all four site/origin fields are left empty) since the rate-limit gates that consume this row
// already treat unresolvable sites as "cannot verify, pass open"
// (spec.md §4.8); the caller logs the error for visibility.
func buildAttribution(source *model.Source, trigger *model.Trigger) (*model.Attribution, error) {
	a := &model.Attribution{
		EnrollmentID: trigger.EnrollmentID,
		SourceTime:   source.EventTime,
		TriggerTime:  trigger.TriggerTime,
		Registrant:   trigger.Registrant,
		SourceID:     source.ID,
		TriggerID:    trigger.ID,
	}

	sourceSite, err := siteorigin.Site(source.Publisher, source.PublisherType == model.PublisherApp)
	if err != nil {
		return a, err
	}

	sourceOrigin, err := siteorigin.Origin(source.Publisher)
	if err != nil {
		return a, err
	}

	destSite, err := siteorigin.Site(trigger.AttributionDestination, trigger.DestinationType == model.DestinationApp)
	if err != nil {
		return a, err
	}

	destOrigin, err := siteorigin.Origin(trigger.AttributionDestination)
	if err != nil {
		return a, err
	}

	a.SourceSite = sourceSite
	a.SourceOrigin = sourceOrigin
	a.DestinationSite = destSite
	a.DestinationOrigin = destOrigin

	return a, nil
}
