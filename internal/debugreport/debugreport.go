// Package debugreport implements the tag-enumerated scheduler interface
// spec.md §6 names: "the core calls a scheduler once per drop decision;
// delivery is asynchronous and out of scope". This package owns exactly
// that boundary — it never decides whether to schedule a notification,
// only how to publish one once the pipeline has decided.
package debugreport

import (
	"context"

	"github.com/attrib-io/attributor/internal/model"
)

// Notification is the envelope scheduled per drop decision (SPEC_FULL.md
// §C.4). The wire format of delivery is out of scope per spec.md §1; this
// is the minimal observable shape the core commits to.
type Notification struct {
	Tag        model.DebugTag `json:"tag"`
	TriggerID  string         `json:"trigger_id"`
	SourceID   string         `json:"source_id,omitempty"`
	ScheduledAt model.Millis  `json:"scheduled_at"`
}

// Scheduler is the debug-report interface the pipeline depends on. The
// pipeline calls Schedule synchronously from inside its transaction:
// NoopScheduler returns at once, while KafkaScheduler returns only after
// its throttle admits the notification and the broker write completes.
type Scheduler interface {
	Schedule(ctx context.Context, n Notification) error
}

// NoopScheduler discards every notification. It is the zero-configuration
// default so the core never requires a debug-report transport to run.
type NoopScheduler struct{}

func (NoopScheduler) Schedule(context.Context, Notification) error { return nil }
