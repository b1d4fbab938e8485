package postgres

import (
	"encoding/json"
	"fmt"

	"github.com/attrib-io/attributor/internal/model"
)

// The nested filter/trigger-config shapes have no natural relational
// representation at this core's scale, so they round-trip through JSONB
// columns the way the teacher stores OpenLineage facet payloads — see
// internal/storage/lineage_store.go's state_history jsonb column.

func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal: %w", err)
	}

	return b, nil
}

func unmarshalJSON(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("postgres: unmarshal: %w", err)
	}

	return nil
}

func marshalFilterData(fd model.FilterData) ([]byte, error)   { return marshalJSON(fd) }
func marshalFilterSet(fs model.FilterSet) ([]byte, error)     { return marshalJSON(fs) }
func marshalAggSource(a model.AggregatableSource) ([]byte, error) { return marshalJSON(a) }

func marshalEventTriggers(v []model.EventTriggerSpec) ([]byte, error)             { return marshalJSON(v) }
func marshalAggTriggerData(v []model.AggregatableTriggerDatum) ([]byte, error)    { return marshalJSON(v) }
func marshalAggDedupKeys(v []model.AggregatableDedupKeyPredicate) ([]byte, error) { return marshalJSON(v) }
func marshalAggValues(v map[string]int64) ([]byte, error)                        { return marshalJSON(v) }
func marshalContributions(v []model.Contribution) ([]byte, error)                { return marshalJSON(v) }
