package aggregatepath

import (
	"errors"
	"math/big"
	"sort"

	"github.com/attrib-io/attributor/internal/filter"
	"github.com/attrib-io/attributor/internal/model"
)

// ErrMalformedAggregatableSource is returned when a key piece or source key
// cannot be parsed as a hex-encoded integer. It is recovered by the
// caller as a drop, per spec.md §7 kind 2 (Malformed input) and §4.6's
// "malformed JSON in payload ⇒ drop".
var ErrMalformedAggregatableSource = errors.New("aggregatepath: malformed aggregatable source or trigger data")

// buildContributions runs the aggregatable payload generator over
// (source, trigger): spec.md §4.6 step 4. For every bucket name the source
// registered a key piece for, every aggregatable-trigger datum whose
// filters match the source's filter data and whose source_keys names that
// bucket contributes its key piece, OR'd together with the source's own
// piece, as the final histogram key; the value comes from the trigger's
// aggregatable value for that bucket name. Buckets with no trigger value
// are skipped. The result is ordered by bucket name for determinism.
func buildContributions(source *model.Source, trigger *model.Trigger) ([]model.Contribution, error) {
	names := make([]string, 0, len(source.AggregatableSource))
	for name := range source.AggregatableSource {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]model.Contribution, 0, len(names))

	for _, name := range names {
		value, ok := trigger.AggregatableValues[name]
		if !ok || value == 0 {
			continue
		}

		key, err := aggregateKey(source, source.AggregatableSource[name], name, trigger)
		if err != nil {
			return nil, err
		}

		out = append(out, model.Contribution{Key: key, Value: value})
	}

	return out, nil
}

func aggregateKey(source *model.Source, sourcePiece, bucketName string, trigger *model.Trigger) (string, error) {
	acc, ok := new(big.Int).SetString(sourcePiece, 16)
	if !ok {
		return "", ErrMalformedAggregatableSource
	}

	for _, datum := range trigger.AggregatableTriggerData {
		if !containsKey(datum.SourceKeys, bucketName) {
			continue
		}

		if !filter.Matches(source.FilterData, datum.FilterSet, true) ||
			!filter.Matches(source.FilterData, datum.NotFilterSet, false) {
			continue
		}

		for _, piece := range datum.KeyPieces {
			bits, ok := new(big.Int).SetString(piece, 16)
			if !ok {
				return "", ErrMalformedAggregatableSource
			}

			acc.Or(acc, bits)
		}
	}

	return acc.Text(16), nil
}

func containsKey(keys []string, name string) bool {
	for _, k := range keys {
		if k == name {
			return true
		}
	}

	return false
}
