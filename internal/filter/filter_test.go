package filter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/attrib-io/attributor/internal/filter"
	"github.com/attrib-io/attributor/internal/model"
)

func TestMatches_EmptySetAlwaysMatches(t *testing.T) {
	assert.True(t, filter.Matches(model.FilterData{"product": {"a"}}, nil, true))
	assert.True(t, filter.Matches(model.FilterData{"product": {"a"}}, model.FilterSet{}, false))
}

func TestMatches_Positive(t *testing.T) {
	source := model.FilterData{"product": {"shoes", "bags"}, "ctid": {"123"}}

	tests := []struct {
		name string
		set  model.FilterSet
		want bool
	}{
		{name: "intersecting values match", set: model.FilterSet{{"product": {"shoes"}}}, want: true},
		{name: "disjoint values do not match", set: model.FilterSet{{"product": {"hats"}}}, want: false},
		{name: "unknown key on source is ignored", set: model.FilterSet{{"unknown": {"x"}}}, want: true},
		{
			name: "any map in the OR'd set matching is enough",
			set:  model.FilterSet{{"product": {"hats"}}, {"product": {"bags"}}},
			want: true,
		},
		{
			name: "all shared keys in one map must match",
			set:  model.FilterSet{{"product": {"shoes"}, "ctid": {"999"}}},
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, filter.Matches(source, tc.set, true))
		})
	}
}

func TestMatches_Negative(t *testing.T) {
	source := model.FilterData{"product": {"shoes"}}

	assert.True(t, filter.Matches(source, model.FilterSet{{"product": {"hats"}}}, false))
	assert.False(t, filter.Matches(source, model.FilterSet{{"product": {"shoes"}}}, false))
}

func TestTopLevelMatch(t *testing.T) {
	source := model.FilterData{"product": {"shoes"}}

	assert.True(t, filter.TopLevelMatch(source,
		model.FilterSet{{"product": {"shoes"}}},
		model.FilterSet{{"product": {"hats"}}}))

	assert.False(t, filter.TopLevelMatch(source,
		model.FilterSet{{"product": {"hats"}}},
		nil))

	assert.False(t, filter.TopLevelMatch(source,
		nil,
		model.FilterSet{{"product": {"shoes"}}}))
}

func TestFirstMatchingEventTrigger(t *testing.T) {
	source := model.FilterData{"product": {"shoes"}}

	specs := []model.EventTriggerSpec{
		{TriggerData: 1, FilterSet: model.FilterSet{{"product": {"hats"}}}},
		{TriggerData: 2, FilterSet: model.FilterSet{{"product": {"shoes"}}}},
		{TriggerData: 3},
	}

	spec, ok := filter.FirstMatchingEventTrigger(source, specs)

	assert.True(t, ok)
	assert.Equal(t, uint64(2), spec.TriggerData)
}

func TestFirstMatchingEventTrigger_NoMatch(t *testing.T) {
	source := model.FilterData{"product": {"shoes"}}

	specs := []model.EventTriggerSpec{
		{TriggerData: 1, FilterSet: model.FilterSet{{"product": {"hats"}}}},
	}

	_, ok := filter.FirstMatchingEventTrigger(source, specs)

	assert.False(t, ok)
}

func TestFirstMatchingAggregatableDedupKey(t *testing.T) {
	source := model.FilterData{"product": {"shoes"}}
	key := uint64(7)

	predicates := []model.AggregatableDedupKeyPredicate{
		{DedupKey: nil, FilterSet: model.FilterSet{{"product": {"hats"}}}},
		{DedupKey: &key, FilterSet: model.FilterSet{{"product": {"shoes"}}}},
	}

	got := filter.FirstMatchingAggregatableDedupKey(source, predicates)

	if assert.NotNil(t, got) {
		assert.Equal(t, key, *got)
	}
}

func TestFirstMatchingAggregatableDedupKey_NoMatchReturnsNil(t *testing.T) {
	source := model.FilterData{"product": {"shoes"}}

	predicates := []model.AggregatableDedupKeyPredicate{
		{FilterSet: model.FilterSet{{"product": {"hats"}}}},
	}

	assert.Nil(t, filter.FirstMatchingAggregatableDedupKey(source, predicates))
}
