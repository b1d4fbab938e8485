package model

// FilterData maps a filter key to the ordered set of string values it holds.
// It is the shape both a source's registered filter data and a single filter
// map inside a trigger's filter set share (spec.md §4.4).
type FilterData map[string][]string

// FilterSet is a sequence of FilterData maps. A filter set matches a source's
// FilterData iff at least one map in the sequence matches (OR semantics
// across the sequence; AND semantics across the keys within one map).
type FilterSet []FilterData
