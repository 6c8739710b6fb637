// Package schema defines the feature labels extracted from OSM nodes and
// the tag predicates that select them.
//
// A FeatureSpec pairs a label with a pure predicate over a node's tag map.
// The set of specs is plain data: adding a new feature is a new table entry,
// not a change to the accumulator or the index formats.
package schema

import (
	"fmt"
	"sort"
	"strings"
)

// Predicate reports whether a node with the given tags belongs to a feature.
// Predicates must be pure and total: no side effects, no errors, absent keys
// are simply non-matching.
type Predicate func(tags map[string]string) bool

// FeatureSpec describes one extractable feature.
type FeatureSpec struct {
	// Name identifies the feature and is used in index filenames.
	Name string
	// Match is the tag predicate for this feature.
	Match Predicate
}

// ErrUnknownFeature is returned when a requested feature name is not registered.
type ErrUnknownFeature struct {
	Name      string
	Available []string
}

func (e *ErrUnknownFeature) Error() string {
	return fmt.Sprintf("unknown feature %q, available: %s", e.Name, strings.Join(e.Available, ", "))
}

// Default returns the default feature set: signals, stops, calming.
func Default() []FeatureSpec {
	return []FeatureSpec{
		{Name: "signals", Match: matchSignals},
		{Name: "stops", Match: matchStops},
		{Name: "calming", Match: matchCalming},
	}
}

// Extended returns the default set plus give_way, crossing and level_crossing.
func Extended() []FeatureSpec {
	return append(Default(),
		FeatureSpec{Name: "give_way", Match: matchGiveWay},
		FeatureSpec{Name: "crossing", Match: matchCrossing},
		FeatureSpec{Name: "level_crossing", Match: matchLevelCrossing},
	)
}

// Lookup resolves feature names against the extended registry, preserving
// request order. A nil or empty names slice yields the default set.
func Lookup(names []string) ([]FeatureSpec, error) {
	if len(names) == 0 {
		return Default(), nil
	}

	all := Extended()
	byName := make(map[string]FeatureSpec, len(all))
	available := make([]string, 0, len(all))
	for _, spec := range all {
		byName[spec.Name] = spec
		available = append(available, spec.Name)
	}
	sort.Strings(available)

	specs := make([]FeatureSpec, 0, len(names))
	for _, name := range names {
		spec, ok := byName[name]
		if !ok {
			return nil, &ErrUnknownFeature{Name: name, Available: available}
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// Classify returns the names of all specs matching the given tags.
// A node may match any number of features, including none.
func Classify(specs []FeatureSpec, tags map[string]string) []string {
	var matched []string
	for _, spec := range specs {
		if spec.Match(tags) {
			matched = append(matched, spec.Name)
		}
	}
	return matched
}

func matchSignals(tags map[string]string) bool {
	return tags["highway"] == "traffic_signals" || tags["crossing"] == "traffic_signals"
}

func matchStops(tags map[string]string) bool {
	return tags["highway"] == "stop"
}

func matchCalming(tags map[string]string) bool {
	return tags["traffic_calming"] != ""
}

func matchGiveWay(tags map[string]string) bool {
	return tags["highway"] == "give_way"
}

func matchCrossing(tags map[string]string) bool {
	return tags["highway"] == "crossing"
}

func matchLevelCrossing(tags map[string]string) bool {
	return tags["railway"] == "level_crossing"
}
