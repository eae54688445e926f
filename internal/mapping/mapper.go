package mapping

import (
	"strings"

	"github.com/xrash/smetrics"

	"github.com/intellisoft-ke/findams/internal/dhis"
)

// UnknownCode is the code used for the special-cased display names
// when the raw value matches no option in the designated set.
const UnknownCode = "UKN"

// DistanceMetric scores the similarity of two strings; higher is more
// similar. Injected so the closest-match rule stays a pure function
// testable without the HTTP layer.
type DistanceMetric func(a, b string) float64

// JaroWinkler is the default metric.
func JaroWinkler(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// Special-case display names whose option set is known not to share
// their name.
var specialSets = map[string]string{
	"specimen type": "Specimens",
	"department":    "Wards",
}

// Mapper resolves configured display names against one catalog
// snapshot. Resolution is a pure function of (displayName, rawValue,
// snapshot): mapping the same value twice always yields the same code.
type Mapper struct {
	snap   *dhis.Snapshot
	metric DistanceMetric
}

// NewMapper builds a Mapper over a snapshot. A nil metric defaults to
// Jaro-Winkler.
func NewMapper(snap *dhis.Snapshot, metric DistanceMetric) *Mapper {
	if metric == nil {
		metric = JaroWinkler
	}
	return &Mapper{snap: snap, metric: metric}
}

// Resolve maps one raw cell value for a display name to a target
// attribute. ok is false only when the catalog has no attribute id for
// the display name; callers treat that as a configuration error (and
// ColumnMapping.Validate reports it up front).
//
// Value resolution order: exact option-set name match wins, then the
// special-cased sets, then the fuzzy closest-named set. Whenever a set
// is chosen but the raw value matches none of its labels, the raw
// value passes through unchanged - except for the special-cased sets,
// where the unknown code is substituted.
func (m *Mapper) Resolve(displayName, rawValue string) (dhis.Attribute, bool) {
	id, ok := m.snap.AttributeID(displayName)
	if !ok {
		return dhis.Attribute{}, false
	}

	value := rawValue

	if set, ok := m.snap.OptionSet(displayName); ok {
		if code, ok := set.CodeForLabel(rawValue); ok {
			value = code
		}
		return dhis.Attribute{Attribute: id, Value: value}, true
	}

	if setName, special := specialSets[strings.ToLower(displayName)]; special {
		if set, ok := m.snap.OptionSet(setName); ok {
			if code, ok := set.CodeForLabel(rawValue); ok {
				value = code
			} else {
				value = UnknownCode
			}
		}
		return dhis.Attribute{Attribute: id, Value: value}, true
	}

	if closest, ok := ClosestMatch(displayName, m.snap.OptionSetNames(), m.metric); ok {
		if set, ok := m.snap.OptionSet(closest); ok {
			if code, ok := set.CodeForLabel(rawValue); ok {
				value = code
			}
		}
	}

	return dhis.Attribute{Attribute: id, Value: value}, true
}

// ClosestMatch returns the candidate most similar to target under the
// metric, compared case-insensitively. Ties are broken by candidate
// order, so a stable catalog order gives a stable winner. ok is false
// for an empty candidate list.
func ClosestMatch(target string, candidates []string, metric DistanceMetric) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}

	lowered := strings.ToLower(target)
	best := candidates[0]
	bestScore := metric(strings.ToLower(best), lowered)
	for _, c := range candidates[1:] {
		if score := metric(strings.ToLower(c), lowered); score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, true
}
