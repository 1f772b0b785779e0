// Package similarity provides the bounded closeness measures used by the
// profile matcher. Every function returns a value in [0, 1] for
// non-negative inputs and is symmetric in its arguments.
package similarity

import (
	"math"
	"sort"
	"strings"
)

// Scalar returns 1 - |a-b|/(a+b). Two zeros are a perfect match.
// Inputs must be non-negative.
func Scalar(a, b float64) float64 {
	sum := a + b
	if sum == 0 {
		return 1
	}
	return 1 - math.Abs(a-b)/sum
}

// Distribution compares two key -> weight mappings. A key present in both
// contributes with the sum of its weights and its Scalar similarity; a key
// present in one mapping contributes its weight with similarity 0. The
// result is the weighted mean, or 1 when there is no weight at all.
//
// Keys are visited in sorted order so the float sum does not depend on
// argument order or map iteration.
func Distribution(m1, m2 map[string]float64) float64 {
	var score, total float64
	for _, key := range unionKeys(m1, m2) {
		v1, in1 := m1[key]
		v2, in2 := m2[key]

		var weight, sim float64
		switch {
		case in1 && in2:
			weight = v1 + v2
			sim = Scalar(v1, v2)
		case in1:
			weight = v1
		default:
			weight = v2
		}
		score += weight * sim
		total += weight
	}

	if total == 0 {
		return 1
	}
	return score / total
}

func unionKeys(m1, m2 map[string]float64) []string {
	keys := make([]string, 0, len(m1)+len(m2))
	for k := range m1 {
		keys = append(keys, k)
	}
	for k := range m2 {
		if _, ok := m1[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// LabelSet is a set of lower-cased labels.
type LabelSet map[string]struct{}

// Labels collapses a label sequence to its distinct lower-cased members.
// Multiplicity is discarded.
func Labels(labels []string) LabelSet {
	set := make(LabelSet, len(labels))
	for _, l := range labels {
		set[strings.ToLower(l)] = struct{}{}
	}
	return set
}

// Overlap returns the Jaccard index of the case-folded label sets, or 0
// when both are empty.
func Overlap(s1, s2 []string) float64 {
	return OverlapSets(Labels(s1), Labels(s2))
}

// OverlapSets is Overlap for already collapsed sets.
func OverlapSets(a, b LabelSet) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	shared := 0
	for l := range a {
		if _, ok := b[l]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
