// Package scoring aggregates trial-level reasoning responses into per-round
// and overall accuracy summaries, and computes the weighted-criteria answer
// key for the multi-attribute choice item.
package scoring

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/fieldwork-labs/intake/pkg/sanitize"
)

// TrialDetail is one answered reasoning-task question. Selected and Correct
// are opaque option identifiers compared strictly: a string "2" and an
// integer 2 are NOT the same answer.
type TrialDetail struct {
	Round        any     `json:"round"`
	Selected     any     `json:"selected_option"`
	Correct      any     `json:"correct_idx"`
	ResponseTime float64 `json:"response_time"`
}

// RoundSummary aggregates the trials sharing one round identifier.
// AccuracyPct and AvgResponseTime are nil when the round holds no questions,
// so "no data" stays distinguishable from a zero score.
type RoundSummary struct {
	Round           string   `json:"round"`
	Questions       int      `json:"questions"`
	Correct         int      `json:"correct"`
	TotalTime       float64  `json:"total_time"`
	AccuracyPct     *float64 `json:"accuracy_pct"`
	AvgResponseTime *float64 `json:"avg_response_time"`
}

// Summary is the output of SummarizeInference.
type Summary struct {
	TotalQuestions int            `json:"total_questions"`
	CorrectCount   int            `json:"correct_count"`
	AccuracyPct    *float64       `json:"accuracy_pct"`
	TotalTime      float64        `json:"total_time"`
	Rounds         []RoundSummary `json:"rounds"`
}

// SummarizeInference walks the trial details once, grouping by the
// string-coerced round identifier. A trial is correct iff its selected option
// equals the correct option with no type coercion. The returned round
// summaries are sorted lexicographically by round identifier; overall
// accuracy is nil, not zero, when there are no trials.
func SummarizeInference(details []TrialDetail) Summary {
	byRound := make(map[string]*RoundSummary)
	var order []string

	s := Summary{}
	for _, d := range details {
		key := fmt.Sprint(d.Round)
		rs, ok := byRound[key]
		if !ok {
			rs = &RoundSummary{Round: key}
			byRound[key] = rs
			order = append(order, key)
		}

		rt := d.ResponseTime
		if rt < 0 {
			rt = 0
		}

		rs.Questions++
		rs.TotalTime += rt
		s.TotalQuestions++
		s.TotalTime += rt
		if optionsEqual(d.Selected, d.Correct) {
			rs.Correct++
			s.CorrectCount++
		}
	}

	sort.Strings(order)
	for _, key := range order {
		rs := byRound[key]
		if rs.Questions > 0 {
			acc := sanitize.Round(float64(rs.Correct)/float64(rs.Questions), 4)
			avg := sanitize.Round(rs.TotalTime/float64(rs.Questions), 3)
			rs.AccuracyPct = &acc
			rs.AvgResponseTime = &avg
		}
		s.Rounds = append(s.Rounds, *rs)
	}

	if s.TotalQuestions > 0 {
		acc := sanitize.Round(float64(s.CorrectCount)/float64(s.TotalQuestions), 4)
		s.AccuracyPct = &acc
	}
	return s
}

// optionsEqual compares option identifiers strictly. DeepEqual keeps the
// comparison total (no panic on uncomparable values) while still refusing
// cross-type matches.
func optionsEqual(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Candidate is one option in a weighted-criteria choice item. Slice order is
// the authored presentation order and doubles as the tie-break order.
type Candidate struct {
	ID      string             `json:"id" yaml:"id"`
	Metrics map[string]float64 `json:"metrics" yaml:"metrics"`
}

// WeightedCriteriaWinner scores each candidate as the weighted sum of its
// metric values, substituting (100 - value) for metrics listed in reversed.
// The highest score wins; ties go to the earliest candidate in slice order.
func WeightedCriteriaWinner(candidates []Candidate, weights map[string]float64, reversed map[string]bool) (string, float64) {
	var (
		winner string
		best   float64
		seen   bool
	)
	for _, c := range candidates {
		var score float64
		for metric, w := range weights {
			v := c.Metrics[metric]
			if reversed[metric] {
				v = 100 - v
			}
			score += w * v
		}
		if !seen || score > best {
			winner, best, seen = c.ID, score, true
		}
	}
	return winner, best
}
