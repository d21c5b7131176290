// Package bank holds the static item banks the pipeline depends on: the
// canonical manipulation-check item IDs and the weighted-criteria reasoning
// item whose answer key is verified against its own scoring table at load.
package bank

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/fieldwork-labs/intake/pkg/scoring"
)

// ManipulationCheckItems is the canonical item-ID set for the manipulation
// check. Every stored record carries exactly these keys, in this order,
// regardless of what subset the respondent actually submitted.
var ManipulationCheckItems = []string{
	"mc01", "mc02", "mc03", "mc04", "mc05", "mc06",
	"mc07", "mc08", "mc09", "mc10", "mc11", "mc12",
	"mc13", "mc14", "mc15", "mc16", "mc17", "mc18",
}

//go:embed weighted_item.yaml
var weightedItemYAML []byte

// WeightedItem is a multi-attribute choice question whose correct answer is
// derived from a scoring table rather than authored as a bare literal.
type WeightedItem struct {
	ID         string              `yaml:"id"`
	Answer     string              `yaml:"answer"`
	Weights    map[string]float64  `yaml:"weights"`
	Reversed   []string            `yaml:"reversed"`
	Candidates []scoring.Candidate `yaml:"candidates"`
}

// LoadWeightedItem parses the embedded item and verifies that the authored
// answer key equals the computed weighted-criteria winner. A mismatch is a
// data-authoring bug and fails construction loudly instead of being papered
// over by either value.
func LoadWeightedItem() (*WeightedItem, error) {
	var item WeightedItem
	if err := yaml.Unmarshal(weightedItemYAML, &item); err != nil {
		return nil, fmt.Errorf("bank: weighted item parse failed: %w", err)
	}
	return &item, item.Verify()
}

// Verify recomputes the winner from the criteria table and checks it against
// the authored answer key.
func (w *WeightedItem) Verify() error {
	reversed := make(map[string]bool, len(w.Reversed))
	for _, m := range w.Reversed {
		reversed[m] = true
	}
	winner, score := scoring.WeightedCriteriaWinner(w.Candidates, w.Weights, reversed)
	if winner != w.Answer {
		return fmt.Errorf("bank: item %q authored answer %q disagrees with computed winner %q (score %.2f)",
			w.ID, w.Answer, winner, score)
	}
	return nil
}
