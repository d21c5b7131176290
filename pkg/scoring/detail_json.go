package scoring

import (
	"encoding/json"

	"github.com/fieldwork-labs/intake/pkg/sanitize"
)

// UnmarshalJSON tolerates malformed response times: anything that does not
// coerce to a non-negative number becomes 0 rather than an error, so one bad
// trial never loses a whole session.
func (d *TrialDetail) UnmarshalJSON(data []byte) error {
	var aux struct {
		Round        any `json:"round"`
		Selected     any `json:"selected_option"`
		Correct      any `json:"correct_idx"`
		ResponseTime any `json:"response_time"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Round = aux.Round
	d.Selected = aux.Selected
	d.Correct = aux.Correct
	d.ResponseTime = 0
	if f, ok := sanitize.CoerceFloat(aux.ResponseTime); ok && f > 0 {
		d.ResponseTime = f
	}
	return nil
}
