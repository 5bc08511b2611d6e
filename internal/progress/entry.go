package progress

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
)

// Entry is one day of legacy progress. Dates are unique across the file.
type Entry struct {
	Date          string   `json:"date" validate:"required,datetime=2006-01-02"`
	Steps         int      `json:"steps" validate:"gte=0"`
	Time          int64    `json:"time" validate:"gte=0"`
	Cards         int      `json:"cards" validate:"gte=0"`
	ExercisesDone []string `json:"exercises_done,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the date format and that every counter is non-negative.
func (e Entry) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid progress entry %q: %w", e.Date, err)
	}
	return nil
}

// Equal compares two entries field by field. A nil and an empty exercise
// list are the same.
func (e Entry) Equal(o Entry) bool {
	return e.Date == o.Date &&
		e.Steps == o.Steps &&
		e.Time == o.Time &&
		e.Cards == o.Cards &&
		slices.Equal(e.ExercisesDone, o.ExercisesDone)
}

func (e Entry) clone() Entry {
	e.ExercisesDone = slices.Clone(e.ExercisesDone)
	return e
}

// accumulate adds o's counters to e and unions the exercise lists,
// keeping first-seen order.
func (e Entry) accumulate(o Entry) Entry {
	out := e.clone()
	out.Steps += o.Steps
	out.Time += o.Time
	out.Cards += o.Cards
	for _, ex := range o.ExercisesDone {
		if !slices.Contains(out.ExercisesDone, ex) {
			out.ExercisesDone = append(out.ExercisesDone, ex)
		}
	}
	return out
}
