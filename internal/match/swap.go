package match

import (
	"fmt"
	"time"

	"github.com/recmatch/recmatch/internal/common"
)

// CanSwapDayMonth reports whether interchanging the day and month components
// of a date yields a calendar date that still exists. A day value above 12
// cannot become a month.
func CanSwapDayMonth(d time.Time) bool {
	return d.Day() <= 12
}

// SwapDayMonth returns the date with its day-of-month and month components
// interchanged.
func SwapDayMonth(d time.Time) (time.Time, error) {
	if !CanSwapDayMonth(d) {
		return time.Time{}, fmt.Errorf("%w: day %d of %s cannot become a month", common.ErrSwapNotApplicable, d.Day(), d.Format("2006-01-02"))
	}
	swapped := time.Date(d.Year(), time.Month(d.Day()), int(d.Month()),
		d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
	return swapped, nil
}
