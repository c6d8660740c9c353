package filter

import (
	"time"

	"ctrlbx/app/util"

	"github.com/samber/oops"
)

const DateLayout = "2006-01-02"

// DateRange is an inclusive day range sent to the backend as start_date and
// end_date.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays covers the n days before now through today.
func LastDays(now time.Time, n int) DateRange {
	return DateRange{
		Start: now.AddDate(0, 0, -n),
		End:   now,
	}
}

// MonthToDate covers the first day of now's month through today.
func MonthToDate(now time.Time) DateRange {
	return DateRange{
		Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()),
		End:   now,
	}
}

// ParseDateRange parses YYYY-MM-DD bounds. Empty bounds keep the fallback.
func ParseDateRange(start, end string, fallback DateRange) (DateRange, error) {
	result := fallback

	if start != "" {
		t, err := time.Parse(DateLayout, start)
		if err != nil {
			return DateRange{}, oops.
				With("kind", util.KindValidation).
				Public("Fecha inválida: " + start).
				Errorf("parse start date: %w", err)
		}
		result.Start = t
	}

	if end != "" {
		t, err := time.Parse(DateLayout, end)
		if err != nil {
			return DateRange{}, oops.
				With("kind", util.KindValidation).
				Public("Fecha inválida: " + end).
				Errorf("parse end date: %w", err)
		}
		result.End = t
	}

	if result.End.Format(DateLayout) < result.Start.Format(DateLayout) {
		return DateRange{}, oops.
			With("kind", util.KindValidation).
			Public("La fecha de inicio es posterior a la fecha de fin").
			Errorf("start %s after end %s", result.StartDate(), result.EndDate())
	}

	return result, nil
}

func (r DateRange) StartDate() string {
	return r.Start.Format(DateLayout)
}

func (r DateRange) EndDate() string {
	return r.End.Format(DateLayout)
}
