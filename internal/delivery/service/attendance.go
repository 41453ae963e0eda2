package service

import "github.com/milkroute/ledger/internal/delivery/domain"

// Summarize counts delivered days among the first asOfDay slots. Truncating
// the denominator at the as-of day keeps an in-progress month from reading as
// low attendance just because future days default to missed.
func Summarize(slots []domain.DaySlot, asOfDay int) domain.AttendanceSummary {
	counted := asOfDay
	if counted > len(slots) {
		counted = len(slots)
	}
	if counted < 0 {
		counted = 0
	}

	present := 0
	for _, slot := range slots[:counted] {
		if slot.Status == domain.StatusDelivered {
			present++
		}
	}

	absent := counted - present
	if absent < 0 {
		absent = 0
	}

	rate := 0.0
	if counted > 0 {
		rate = float64(present) / float64(counted) * 100
	}

	return domain.AttendanceSummary{
		CountedDays: counted,
		PresentDays: present,
		AbsentDays:  absent,
		Rate:        rate,
	}
}
