package service

import (
	"time"

	"github.com/milkroute/ledger/internal/delivery/domain"
	"github.com/shopspring/decimal"
)

// BuildMonth folds the sparse record set into a dense month view: exactly one
// slot per calendar day, ascending. Days without a stored record synthesize a
// missed slot with zero quantity, uniformly for past, present and future
// days. Callers wanting newest-first presentation reverse the result.
func BuildMonth(records []domain.DeliveryRecord, month time.Month, year int) []domain.DaySlot {
	byDate := make(map[string]*domain.DeliveryRecord, len(records))
	for i := range records {
		byDate[records[i].DeliveryDate.UTC().Format(time.DateOnly)] = &records[i]
	}

	days := domain.DaysInMonth(month, year)
	slots := make([]domain.DaySlot, 0, days)
	for day := 1; day <= days; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		slot := domain.DaySlot{
			Day:      day,
			Date:     date,
			Status:   domain.StatusMissed,
			Quantity: decimal.Zero,
		}
		if record, ok := byDate[date.Format(time.DateOnly)]; ok {
			slot.Status = record.Status
			slot.Quantity = record.Quantity
			slot.Record = record
		}
		slots = append(slots, slot)
	}
	return slots
}
