package service

import (
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	"github.com/shopspring/decimal"
)

// AmountDue prices a period's delivered days: quantity × price per liter,
// falling back to the customer's default quantity when a delivered day was
// recorded without one. Missed and holiday records contribute nothing. Pure:
// no clock reads, no hidden state; adding a delivered day or raising a
// delivered quantity never lowers the result.
func AmountDue(records []deliverydomain.DeliveryRecord, defaultQuantity, pricePerLiter decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, record := range records {
		if record.Status != deliverydomain.StatusDelivered {
			continue
		}
		quantity := record.Quantity
		if !quantity.IsPositive() {
			quantity = defaultQuantity
		}
		total = total.Add(quantity.Mul(pricePerLiter))
	}
	return total
}
