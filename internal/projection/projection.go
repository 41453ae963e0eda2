package projection

import (
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	customerdomain "github.com/milkroute/ledger/internal/customer/domain"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
)

// Projection is the in-memory read view kept consistent with the store by
// the Applier. One writer (the applier goroutine), many readers; readers get
// copies, never interior references. It has no authority over the store; on
// disagreement the recovery path is a full Refresh, not a local heuristic.
type Projection struct {
	mu         sync.RWMutex
	customers  map[snowflake.ID]customerdomain.Customer
	deliveries map[snowflake.ID]map[string]deliverydomain.DeliveryRecord
	payments   map[snowflake.ID]map[string]billingdomain.PaymentLedgerEntry
}

func NewProjection() *Projection {
	p := &Projection{}
	p.reset()
	return p
}

func (p *Projection) reset() {
	p.customers = make(map[snowflake.ID]customerdomain.Customer)
	p.deliveries = make(map[snowflake.ID]map[string]deliverydomain.DeliveryRecord)
	p.payments = make(map[snowflake.ID]map[string]billingdomain.PaymentLedgerEntry)
}

func (p *Projection) Customer(id snowflake.ID) (customerdomain.Customer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	customer, ok := p.customers[id]
	return customer, ok
}

func (p *Projection) Customers() []customerdomain.Customer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	customers := make([]customerdomain.Customer, 0, len(p.customers))
	for _, customer := range p.customers {
		customers = append(customers, customer)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })
	return customers
}

// DeliveryRecord looks up one record by its natural key.
func (p *Projection) DeliveryRecord(customerID snowflake.ID, date time.Time) (deliverydomain.DeliveryRecord, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	record, ok := p.deliveries[customerID][deliverydomain.DateOnly(date).Format(time.DateOnly)]
	return record, ok
}

func (p *Projection) DeliveryRecordsFor(customerID snowflake.ID) []deliverydomain.DeliveryRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rows := p.deliveries[customerID]
	records := make([]deliverydomain.DeliveryRecord, 0, len(rows))
	for _, record := range rows {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DeliveryDate.Before(records[j].DeliveryDate)
	})
	return records
}

func (p *Projection) PaymentEntry(customerID snowflake.ID, month, year int) (billingdomain.PaymentLedgerEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key := billingdomain.EntryKey(customerID, month, year)
	entry, ok := p.payments[customerID][key]
	return entry, ok
}

func (p *Projection) PaymentEntriesFor(customerID snowflake.ID) []billingdomain.PaymentLedgerEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()
	rows := p.payments[customerID]
	entries := make([]billingdomain.PaymentLedgerEntry, 0, len(rows))
	for _, entry := range rows {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Year != entries[j].Year {
			return entries[i].Year < entries[j].Year
		}
		return entries[i].Month < entries[j].Month
	})
	return entries
}

func (p *Projection) upsertCustomer(customer customerdomain.Customer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.customers[customer.ID] = customer
}

// deleteCustomer cascades: dependents referencing the customer go with it.
func (p *Projection) deleteCustomer(id snowflake.ID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.customers, id)
	delete(p.deliveries, id)
	delete(p.payments, id)
}

func (p *Projection) upsertDelivery(record deliverydomain.DeliveryRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := p.deliveries[record.CustomerID]
	if rows == nil {
		rows = make(map[string]deliverydomain.DeliveryRecord)
		p.deliveries[record.CustomerID] = rows
	}
	rows[record.DeliveryDate.UTC().Format(time.DateOnly)] = record
}

func (p *Projection) deleteDelivery(customerID snowflake.ID, dateKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.deliveries[customerID], dateKey)
}

func (p *Projection) upsertPayment(entry billingdomain.PaymentLedgerEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := p.payments[entry.CustomerID]
	if rows == nil {
		rows = make(map[string]billingdomain.PaymentLedgerEntry)
		p.payments[entry.CustomerID] = rows
	}
	rows[entry.Key()] = entry
}

func (p *Projection) deletePayment(customerID snowflake.ID, key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.payments[customerID], key)
}

// replaceAll atomically swaps in a freshly loaded state.
func (p *Projection) replaceAll(
	customers []customerdomain.Customer,
	records []deliverydomain.DeliveryRecord,
	entries []billingdomain.PaymentLedgerEntry,
) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	for _, customer := range customers {
		p.customers[customer.ID] = customer
	}
	for _, record := range records {
		rows := p.deliveries[record.CustomerID]
		if rows == nil {
			rows = make(map[string]deliverydomain.DeliveryRecord)
			p.deliveries[record.CustomerID] = rows
		}
		rows[record.DeliveryDate.UTC().Format(time.DateOnly)] = record
	}
	for _, entry := range entries {
		rows := p.payments[entry.CustomerID]
		if rows == nil {
			rows = make(map[string]billingdomain.PaymentLedgerEntry)
			p.payments[entry.CustomerID] = rows
		}
		rows[entry.Key()] = entry
	}
}
