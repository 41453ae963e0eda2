package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/internal/billing/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, entry *domain.PaymentLedgerEntry) (bool, error) {
	result := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "customer_id"}, {Name: "month"}, {Name: "year"},
		},
		DoNothing: true,
	}).Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, customerID snowflake.ID, month, year int) (*domain.PaymentLedgerEntry, error) {
	var entry domain.PaymentLedgerEntry
	err := db.WithContext(ctx).
		Where("customer_id = ? AND month = ? AND year = ?", customerID, month, year).
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, entry *domain.PaymentLedgerEntry) error {
	return db.WithContext(ctx).
		Model(&domain.PaymentLedgerEntry{}).
		Where("customer_id = ? AND month = ? AND year = ?", entry.CustomerID, entry.Month, entry.Year).
		Updates(map[string]any{
			"amount_paid":  entry.AmountPaid,
			"payment_date": entry.PaymentDate,
			"notes":        entry.Notes,
			"updated_at":   entry.UpdatedAt,
		}).Error
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.PaymentLedgerEntry, error) {
	var entries []domain.PaymentLedgerEntry
	err := db.WithContext(ctx).
		Order("customer_id asc, year asc, month asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) DeleteByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&domain.PaymentLedgerEntry{}).Error
}
