package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/milkroute/ledger/internal/delivery/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.DeliveryRecord) error {
	// Full-row replace on conflict, not a field merge. CreatedAt keeps the
	// original value so identity history survives overwrites.
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "customer_id"}, {Name: "delivery_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"quantity",
			"delivery_time",
			"photo_ref",
			"notes",
			"recorded_by",
		}),
	}).Create(record).Error
}

func (r *repo) FindByKey(ctx context.Context, db *gorm.DB, customerID snowflake.ID, date time.Time) (*domain.DeliveryRecord, error) {
	var record domain.DeliveryRecord
	err := db.WithContext(ctx).
		Where("customer_id = ? AND delivery_date = ?", customerID, domain.DateOnly(date)).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) ListPeriod(ctx context.Context, db *gorm.DB, customerID snowflake.ID, from, to time.Time) ([]domain.DeliveryRecord, error) {
	var records []domain.DeliveryRecord
	err := db.WithContext(ctx).
		Where("customer_id = ? AND delivery_date >= ? AND delivery_date <= ?",
			customerID, domain.DateOnly(from), domain.DateOnly(to)).
		Order("delivery_date asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.DeliveryRecord, error) {
	var records []domain.DeliveryRecord
	err := db.WithContext(ctx).
		Order("customer_id asc, delivery_date asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) DeleteByCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) error {
	return db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Delete(&domain.DeliveryRecord{}).Error
}
