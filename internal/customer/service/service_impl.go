package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/milkroute/ledger/internal/billing/domain"
	"github.com/milkroute/ledger/internal/changefeed"
	"github.com/milkroute/ledger/internal/customer/domain"
	deliverydomain "github.com/milkroute/ledger/internal/delivery/domain"
	"github.com/milkroute/ledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Repo         domain.Repository
	DeliveryRepo deliverydomain.Repository
	BillingRepo  billingdomain.Repository
	Feed         changefeed.Feed
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	repo         domain.Repository
	deliveryRepo deliverydomain.Repository
	billingRepo  billingdomain.Repository
	feed         changefeed.Feed
}

func New(p Params) domain.Service {
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("customer.service"),
		genID:        p.GenID,
		repo:         p.Repo,
		deliveryRepo: p.DeliveryRepo,
		billingRepo:  p.BillingRepo,
		feed:         p.Feed,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	address := strings.TrimSpace(req.Address)
	if address == "" {
		return domain.Customer{}, domain.ErrInvalidAddress
	}

	if req.DefaultQuantity.IsNegative() {
		return domain.Customer{}, domain.ErrInvalidQuantity
	}

	now := time.Now().UTC()
	customer := domain.Customer{
		ID:              s.genID.Generate(),
		Name:            name,
		Address:         address,
		Phone:           strings.TrimSpace(req.Phone),
		DefaultQuantity: req.DefaultQuantity,
		Metadata:        datatypes.JSONMap{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		return domain.Customer{}, err
	}

	s.feed.Publish(ctx, changefeed.Event{
		Op:    changefeed.OpInsert,
		Table: changefeed.TableCustomer,
		Key:   customer.Key(),
		Row:   customer,
	})

	return customer, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	if req.ID == 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return domain.Customer{}, err
	}
	if existing == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return domain.Customer{}, domain.ErrInvalidAddress
	}
	if req.DefaultQuantity.IsNegative() {
		return domain.Customer{}, domain.ErrInvalidQuantity
	}

	existing.Name = name
	existing.Address = address
	existing.Phone = strings.TrimSpace(req.Phone)
	existing.DefaultQuantity = req.DefaultQuantity
	existing.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, existing); err != nil {
		return domain.Customer{}, err
	}

	s.feed.Publish(ctx, changefeed.Event{
		Op:    changefeed.OpUpdate,
		Table: changefeed.TableCustomer,
		Key:   existing.Key(),
		Row:   *existing,
	})

	return *existing, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Customer, error) {
	if id == 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}

	customer, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if customer == nil {
		return domain.Customer{}, domain.ErrNotFound
	}

	return *customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  pageSize,
	})
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(customer *domain.Customer) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        customer.ID.String(),
			CreatedAt: customer.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	resp := domain.ListCustomerResponse{Customers: customers}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}

func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	existing, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}

	// Referential integrity is this service's job: the ledger rows go in the
	// same transaction as the customer.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.deliveryRepo.DeleteByCustomer(ctx, tx, id); err != nil {
			return err
		}
		if err := s.billingRepo.DeleteByCustomer(ctx, tx, id); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	// A single customer delete event is enough; the projection cascades the
	// dependent rows from the customer key.
	s.feed.Publish(ctx, changefeed.Event{
		Op:    changefeed.OpDelete,
		Table: changefeed.TableCustomer,
		Key:   existing.Key(),
		Row:   *existing,
	})

	s.log.Info("customer deleted",
		zap.String("customer_id", id.String()),
	)

	return nil
}
