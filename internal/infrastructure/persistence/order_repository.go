package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/domain/trade"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements trade.OrderRepository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

func (r *GormOrderRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	})
}

// FindByID finds an order by its ID
func (r *GormOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.withItems(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByNumber finds an order by its storefront number
func (r *GormOrderRepository) FindByNumber(ctx context.Context, number int64) (*trade.Order, error) {
	var model models.OrderModel
	if err := r.withItems(ctx).Where("number = ?", number).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnsent returns orders the ERP has not acknowledged yet
func (r *GormOrderRepository) FindUnsent(ctx context.Context, filter trade.UnsentFilter) ([]trade.Order, error) {
	query := r.withItems(ctx).Where("sent_to_1c = ?", false)
	if len(filter.Exclude) > 0 {
		query = query.Where("id NOT IN ?", filter.Exclude)
	}
	if filter.SkipCancelled {
		query = query.Where("status <> ?", trade.OrderStatusCancelled)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var rows []models.OrderModel
	if err := query.Order("number ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	orders := make([]trade.Order, len(rows))
	for i := range rows {
		orders[i] = *rows[i].ToDomain()
	}
	return orders, nil
}

// Create inserts an order with its items
func (r *GormOrderRepository) Create(ctx context.Context, o *trade.Order) error {
	model := &models.OrderModel{}
	model.FromDomain(o)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	return translateError(err)
}

// SaveERPFields writes only the columns owned by the ERP exchange
func (r *GormOrderRepository) SaveERPFields(ctx context.Context, o *trade.Order) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", o.ID).
		Updates(map[string]any{
			"status":               o.Status,
			"status_1c":            o.Status1C,
			"status_1c_updated_at": o.Status1CUpdatedAt,
			"paid_at":              o.PaidAt,
			"shipped_at":           o.ShippedAt,
			"updated_at":           o.UpdatedAt,
			"version":              o.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// MarkSent flags unsent orders among ids as sent
func (r *GormOrderRepository) MarkSent(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	at = at.UTC()
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id IN ? AND sent_to_1c = ?", ids, false).
		Updates(map[string]any{
			"sent_to_1c":    true,
			"sent_to_1c_at": at,
			"updated_at":    at,
			"version":       gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Ensure GormOrderRepository implements OrderRepository
var _ trade.OrderRepository = (*GormOrderRepository)(nil)
