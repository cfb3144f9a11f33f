package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shop/backend/internal/domain/exchange"
	"github.com/shop/backend/internal/domain/shared"
	"github.com/shop/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	defaultSessionPageSize = 20
	maxSessionPageSize     = 100
)

// GormImportSessionRepository implements exchange.SessionRepository using GORM
type GormImportSessionRepository struct {
	db *gorm.DB
}

// NewGormImportSessionRepository creates a new GormImportSessionRepository
func NewGormImportSessionRepository(db *gorm.DB) *GormImportSessionRepository {
	return &GormImportSessionRepository{db: db}
}

// FindByID finds a session by its ID
func (r *GormImportSessionRepository) FindByID(ctx context.Context, id uuid.UUID) (*exchange.ImportSession, error) {
	var model models.ImportSessionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActive returns the non-terminal session of importType
func (r *GormImportSessionRepository) FindActive(ctx context.Context, importType exchange.ImportType) (*exchange.ImportSession, error) {
	var model models.ImportSessionModel
	if err := r.db.WithContext(ctx).
		Where("import_type = ? AND status IN ?", importType, exchange.ActiveStatuses).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindActiveUpdatedBefore returns non-terminal sessions without progress since before
func (r *GormImportSessionRepository) FindActiveUpdatedBefore(ctx context.Context, before time.Time) ([]exchange.ImportSession, error) {
	var rows []models.ImportSessionModel
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", exchange.ActiveStatuses, before).
		Order("updated_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSessions(rows), nil
}

// CountActiveByType returns the number of non-terminal sessions per import type
func (r *GormImportSessionRepository) CountActiveByType(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ImportType string
		Count      int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.ImportSessionModel{}).
		Select("import_type, COUNT(*) AS count").
		Where("status IN ?", exchange.ActiveStatuses).
		Group("import_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ImportType] = row.Count
	}
	return counts, nil
}

// List returns one page of sessions, newest first unless the filter sorts
// otherwise, and the total match count
func (r *GormImportSessionRepository) List(ctx context.Context, filter exchange.SessionFilter) ([]exchange.ImportSession, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportSessionModel{})
	if filter.ImportType != "" {
		query = query.Where("import_type = ?", filter.ImportType)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSessionPageSize
	}
	if pageSize > maxSessionPageSize {
		pageSize = maxSessionPageSize
	}

	var rows []models.ImportSessionModel
	if err := query.
		Order(sessionOrder(filter)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toSessions(rows), total, nil
}

// Create inserts a session. The partial unique index on active sessions
// turns a concurrent second start into shared.ErrAlreadyExists.
func (r *GormImportSessionRepository) Create(ctx context.Context, s *exchange.ImportSession) error {
	model := models.ImportSessionModelFromDomain(s)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(model).Error
	})
	return translateError(err)
}

// Save writes the session guarded by its version
func (r *GormImportSessionRepository) Save(ctx context.Context, s *exchange.ImportSession) error {
	model := models.ImportSessionModelFromDomain(s)
	result := r.db.WithContext(ctx).
		Model(&models.ImportSessionModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version).
		Updates(map[string]any{
			"status":         model.Status,
			"started_at":     model.StartedAt,
			"finished_at":    model.FinishedAt,
			"report":         model.Report,
			"report_details": model.ReportDetails,
			"error_message":  model.ErrorMessage,
			"updated_at":     s.UpdatedAt,
			"version":        s.Version + 1,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.ImportSessionModel{}).
			Where("id = ?", s.ID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	s.IncrementVersion()
	return nil
}

// MarkCancelRequested raises the cooperative cancel flag of an active session
func (r *GormImportSessionRepository) MarkCancelRequested(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.ImportSessionModel{}).
		Where("id = ? AND status IN ?", id, exchange.ActiveStatuses).
		Update("cancel_requested", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: session %s is finished", shared.ErrInvalidState, id)
	}
	return nil
}

// IsCancelRequested reads the durable cancel flag
func (r *GormImportSessionRepository) IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	var flags []bool
	if err := r.db.WithContext(ctx).
		Model(&models.ImportSessionModel{}).
		Where("id = ?", id).
		Pluck("cancel_requested", &flags).Error; err != nil {
		return false, err
	}
	if len(flags) == 0 {
		return false, shared.ErrNotFound
	}
	return flags[0], nil
}

func toSessions(rows []models.ImportSessionModel) []exchange.ImportSession {
	sessions := make([]exchange.ImportSession, len(rows))
	for i := range rows {
		sessions[i] = *rows[i].ToDomain()
	}
	return sessions
}

// Ensure GormImportSessionRepository implements SessionRepository
var _ exchange.SessionRepository = (*GormImportSessionRepository)(nil)
