package repository

import (
	"context"
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"gorm.io/gorm"
)

// GormAuditLogRepository is the GORM implementation of AuditLogRepository
type GormAuditLogRepository struct {
	db *gorm.DB
}

func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

func (r *GormAuditLogRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	if log.ID == 0 {
		log.ID = common.UUIDint64()
	}
	if log.At.IsZero() {
		log.At = time.Now()
	}
	return pkgerr.Wrap(r.db.WithContext(ctx).Create(log).Error, "create audit log")
}

func (r *GormAuditLogRepository) List(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []domain.AuditLog
	err := r.db.WithContext(ctx).Order("at DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, pkgerr.Wrap(err, "query audit log")
}

func (r *GormAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("at < ?", before).Delete(&domain.AuditLog{})
	return res.RowsAffected, pkgerr.Wrap(res.Error, "purge audit log")
}
