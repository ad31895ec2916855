package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkgerr "github.com/pkg/errors"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/pkg/common"
	"gorm.io/gorm"
)

// GormUserRepository is the GORM implementation of UserRepository
type GormUserRepository struct {
	db *gorm.DB
}

func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

func (r *GormUserRepository) Create(ctx context.Context, u *domain.User) error {
	if u.ID == 0 {
		u.ID = common.UUIDint64()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	err := r.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("email %s already registered: %w", u.Email, domain.ErrConflict)
	}
	return pkgerr.Wrap(err, "create user")
}

func (r *GormUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, pkgerr.Wrapf(err, "query user %d", id)
	}
	return &u, nil
}

func (r *GormUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	email = strings.ToLower(strings.TrimSpace(email))
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
	}
	if err != nil {
		return nil, pkgerr.Wrapf(err, "query user %s", email)
	}
	return &u, nil
}

func (r *GormUserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return pkgerr.Wrap(r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error, "update last login")
}

func (r *GormUserRepository) Update(ctx context.Context, u *domain.User) error {
	return pkgerr.Wrapf(r.db.WithContext(ctx).Save(u).Error, "update user %d", u.ID)
}
