package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// UserFilter narrows admin user listings.
type UserFilter struct {
	Role   string
	Search string
	Limit  int
}

// UserRepository manages storefront profiles.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUID(ctx context.Context, uid string) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, error)
	Save(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, uid, role string) error
	TouchLastSeen(ctx context.Context, uid string, at time.Time) error
	Delete(ctx context.Context, uid string) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository constructs a profile repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *userRepository) GetByUID(ctx context.Context, uid string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "uid = ?", uid).Error
	return user, err
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	return user, err
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var users []models.User
	err := query.Order("created_at DESC").Find(&users).Error
	return users, err
}

func (r *userRepository) Save(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *userRepository) UpdateRole(ctx context.Context, uid, role string) error {
	result := r.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).Update("role", role)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) TouchLastSeen(ctx context.Context, uid string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("uid = ?", uid).UpdateColumn("last_seen", at).Error
}

func (r *userRepository) Delete(ctx context.Context, uid string) error {
	result := r.db.WithContext(ctx).Delete(&models.User{}, "uid = ?", uid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
