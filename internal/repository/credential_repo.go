package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// CredentialRepository stores sign-in identities.
type CredentialRepository interface {
	Create(ctx context.Context, credential *models.Credential) error
	GetByEmail(ctx context.Context, email string) (models.Credential, error)
	GetByGoogleSubject(ctx context.Context, subject string) (models.Credential, error)
	UpdatePassword(ctx context.Context, uid, hash string) error
	Delete(ctx context.Context, uid string) error
}

type credentialRepository struct {
	db *gorm.DB
}

// NewCredentialRepository constructs a credential repository.
func NewCredentialRepository(db *gorm.DB) CredentialRepository {
	return &credentialRepository{db: db}
}

func (r *credentialRepository) Create(ctx context.Context, credential *models.Credential) error {
	return r.db.WithContext(ctx).Create(credential).Error
}

func (r *credentialRepository) GetByEmail(ctx context.Context, email string) (models.Credential, error) {
	var credential models.Credential
	err := r.db.WithContext(ctx).First(&credential, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	return credential, err
}

func (r *credentialRepository) GetByGoogleSubject(ctx context.Context, subject string) (models.Credential, error) {
	var credential models.Credential
	err := r.db.WithContext(ctx).First(&credential, "google_subject = ?", subject).Error
	return credential, err
}

func (r *credentialRepository) UpdatePassword(ctx context.Context, uid, hash string) error {
	result := r.db.WithContext(ctx).Model(&models.Credential{}).Where("uid = ?", uid).Update("password_hash", hash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, uid string) error {
	return r.db.WithContext(ctx).Delete(&models.Credential{}, "uid = ?", uid).Error
}
