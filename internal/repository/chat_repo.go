package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/models"
)

// ChatRepository persists support threads, their membership and messages.
type ChatRepository interface {
	CreateThread(ctx context.Context, thread *models.Thread) error
	GetThread(ctx context.Context, id string) (models.Thread, error)
	ThreadExists(ctx context.Context, id string) (bool, error)
	ListThreads(ctx context.Context) ([]models.Thread, error)
	ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error)
	ThreadIDsForUser(ctx context.Context, userID string) ([]string, error)
	IsParticipant(ctx context.Context, threadID, userID string) (bool, error)
	UpdateStatus(ctx context.Context, threadID, status string) error
	UpdateLastMessage(ctx context.Context, threadID string, message models.Message) error
	CreateMessage(ctx context.Context, message *models.Message) error
	ListMessages(ctx context.Context, threadID string) ([]models.Message, error)
	RedactMessage(ctx context.Context, threadID string, messageID uint) error
	DetachUser(ctx context.Context, threadID, userID string, redact bool) error
}

type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository constructs a chat repository backed by GORM.
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	return r.db.WithContext(ctx).Create(thread).Error
}

func (r *chatRepository) GetThread(ctx context.Context, id string) (models.Thread, error) {
	var thread models.Thread
	err := r.db.WithContext(ctx).Preload("Participants").First(&thread, "id = ?", id).Error
	return thread, err
}

func (r *chatRepository) ThreadExists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Thread{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *chatRepository) ListThreads(ctx context.Context) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&threads).Error
	return threads, err
}

func (r *chatRepository) ListThreadsForUser(ctx context.Context, userID string) ([]models.Thread, error) {
	var threads []models.Thread
	err := r.db.WithContext(ctx).
		Preload("Participants").
		Where("id IN (?)", r.db.Model(&models.ThreadParticipant{}).Select("thread_id").Where("user_id = ?", userID)).
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&threads).Error
	return threads, err
}

func (r *chatRepository) ThreadIDsForUser(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.ThreadParticipant{}).
		Where("user_id = ?", userID).
		Order("thread_id").
		Pluck("thread_id", &ids).Error
	return ids, err
}

func (r *chatRepository) IsParticipant(ctx context.Context, threadID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ThreadParticipant{}).
		Where("thread_id = ? AND user_id = ?", threadID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *chatRepository) UpdateStatus(ctx context.Context, threadID, status string) error {
	result := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ?", threadID).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *chatRepository) UpdateLastMessage(ctx context.Context, threadID string, message models.Message) error {
	result := r.db.WithContext(ctx).
		Model(&models.Thread{}).
		Where("id = ?", threadID).
		Updates(map[string]interface{}{
			"last_message_text":   message.Text,
			"last_message_sender": message.SenderID,
			"last_message_at":     message.Timestamp,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListMessages returns the thread feed ordered by sender timestamp, ties by insertion.
func (r *chatRepository) ListMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *chatRepository) RedactMessage(ctx context.Context, threadID string, messageID uint) error {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND thread_id = ?", messageID, threadID).
		Updates(map[string]interface{}{
			"deleted": true,
			"text":    models.RedactedMessageText,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DetachUser removes the user from one thread, optionally redacting what they wrote there.
// Both changes commit together so a thread is never left half processed.
func (r *chatRepository) DetachUser(ctx context.Context, threadID, userID string, redact bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("thread_id = ? AND user_id = ?", threadID, userID).
			Delete(&models.ThreadParticipant{}).Error; err != nil {
			return err
		}
		if !redact {
			return nil
		}
		if err := tx.Model(&models.Message{}).
			Where("thread_id = ? AND sender_id = ?", threadID, userID).
			Updates(map[string]interface{}{
				"deleted": true,
				"text":    models.RedactedMessageText,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Thread{}).
			Where("id = ? AND last_message_sender = ?", threadID, userID).
			Update("last_message_text", models.RedactedMessageText).Error
	})
}
