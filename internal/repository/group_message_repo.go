package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sahayata/sahayata-api/internal/models"
)

// GroupMessageRepository persists group chat messages. Create surfaces
// gorm.ErrDuplicatedKey when the (group, client_id) unique index fires, so
// callers can resolve retried sends to the pre-existing row.
type GroupMessageRepository interface {
	Create(ctx context.Context, message *models.GroupMessage) error
	Get(ctx context.Context, id uint) (models.GroupMessage, error)
	FindByClientID(ctx context.Context, groupID uint, clientID string) (models.GroupMessage, error)
	ListPage(ctx context.Context, groupID uint, page, pageSize int) ([]models.GroupMessage, error)
	CountAfter(ctx context.Context, groupID uint, after time.Time) (int64, error)
}

type groupMessageRepository struct {
	db *gorm.DB
}

// NewGroupMessageRepository constructs a GORM-backed group message store.
func NewGroupMessageRepository(db *gorm.DB) GroupMessageRepository {
	return &groupMessageRepository{db: db}
}

func (r *groupMessageRepository) Create(ctx context.Context, message *models.GroupMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *groupMessageRepository) Get(ctx context.Context, id uint) (models.GroupMessage, error) {
	var message models.GroupMessage
	err := r.db.WithContext(ctx).
		Preload("ReplyTo").
		First(&message, id).Error
	if err != nil {
		return models.GroupMessage{}, err
	}
	return message, nil
}

func (r *groupMessageRepository) FindByClientID(ctx context.Context, groupID uint, clientID string) (models.GroupMessage, error) {
	var message models.GroupMessage
	err := r.db.WithContext(ctx).
		Preload("ReplyTo").
		Where("group_id = ? AND client_id = ?", groupID, clientID).
		First(&message).Error
	if err != nil {
		return models.GroupMessage{}, err
	}
	return message, nil
}

// ListPage returns the requested newest-first page reversed to chronological
// order, with reply references resolved one level deep.
func (r *groupMessageRepository) ListPage(ctx context.Context, groupID uint, page, pageSize int) ([]models.GroupMessage, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}

	var messages []models.GroupMessage
	err := r.db.WithContext(ctx).
		Preload("ReplyTo").
		Where("group_id = ?", groupID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (r *groupMessageRepository) CountAfter(ctx context.Context, groupID uint, after time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GroupMessage{}).
		Where("group_id = ? AND created_at > ?", groupID, after).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
