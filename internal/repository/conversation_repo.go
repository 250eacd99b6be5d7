package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sahayata/sahayata-api/internal/models"
)

// ConversationRepository maps user pairs to their stable conversation row.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB uint) (models.Conversation, error)
	Get(ctx context.Context, id uint) (models.Conversation, error)
	ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error)
	UnreadCount(ctx context.Context, conversationID, viewerID uint) (int64, error)
	Touch(ctx context.Context, id uint, at time.Time) error
}

type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository constructs a GORM-backed conversation directory.
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

// PairKey builds the stable sorted key for a user pair.
func PairKey(userA, userB uint) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return fmt.Sprintf("%d:%d", userA, userB)
}

// GetOrCreate upserts on the unique participants key. Two concurrent
// first-contact calls both land on the same row: the losing insert is a
// no-op and the follow-up fetch returns the winner.
func (r *conversationRepository) GetOrCreate(ctx context.Context, userA, userB uint) (models.Conversation, error) {
	a, b := userA, userB
	if a > b {
		a, b = b, a
	}

	conversation := models.Conversation{
		UserAID:         a,
		UserBID:         b,
		ParticipantsKey: PairKey(a, b),
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "participants_key"}},
			DoNothing: true,
		}).
		Create(&conversation).Error
	if err != nil {
		return models.Conversation{}, err
	}

	var out models.Conversation
	if err := r.db.WithContext(ctx).Where("participants_key = ?", conversation.ParticipantsKey).First(&out).Error; err != nil {
		return models.Conversation{}, err
	}
	return out, nil
}

func (r *conversationRepository) Get(ctx context.Context, id uint) (models.Conversation, error) {
	var conversation models.Conversation
	if err := r.db.WithContext(ctx).First(&conversation, id).Error; err != nil {
		return models.Conversation{}, err
	}
	return conversation, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("updated_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, err
	}
	return conversations, nil
}

// UnreadCount counts messages the viewer has not seen: sent by the peer,
// not wiped, not hidden for the viewer, and without a read receipt.
func (r *conversationRepository) UnreadCount(ctx context.Context, conversationID, viewerID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM messages m
		WHERE m.conversation_id = ?
		  AND m.sender_id <> ?
		  AND m.deleted_for_everyone = false
		  AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?)
		  AND NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = m.id AND h.user_id = ?)
	`, conversationID, viewerID, viewerID, viewerID).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *conversationRepository) Touch(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}
