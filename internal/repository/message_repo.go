package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sahayata/sahayata-api/internal/models"
)

// MessageRepository persists direct-conversation and post-room messages with
// their reaction, read-receipt and hide sets. Set mutations are expressed as
// single atomic statements so concurrent requests cannot lose updates.
type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	Get(ctx context.Context, id uint) (models.Message, error)
	ListByPost(ctx context.Context, postID, viewerID uint, page, pageSize int) ([]models.Message, error)
	ListByConversation(ctx context.Context, conversationID, viewerID uint, page, pageSize int) ([]models.Message, error)
	UpdateText(ctx context.Context, id uint, text string) error
	ToggleReaction(ctx context.Context, messageID, userID uint, emoji string) (added bool, err error)
	ListReactions(ctx context.Context, messageID uint) ([]models.MessageReaction, error)
	Hide(ctx context.Context, messageID, userID uint) error
	Wipe(ctx context.Context, id uint) error
	HideAllInPost(ctx context.Context, postID, userID uint) error
	WipeAllInPost(ctx context.Context, postID uint) error
	MarkConversationRead(ctx context.Context, conversationID, readerID uint) (int64, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository constructs a GORM-backed message store.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create inserts the message together with the sender's implicit read receipt
// and, for direct messages, bumps the conversation's recency in one
// transaction.
func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		read := models.MessageRead{MessageID: message.ID, UserID: message.SenderID}
		if err := tx.Create(&read).Error; err != nil {
			return err
		}

		if message.ConversationID != nil {
			return tx.Model(&models.Conversation{}).
				Where("id = ?", *message.ConversationID).
				UpdateColumn("updated_at", message.CreatedAt).Error
		}
		return nil
	})
}

func (r *messageRepository) Get(ctx context.Context, id uint) (models.Message, error) {
	var message models.Message
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		Preload("Reads").
		First(&message, id).Error
	if err != nil {
		return models.Message{}, err
	}
	return message, nil
}

func (r *messageRepository) ListByPost(ctx context.Context, postID, viewerID uint, page, pageSize int) ([]models.Message, error) {
	return r.listPage(ctx, r.db.WithContext(ctx).Where("post_id = ?", postID), viewerID, page, pageSize)
}

func (r *messageRepository) ListByConversation(ctx context.Context, conversationID, viewerID uint, page, pageSize int) ([]models.Message, error) {
	return r.listPage(ctx, r.db.WithContext(ctx).Where("conversation_id = ?", conversationID), viewerID, page, pageSize)
}

// listPage returns the requested newest-first page reversed to chronological
// order. Messages the viewer deleted for themselves are filtered out here;
// wiped messages stay in so thread structure survives.
func (r *messageRepository) listPage(ctx context.Context, query *gorm.DB, viewerID uint, page, pageSize int) ([]models.Message, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 50 {
		pageSize = 50
	}

	var messages []models.Message
	err := query.
		Where("NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = messages.id AND h.user_id = ?)", viewerID).
		Preload("Reactions").
		Preload("Reads").
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

func (r *messageRepository) UpdateText(ctx context.Context, id uint, text string) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"text": text, "edited": true}).Error
}

// ToggleReaction inserts the (message, user, emoji) row, and when the row
// already exists removes it instead. The unique index keeps the pair single
// under concurrent toggles.
func (r *messageRepository) ToggleReaction(ctx context.Context, messageID, userID uint, emoji string) (bool, error) {
	reaction := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}, {Name: "emoji"}},
			DoNothing: true,
		}).
		Create(&reaction)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{}).Error
	return false, err
}

func (r *messageRepository) ListReactions(ctx context.Context, messageID uint) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, err
	}
	return reactions, nil
}

func (r *messageRepository) Hide(ctx context.Context, messageID, userID uint) error {
	hide := models.MessageHide{MessageID: messageID, UserID: userID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&hide).Error
}

// Wipe clears content for everyone. Already-wiped rows are left alone so the
// operation stays idempotent.
func (r *messageRepository) Wipe(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND deleted_for_everyone = false", id).
		Updates(map[string]interface{}{
			"deleted_for_everyone": true,
			"text":                 "",
			"attachments":          nil,
		}).Error
}

func (r *messageRepository) HideAllInPost(ctx context.Context, postID, userID uint) error {
	return r.db.WithContext(ctx).Exec(`
		INSERT INTO message_hides (message_id, user_id, created_at)
		SELECT m.id, ?, CURRENT_TIMESTAMP FROM messages m WHERE m.post_id = ?
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, userID, postID).Error
}

func (r *messageRepository) WipeAllInPost(ctx context.Context, postID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("post_id = ? AND deleted_for_everyone = false", postID).
		Updates(map[string]interface{}{
			"deleted_for_everyone": true,
			"text":                 "",
			"attachments":          nil,
		}).Error
}

// MarkConversationRead inserts read receipts for every unread, visible peer
// message in one statement and reports how many rows it added.
func (r *messageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID uint) (int64, error) {
	result := r.db.WithContext(ctx).Exec(`
		INSERT INTO message_reads (message_id, user_id, created_at)
		SELECT m.id, ?, CURRENT_TIMESTAMP FROM messages m
		WHERE m.conversation_id = ?
		  AND m.sender_id <> ?
		  AND m.deleted_for_everyone = false
		  AND NOT EXISTS (SELECT 1 FROM message_hides h WHERE h.message_id = m.id AND h.user_id = ?)
		  AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`, readerID, conversationID, readerID, readerID, readerID)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
