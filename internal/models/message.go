package models

import (
	"time"

	"gorm.io/datatypes"
)

// Attachment kinds accepted on messages.
const (
	AttachmentImage = "image"
	AttachmentVideo = "video"
	AttachmentAudio = "audio"
	AttachmentFile  = "file"
	AttachmentPost  = "post"
)

// PostRef carries an embedded help-request preview for post attachments.
type PostRef struct {
	ID         uint   `json:"id,omitempty"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty"`
	AuthorName string `json:"author_name,omitempty"`
	CoverURL   string `json:"cover_url,omitempty"`
}

// Attachment is one entry of the ordered attachment list stored as JSON
// on messages and group messages.
type Attachment struct {
	Kind    string   `json:"kind"`
	URL     string   `json:"url,omitempty"`
	Name    string   `json:"name,omitempty"`
	Mime    string   `json:"mime,omitempty"`
	Size    int64    `json:"size,omitempty"`
	PostRef *PostRef `json:"post_ref,omitempty"`
}

// Message is a direct-conversation or post-room chat message. Exactly one of
// PostID / ConversationID is set. Messages are never hard-deleted: delete-for-me
// adds a hide row, delete-for-everyone wipes the content in place.
type Message struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	PostID             *uint          `gorm:"index:idx_messages_post,priority:1" json:"post_id,omitempty"`
	ConversationID     *uint          `gorm:"index:idx_messages_conversation,priority:1" json:"conversation_id,omitempty"`
	SenderID           uint           `gorm:"index;not null" json:"sender_id"`
	Text               string         `gorm:"type:text" json:"text"`
	Attachments        datatypes.JSON `gorm:"type:json" json:"attachments,omitempty"`
	ClientID           *string        `gorm:"size:64" json:"client_id,omitempty"`
	Edited             bool           `gorm:"not null;default:false" json:"edited"`
	DeletedForEveryone bool           `gorm:"not null;default:false" json:"deleted_for_everyone"`
	CreatedAt          time.Time      `gorm:"index:idx_messages_post,priority:2;index:idx_messages_conversation,priority:2" json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
	Reads     []MessageRead     `gorm:"foreignKey:MessageID" json:"reads,omitempty"`
	Hides     []MessageHide     `gorm:"foreignKey:MessageID" json:"-"`
}

// MessageReaction records one (user, emoji) reaction. The unique index keeps
// at most one row per user and emoji so toggling is an atomic insert or delete.
type MessageReaction struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID uint      `gorm:"uniqueIndex:idx_reaction_user_emoji,priority:1;not null" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_reaction_user_emoji,priority:2;not null" json:"user_id"`
	Emoji     string    `gorm:"size:16;uniqueIndex:idx_reaction_user_emoji,priority:3;not null" json:"emoji"`
	CreatedAt time.Time `json:"-"`
}

// MessageRead is a direct-chat read receipt. The sender's row is inserted
// together with the message itself.
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	MessageID uint      `gorm:"uniqueIndex:idx_read_message_user,priority:1;not null" json:"-"`
	UserID    uint      `gorm:"uniqueIndex:idx_read_message_user,priority:2;not null" json:"user_id"`
	CreatedAt time.Time `json:"-"`
}

// MessageHide marks a message as deleted-for-me for one user.
type MessageHide struct {
	ID        uint `gorm:"primaryKey"`
	MessageID uint `gorm:"uniqueIndex:idx_hide_message_user,priority:1;not null"`
	UserID    uint `gorm:"uniqueIndex:idx_hide_message_user,priority:2;not null"`
	CreatedAt time.Time
}

// Conversation pairs two users. ParticipantsKey is the sorted "a:b" pair key
// whose unique index makes get-or-create idempotent under races.
type Conversation struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserAID         uint      `gorm:"index;not null" json:"user_a_id"`
	UserBID         uint      `gorm:"index;not null" json:"user_b_id"`
	ParticipantsKey string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `gorm:"index" json:"updated_at"`
}

// PeerOf returns the other participant of the conversation.
func (c Conversation) PeerOf(userID uint) uint {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// Contains reports whether the user participates in the conversation.
func (c Conversation) Contains(userID uint) bool {
	return c.UserAID == userID || c.UserBID == userID
}
