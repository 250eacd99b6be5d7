package dto

import (
	"time"

	"github.com/sahayata/sahayata-api/internal/models"
)

// ConversationResponse is one entry of the conversation list, annotated with
// the peer summary and the caller's unread count.
type ConversationResponse struct {
	ID          uint        `json:"id"`
	Peer        UserSummary `json:"peer"`
	UnreadCount int64       `json:"unread_count"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// NewConversationResponse builds the list entry for one conversation.
func NewConversationResponse(conversation models.Conversation, peer UserSummary, unread int64) ConversationResponse {
	return ConversationResponse{
		ID:          conversation.ID,
		Peer:        peer,
		UnreadCount: unread,
		CreatedAt:   conversation.CreatedAt,
		UpdatedAt:   conversation.UpdatedAt,
	}
}

// MarkReadResponse reports how many messages gained a read receipt.
type MarkReadResponse struct {
	ConversationID uint  `json:"conversation_id"`
	Updated        int64 `json:"updated"`
}
