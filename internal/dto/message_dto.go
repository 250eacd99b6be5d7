package dto

import (
	"encoding/json"
	"time"

	"github.com/sahayata/sahayata-api/internal/models"
)

// DeletedPlaceholder is what clients render in place of a message that was
// deleted for everyone. The row is kept so thread structure survives.
const DeletedPlaceholder = "This message was deleted"

// UserSummary is the compact sender/peer representation embedded in responses.
type UserSummary struct {
	ID     uint   `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// NewUserSummary converts a directory user into its summary form.
func NewUserSummary(user models.User) UserSummary {
	return UserSummary{ID: user.ID, Name: user.Name, Avatar: user.Avatar}
}

// PostRefPayload is the embedded help-request preview on a post attachment.
type PostRefPayload struct {
	ID         uint   `json:"id" validate:"required"`
	Title      string `json:"title" validate:"omitempty,max=255"`
	Status     string `json:"status" validate:"omitempty,max=32"`
	AuthorName string `json:"author_name" validate:"omitempty,max=120"`
	CoverURL   string `json:"cover_url" validate:"omitempty,max=512"`
}

// AttachmentPayload is one attachment entry supplied by a client.
type AttachmentPayload struct {
	Kind    string          `json:"kind" validate:"required,max=16"`
	URL     string          `json:"url" validate:"omitempty,max=1024"`
	Name    string          `json:"name" validate:"omitempty,max=255"`
	Mime    string          `json:"mime" validate:"omitempty,max=128"`
	Size    int64           `json:"size" validate:"omitempty,min=0"`
	PostRef *PostRefPayload `json:"post_ref" validate:"omitempty"`
}

// MessageSendRequest is the payload for direct and post-room sends.
// Text and attachments may not both be empty.
type MessageSendRequest struct {
	Text        string              `json:"text" validate:"omitempty,max=4000"`
	Attachments []AttachmentPayload `json:"attachments" validate:"omitempty,max=10,dive"`
	ClientID    string              `json:"client_id" validate:"omitempty,max=64"`
}

// MessageEditRequest updates the text of an existing message.
type MessageEditRequest struct {
	Text string `json:"text" validate:"required,min=1,max=4000"`
}

// ReactionRequest toggles one emoji reaction on a message.
type ReactionRequest struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

// ReactionView is one (user, emoji) pair on a message.
type ReactionView struct {
	UserID uint   `json:"user_id"`
	Emoji  string `json:"emoji"`
}

// MessageResponse is the serialized form of a direct or post-room message.
// Deleted-for-everyone messages come back with empty content, Deleted=true
// and a placeholder text so clients keep thread structure intact.
type MessageResponse struct {
	ID             uint                `json:"id"`
	PostID         *uint               `json:"post_id,omitempty"`
	ConversationID *uint               `json:"conversation_id,omitempty"`
	Sender         UserSummary         `json:"sender"`
	Text           string              `json:"text"`
	Attachments    []models.Attachment `json:"attachments,omitempty"`
	ClientID       string              `json:"client_id,omitempty"`
	Edited         bool                `json:"edited"`
	Deleted        bool                `json:"deleted"`
	Reactions      []ReactionView      `json:"reactions,omitempty"`
	ReadBy         []uint              `json:"read_by,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// NewMessageResponse converts a message model plus sender summary into a DTO.
func NewMessageResponse(message models.Message, sender UserSummary) MessageResponse {
	response := MessageResponse{
		ID:             message.ID,
		PostID:         message.PostID,
		ConversationID: message.ConversationID,
		Sender:         sender,
		Text:           message.Text,
		Edited:         message.Edited,
		Deleted:        message.DeletedForEveryone,
		CreatedAt:      message.CreatedAt,
		UpdatedAt:      message.UpdatedAt,
	}

	if message.ClientID != nil {
		response.ClientID = *message.ClientID
	}

	if message.DeletedForEveryone {
		response.Text = DeletedPlaceholder
	} else {
		response.Attachments = DecodeAttachments(message.Attachments)
	}

	for _, reaction := range message.Reactions {
		response.Reactions = append(response.Reactions, ReactionView{UserID: reaction.UserID, Emoji: reaction.Emoji})
	}
	for _, read := range message.Reads {
		response.ReadBy = append(response.ReadBy, read.UserID)
	}

	return response
}

// DecodeAttachments unmarshals the JSON attachment column. Corrupt payloads
// degrade to no attachments instead of failing the whole response.
func DecodeAttachments(raw []byte) []models.Attachment {
	if len(raw) == 0 {
		return nil
	}
	var attachments []models.Attachment
	if err := json.Unmarshal(raw, &attachments); err != nil {
		return nil
	}
	return attachments
}
