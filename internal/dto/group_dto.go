package dto

import (
	"time"

	"github.com/sahayata/sahayata-api/internal/models"
)

// GroupCreateRequest creates a new topic group. The creator becomes the
// first member.
type GroupCreateRequest struct {
	Name         string `json:"name" validate:"required,min=1,max=255"`
	Description  string `json:"description" validate:"omitempty,max=2000"`
	Category     string `json:"category" validate:"omitempty,max=64"`
	ProblemTitle string `json:"problem_title" validate:"omitempty,max=255"`
}

// GroupListQuery filters the group listing.
type GroupListQuery struct {
	Q          string `query:"q" validate:"omitempty,max=255"`
	Category   string `query:"category" validate:"omitempty,max=64"`
	OnlyJoined bool   `query:"only_joined"`
	Limit      int    `query:"limit" validate:"omitempty,min=1,max=100"`
}

// GroupMetaUpdateRequest changes group metadata. Nil fields stay untouched.
// Status values are checked against the group status enum in the service.
type GroupMetaUpdateRequest struct {
	Status       *string `json:"status" validate:"omitempty,max=32"`
	ProblemTitle *string `json:"problem_title" validate:"omitempty,max=255"`
	Description  *string `json:"description" validate:"omitempty,max=2000"`
}

// GroupResponse is the serialized group with membership and pledge sets.
type GroupResponse struct {
	ID               uint       `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Category         string     `json:"category"`
	ProblemTitle     string     `json:"problem_title,omitempty"`
	Status           string     `json:"status"`
	CreatedByID      uint       `json:"created_by_id"`
	MemberIDs        []uint     `json:"member_ids,omitempty"`
	PledgedHelperIDs []uint     `json:"pledged_helper_ids,omitempty"`
	MemberCount      int        `json:"member_count"`
	LastMessageAt    *time.Time `json:"last_message_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// NewGroupResponse converts a group model, including preloaded member and
// pledge rows when present.
func NewGroupResponse(group models.Group) GroupResponse {
	response := GroupResponse{
		ID:            group.ID,
		Name:          group.Name,
		Description:   group.Description,
		Category:      group.Category,
		ProblemTitle:  group.ProblemTitle,
		Status:        group.Status,
		CreatedByID:   group.CreatedByID,
		LastMessageAt: group.LastMessageAt,
		CreatedAt:     group.CreatedAt,
		UpdatedAt:     group.UpdatedAt,
	}

	for _, member := range group.Members {
		response.MemberIDs = append(response.MemberIDs, member.UserID)
	}
	for _, pledge := range group.Pledges {
		response.PledgedHelperIDs = append(response.PledgedHelperIDs, pledge.UserID)
	}
	response.MemberCount = len(response.MemberIDs)

	return response
}

// NewGroupResponseSlice converts a slice of group models.
func NewGroupResponseSlice(groups []models.Group) []GroupResponse {
	out := make([]GroupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, NewGroupResponse(group))
	}
	return out
}

// GroupMessageSendRequest posts a message into a group room.
type GroupMessageSendRequest struct {
	Text        string              `json:"text" validate:"omitempty,max=4000"`
	Attachments []AttachmentPayload `json:"attachments" validate:"omitempty,max=10,dive"`
	ReplyToID   *uint               `json:"reply_to_id" validate:"omitempty"`
	ClientID    string              `json:"client_id" validate:"omitempty,max=64"`
}

// ReplyPreview is the one-level-deep view of the message being replied to.
type ReplyPreview struct {
	ID       uint   `json:"id"`
	SenderID uint   `json:"sender_id"`
	Text     string `json:"text"`
}

// GroupMessageResponse is the serialized form of a group message.
type GroupMessageResponse struct {
	ID          uint                `json:"id"`
	GroupID     uint                `json:"group_id"`
	Sender      UserSummary         `json:"sender"`
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	ReplyTo     *ReplyPreview       `json:"reply_to,omitempty"`
	ClientID    string              `json:"client_id,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewGroupMessageResponse converts a group message model. The reply preview
// is resolved only one level deep.
func NewGroupMessageResponse(message models.GroupMessage, sender UserSummary) GroupMessageResponse {
	response := GroupMessageResponse{
		ID:          message.ID,
		GroupID:     message.GroupID,
		Sender:      sender,
		Text:        message.Text,
		Attachments: DecodeAttachments(message.Attachments),
		CreatedAt:   message.CreatedAt,
	}

	if message.ClientID != nil {
		response.ClientID = *message.ClientID
	}
	if message.ReplyTo != nil {
		response.ReplyTo = &ReplyPreview{
			ID:       message.ReplyTo.ID,
			SenderID: message.ReplyTo.SenderID,
			Text:     message.ReplyTo.Text,
		}
	}

	return response
}

// GroupReadResponse confirms a read-cursor update.
type GroupReadResponse struct {
	GroupID    uint      `json:"group_id"`
	LastReadAt time.Time `json:"last_read_at"`
}

// GroupUnreadResponse carries the unread count for one group.
type GroupUnreadResponse struct {
	GroupID     uint  `json:"group_id"`
	UnreadCount int64 `json:"unread_count"`
}
