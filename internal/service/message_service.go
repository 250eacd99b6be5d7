package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/models"
	"github.com/sahayata/sahayata-api/internal/observability"
	"github.com/sahayata/sahayata-api/internal/repository"
)

// allowedReactions is the reaction emoji allow-list.
var allowedReactions = map[string]struct{}{
	"👍": {}, "❤️": {}, "😂": {}, "😮": {}, "😢": {}, "🙏": {},
}

// MessageService exposes direct-conversation and post-room message
// use-cases: send, paged history, edit, reactions and both delete flavours.
type MessageService interface {
	SendToPost(ctx context.Context, senderID, postID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	SendToConversation(ctx context.Context, senderID, conversationID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error)
	ListPostPage(ctx context.Context, viewerID, postID uint, page, pageSize int) ([]dto.MessageResponse, error)
	ListConversationPage(ctx context.Context, viewerID, conversationID uint, page, pageSize int) ([]dto.MessageResponse, error)
	Edit(ctx context.Context, editorID, messageID uint, payload dto.MessageEditRequest) (dto.MessageResponse, error)
	ToggleReaction(ctx context.Context, userID, messageID uint, emoji string) ([]dto.ReactionView, error)
	DeleteForMe(ctx context.Context, userID, messageID uint) error
	DeleteForEveryone(ctx context.Context, actorID, messageID uint) error
	ClearPostForMe(ctx context.Context, userID, postID uint) error
	ClearPostForEveryone(ctx context.Context, postID uint) error
}

type messageService struct {
	messages      repository.MessageRepository
	conversations repository.ConversationRepository
	posts         repository.PostRepository
	users         repository.UserRepository
	broadcaster   Broadcaster
	validator     *validator.Validate
	logger        zerolog.Logger
	tracer        trace.Tracer
	sanitizer     *bluemonday.Policy
}

// NewMessageService constructs a message service.
func NewMessageService(
	messages repository.MessageRepository,
	conversations repository.ConversationRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	broadcaster Broadcaster,
	validate *validator.Validate,
	logger zerolog.Logger,
) MessageService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &messageService{
		messages:      messages,
		conversations: conversations,
		posts:         posts,
		users:         users,
		broadcaster:   broadcaster,
		validator:     validate,
		logger:        logger.With().Str("component", "message_service").Logger(),
		tracer:        otel.Tracer("github.com/sahayata/sahayata-api/internal/service/message"),
		sanitizer:     policy,
	}
}

func (s *messageService) SendToPost(ctx context.Context, senderID, postID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if _, err := s.posts.Get(ctx, postID); err != nil {
		return dto.MessageResponse{}, err
	}
	return s.send(ctx, senderID, &postID, nil, payload)
}

func (s *messageService) SendToConversation(ctx context.Context, senderID, conversationID uint, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if !conversation.Contains(senderID) {
		return dto.MessageResponse{}, ErrNotParticipant
	}
	return s.send(ctx, senderID, nil, &conversationID, payload)
}

func (s *messageService) send(ctx context.Context, senderID uint, postID, conversationID *uint, payload dto.MessageSendRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	attachments := sanitizeAttachments(payload.Attachments)
	if text == "" && len(attachments) == 0 {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	kind := "post"
	if conversationID != nil {
		kind = "direct"
	}

	spanCtx, span := s.tracer.Start(ctx, "message.send", trace.WithAttributes(
		attribute.String("message.kind", kind),
		attribute.Int64("message.sender_id", int64(senderID)),
	))
	defer span.End()

	encoded, err := encodeAttachments(attachments)
	if err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}

	message := models.Message{
		PostID:         postID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		Attachments:    encoded,
	}
	if clientID := strings.TrimSpace(payload.ClientID); clientID != "" {
		message.ClientID = &clientID
	}

	if err := s.messages.Create(spanCtx, &message); err != nil {
		span.RecordError(err)
		return dto.MessageResponse{}, err
	}
	message.Reads = []models.MessageRead{{MessageID: message.ID, UserID: senderID}}

	sender, err := s.users.Get(spanCtx, senderID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	response := dto.NewMessageResponse(message, dto.NewUserSummary(sender))
	observability.MessagesSent().WithLabelValues(kind).Inc()

	if postID != nil {
		s.broadcaster.Emit(PostRoom(*postID), dto.EventReceiveMessage, response)
	} else {
		s.broadcaster.Emit(ConversationRoom(*conversationID), dto.EventReceivePrivate, response)
	}

	return response, nil
}

func (s *messageService) ListPostPage(ctx context.Context, viewerID, postID uint, page, pageSize int) ([]dto.MessageResponse, error) {
	messages, err := s.messages.ListByPost(ctx, postID, viewerID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, messages)
}

func (s *messageService) ListConversationPage(ctx context.Context, viewerID, conversationID uint, page, pageSize int) ([]dto.MessageResponse, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.Contains(viewerID) {
		return nil, ErrNotParticipant
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID, viewerID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, messages)
}

func (s *messageService) enrich(ctx context.Context, messages []models.Message) ([]dto.MessageResponse, error) {
	senderIDs := make([]uint, 0, len(messages))
	seen := make(map[uint]struct{}, len(messages))
	for _, message := range messages {
		if _, ok := seen[message.SenderID]; !ok {
			seen[message.SenderID] = struct{}{}
			senderIDs = append(senderIDs, message.SenderID)
		}
	}

	senders, err := s.users.Summaries(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	out := make([]dto.MessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, dto.NewMessageResponse(message, dto.NewUserSummary(senders[message.SenderID])))
	}
	return out, nil
}

// Edit rewrites the message text. Only the sender may edit, and a message
// deleted for everyone stays immutable.
func (s *messageService) Edit(ctx context.Context, editorID, messageID uint, payload dto.MessageEditRequest) (dto.MessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.MessageResponse{}, err
	}

	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return dto.MessageResponse{}, err
	}
	if message.SenderID != editorID {
		return dto.MessageResponse{}, ErrNotSender
	}
	if message.DeletedForEveryone {
		return dto.MessageResponse{}, ErrMessageDeleted
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	if text == "" {
		return dto.MessageResponse{}, ErrEmptyMessage
	}

	if err := s.messages.UpdateText(ctx, messageID, text); err != nil {
		return dto.MessageResponse{}, err
	}
	message.Text = text
	message.Edited = true

	sender, err := s.users.Get(ctx, message.SenderID)
	if err != nil {
		return dto.MessageResponse{}, err
	}

	s.emitToMessageRoom(message, dto.EventMessageEdited, dto.MessageEditedNotice{MessageID: messageID, Text: text})
	return dto.NewMessageResponse(message, dto.NewUserSummary(sender)), nil
}

// ToggleReaction adds the (user, emoji) reaction or removes it when already
// present, then announces the updated reaction set to the room.
func (s *messageService) ToggleReaction(ctx context.Context, userID, messageID uint, emoji string) ([]dto.ReactionView, error) {
	if _, ok := allowedReactions[emoji]; !ok {
		return nil, ErrInvalidReaction
	}

	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if _, err := s.messages.ToggleReaction(ctx, messageID, userID, emoji); err != nil {
		return nil, err
	}

	reactions, err := s.messages.ListReactions(ctx, messageID)
	if err != nil {
		return nil, err
	}

	views := make([]dto.ReactionView, 0, len(reactions))
	for _, reaction := range reactions {
		views = append(views, dto.ReactionView{UserID: reaction.UserID, Emoji: reaction.Emoji})
	}

	s.emitToMessageRoom(message, dto.EventMessageReacted, dto.MessageReactedNotice{MessageID: messageID, Reactions: views})
	return views, nil
}

// DeleteForMe hides the message from the caller only. Idempotent.
func (s *messageService) DeleteForMe(ctx context.Context, userID, messageID uint) error {
	if _, err := s.messages.Get(ctx, messageID); err != nil {
		return err
	}
	return s.messages.Hide(ctx, messageID, userID)
}

// DeleteForEveryone wipes the message content for all participants.
// Only the sender may do this; repeated calls are no-ops.
func (s *messageService) DeleteForEveryone(ctx context.Context, actorID, messageID uint) error {
	message, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != actorID {
		return ErrNotSender
	}
	if message.DeletedForEveryone {
		return nil
	}

	if err := s.messages.Wipe(ctx, messageID); err != nil {
		return err
	}

	s.emitToMessageRoom(message, dto.EventMessageDeleted, dto.MessageDeletedNotice{MessageID: messageID, Mode: "all"})
	return nil
}

// ClearPostForMe hides every message of a post room for the caller.
func (s *messageService) ClearPostForMe(ctx context.Context, userID, postID uint) error {
	return s.messages.HideAllInPost(ctx, postID, userID)
}

// ClearPostForEveryone wipes every message of a post room, keeping
// placeholders so the room history shows what was removed.
func (s *messageService) ClearPostForEveryone(ctx context.Context, postID uint) error {
	if err := s.messages.WipeAllInPost(ctx, postID); err != nil {
		return err
	}
	s.broadcaster.Emit(PostRoom(postID), dto.EventMessageDeleted, dto.MessageDeletedNotice{Mode: "all:post"})
	return nil
}

func (s *messageService) emitToMessageRoom(message models.Message, event string, payload interface{}) {
	switch {
	case message.PostID != nil:
		s.broadcaster.Emit(PostRoom(*message.PostID), event, payload)
	case message.ConversationID != nil:
		s.broadcaster.Emit(ConversationRoom(*message.ConversationID), event, payload)
	}
}
