package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/repository"
)

// ConversationService exposes the conversation directory use-cases.
type ConversationService interface {
	StartOrGet(ctx context.Context, userID, recipientID uint) (dto.ConversationResponse, error)
	List(ctx context.Context, userID uint) ([]dto.ConversationResponse, error)
	MarkRead(ctx context.Context, userID, conversationID uint) (dto.MarkReadResponse, error)
}

type conversationService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	users         repository.UserRepository
	broadcaster   Broadcaster
	logger        zerolog.Logger
	tracer        trace.Tracer
}

// NewConversationService constructs a conversation service.
func NewConversationService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	broadcaster Broadcaster,
	logger zerolog.Logger,
) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		broadcaster:   broadcaster,
		logger:        logger.With().Str("component", "conversation_service").Logger(),
		tracer:        otel.Tracer("github.com/sahayata/sahayata-api/internal/service/conversation"),
	}
}

// StartOrGet resolves the stable conversation for a user pair, creating it
// on first contact. Safe to call concurrently from both sides.
func (s *conversationService) StartOrGet(ctx context.Context, userID, recipientID uint) (dto.ConversationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "conversation.start_or_get", trace.WithAttributes(
		attribute.Int64("conversation.user_id", int64(userID)),
		attribute.Int64("conversation.recipient_id", int64(recipientID)),
	))
	defer span.End()

	recipient, err := s.users.Get(spanCtx, recipientID)
	if err != nil {
		span.RecordError(err)
		return dto.ConversationResponse{}, err
	}

	conversation, err := s.conversations.GetOrCreate(spanCtx, userID, recipientID)
	if err != nil {
		span.RecordError(err)
		return dto.ConversationResponse{}, err
	}

	unread, err := s.conversations.UnreadCount(spanCtx, conversation.ID, userID)
	if err != nil {
		return dto.ConversationResponse{}, err
	}

	return dto.NewConversationResponse(conversation, dto.NewUserSummary(recipient), unread), nil
}

// List returns the caller's conversations newest-activity first, annotated
// with peer summaries and unread counts.
func (s *conversationService) List(ctx context.Context, userID uint) ([]dto.ConversationResponse, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	peerIDs := make([]uint, 0, len(conversations))
	for _, conversation := range conversations {
		peerIDs = append(peerIDs, conversation.PeerOf(userID))
	}

	peers, err := s.users.Summaries(ctx, peerIDs)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ConversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		unread, err := s.conversations.UnreadCount(ctx, conversation.ID, userID)
		if err != nil {
			return nil, err
		}
		peer := dto.NewUserSummary(peers[conversation.PeerOf(userID)])
		out = append(out, dto.NewConversationResponse(conversation, peer, unread))
	}
	return out, nil
}

// MarkRead adds the caller's read receipt to every unread peer message in
// the conversation. The room is notified only when something changed, so
// repeated calls do not turn into notification storms.
func (s *conversationService) MarkRead(ctx context.Context, userID, conversationID uint) (dto.MarkReadResponse, error) {
	conversation, err := s.conversations.Get(ctx, conversationID)
	if err != nil {
		return dto.MarkReadResponse{}, err
	}
	if !conversation.Contains(userID) {
		return dto.MarkReadResponse{}, ErrNotParticipant
	}

	updated, err := s.messages.MarkConversationRead(ctx, conversationID, userID)
	if err != nil {
		return dto.MarkReadResponse{}, err
	}

	if updated > 0 {
		s.broadcaster.Emit(ConversationRoom(conversationID), dto.EventMessagesRead, dto.MessagesReadNotice{
			ConversationID: conversationID,
			ReaderID:       userID,
			Updated:        updated,
		})
		s.logger.Debug().
			Uint("conversation_id", conversationID).
			Uint("reader_id", userID).
			Int64("updated", updated).
			Time("at", time.Now().UTC()).
			Msg("conversation marked read")
	}

	return dto.MarkReadResponse{ConversationID: conversationID, Updated: updated}, nil
}
