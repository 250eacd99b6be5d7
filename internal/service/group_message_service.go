package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/models"
	"github.com/sahayata/sahayata-api/internal/observability"
	"github.com/sahayata/sahayata-api/internal/ratelimit"
	"github.com/sahayata/sahayata-api/internal/repository"
)

// GroupMessageService exposes group chat: membership-guarded sends with
// retry de-duplication and rate caps, paged history and the read cursor.
type GroupMessageService interface {
	Send(ctx context.Context, senderID, groupID uint, payload dto.GroupMessageSendRequest) (dto.GroupMessageResponse, error)
	ListPage(ctx context.Context, viewerID, groupID uint, page, pageSize int) ([]dto.GroupMessageResponse, error)
	MarkRead(ctx context.Context, userID, groupID uint) (dto.GroupReadResponse, error)
	Unread(ctx context.Context, userID, groupID uint) (dto.GroupUnreadResponse, error)
}

type groupMessageService struct {
	groups      repository.GroupRepository
	messages    repository.GroupMessageRepository
	readStates  repository.GroupReadStateRepository
	users       repository.UserRepository
	limiter     *ratelimit.Limiter
	broadcaster Broadcaster
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	now         func() time.Time
}

// NewGroupMessageService constructs a group message service.
func NewGroupMessageService(
	groups repository.GroupRepository,
	messages repository.GroupMessageRepository,
	readStates repository.GroupReadStateRepository,
	users repository.UserRepository,
	limiter *ratelimit.Limiter,
	broadcaster Broadcaster,
	validate *validator.Validate,
	logger zerolog.Logger,
) GroupMessageService {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("br")

	return &groupMessageService{
		groups:      groups,
		messages:    messages,
		readStates:  readStates,
		users:       users,
		limiter:     limiter,
		broadcaster: broadcaster,
		validator:   validate,
		logger:      logger.With().Str("component", "group_message_service").Logger(),
		tracer:      otel.Tracer("github.com/sahayata/sahayata-api/internal/service/group_message"),
		sanitizer:   policy,
		now:         time.Now,
	}
}

func sendKey(groupID, userID uint) string {
	return fmt.Sprintf("g:%d:u:%d", groupID, userID)
}

// Send persists a group message. Retried sends carrying the same client id
// resolve to the already-stored row via the unique-constraint catch, so the
// operation is idempotent even under concurrent duplicate submission. Only
// accepted sends count against the rate windows.
func (s *groupMessageService) Send(ctx context.Context, senderID, groupID uint, payload dto.GroupMessageSendRequest) (dto.GroupMessageResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupMessageResponse{}, err
	}

	if err := s.requireMember(ctx, groupID, senderID); err != nil {
		return dto.GroupMessageResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(payload.Text))
	attachments := sanitizeAttachments(payload.Attachments)
	if text == "" && len(attachments) == 0 {
		return dto.GroupMessageResponse{}, ErrEmptyMessage
	}

	clientID := strings.TrimSpace(payload.ClientID)

	// Fast path for retries that already landed.
	if clientID != "" {
		if existing, err := s.messages.FindByClientID(ctx, groupID, clientID); err == nil {
			return s.respond(ctx, existing)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.GroupMessageResponse{}, err
		}
	}

	if err := s.limiter.Allow(ctx, sendKey(groupID, senderID)); err != nil {
		var throttled *ratelimit.ThrottledError
		if errors.As(err, &throttled) {
			observability.ThrottledSends().Inc()
		}
		return dto.GroupMessageResponse{}, err
	}

	spanCtx, span := s.tracer.Start(ctx, "group_message.send", trace.WithAttributes(
		attribute.Int64("group.id", int64(groupID)),
		attribute.Int64("message.sender_id", int64(senderID)),
	))
	defer span.End()

	if payload.ReplyToID != nil {
		target, err := s.messages.Get(spanCtx, *payload.ReplyToID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.GroupMessageResponse{}, ErrInvalidReply
			}
			return dto.GroupMessageResponse{}, err
		}
		if target.GroupID != groupID {
			return dto.GroupMessageResponse{}, ErrInvalidReply
		}
	}

	encoded, err := encodeAttachments(attachments)
	if err != nil {
		span.RecordError(err)
		return dto.GroupMessageResponse{}, err
	}

	message := models.GroupMessage{
		GroupID:     groupID,
		SenderID:    senderID,
		Text:        text,
		Attachments: encoded,
		ReplyToID:   payload.ReplyToID,
	}
	if clientID != "" {
		message.ClientID = &clientID
	}

	if err := s.messages.Create(spanCtx, &message); err != nil {
		// A concurrent retry won the insert; resolve to its row.
		if clientID != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.messages.FindByClientID(spanCtx, groupID, clientID)
			if findErr != nil {
				return dto.GroupMessageResponse{}, findErr
			}
			return s.respond(spanCtx, existing)
		}
		span.RecordError(err)
		return dto.GroupMessageResponse{}, err
	}

	if err := s.limiter.Record(spanCtx, sendKey(groupID, senderID)); err != nil {
		s.logger.Warn().Err(err).Uint("group_id", groupID).Msg("failed to record rate-limit hit")
	}
	if err := s.groups.TouchLastMessage(spanCtx, groupID, message.CreatedAt); err != nil {
		s.logger.Warn().Err(err).Uint("group_id", groupID).Msg("failed to bump group last message time")
	}

	if message.ReplyToID != nil {
		if full, err := s.messages.Get(spanCtx, message.ID); err == nil {
			message = full
		}
	}

	response, err := s.respond(spanCtx, message)
	if err != nil {
		return dto.GroupMessageResponse{}, err
	}

	observability.MessagesSent().WithLabelValues("group").Inc()
	s.broadcaster.Emit(GroupRoom(groupID), dto.EventGroupMessage, response)

	return response, nil
}

func (s *groupMessageService) ListPage(ctx context.Context, viewerID, groupID uint, page, pageSize int) ([]dto.GroupMessageResponse, error) {
	if err := s.requireMember(ctx, groupID, viewerID); err != nil {
		return nil, err
	}

	messages, err := s.messages.ListPage(ctx, groupID, page, pageSize)
	if err != nil {
		return nil, err
	}

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

	out := make([]dto.GroupMessageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, dto.NewGroupMessageResponse(message, dto.NewUserSummary(senders[message.SenderID])))
	}
	return out, nil
}

// MarkRead moves the caller's read cursor to now.
func (s *groupMessageService) MarkRead(ctx context.Context, userID, groupID uint) (dto.GroupReadResponse, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return dto.GroupReadResponse{}, err
	}

	at := s.now().UTC()
	if err := s.readStates.Upsert(ctx, groupID, userID, at); err != nil {
		return dto.GroupReadResponse{}, err
	}
	return dto.GroupReadResponse{GroupID: groupID, LastReadAt: at}, nil
}

// Unread counts messages created strictly after the caller's read cursor,
// or after the epoch when the group was never read.
func (s *groupMessageService) Unread(ctx context.Context, userID, groupID uint) (dto.GroupUnreadResponse, error) {
	if err := s.requireMember(ctx, groupID, userID); err != nil {
		return dto.GroupUnreadResponse{}, err
	}

	since := time.Unix(0, 0).UTC()
	state, err := s.readStates.Get(ctx, groupID, userID)
	if err == nil {
		since = state.LastReadAt
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.GroupUnreadResponse{}, err
	}

	count, err := s.messages.CountAfter(ctx, groupID, since)
	if err != nil {
		return dto.GroupUnreadResponse{}, err
	}
	return dto.GroupUnreadResponse{GroupID: groupID, UnreadCount: count}, nil
}

func (s *groupMessageService) requireMember(ctx context.Context, groupID, userID uint) error {
	member, err := s.groups.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		if _, err := s.groups.Get(ctx, groupID); err != nil {
			return err
		}
		return ErrNotMember
	}
	return nil
}

func (s *groupMessageService) respond(ctx context.Context, message models.GroupMessage) (dto.GroupMessageResponse, error) {
	sender, err := s.users.Get(ctx, message.SenderID)
	if err != nil {
		return dto.GroupMessageResponse{}, err
	}
	return dto.NewGroupMessageResponse(message, dto.NewUserSummary(sender)), nil
}
