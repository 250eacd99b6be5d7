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
	"github.com/sahayata/sahayata-api/internal/repository"
)

// GroupService exposes topic-group coordination: create, discovery,
// membership, help pledges and creator-managed metadata.
type GroupService interface {
	Create(ctx context.Context, creatorID uint, payload dto.GroupCreateRequest) (dto.GroupResponse, error)
	List(ctx context.Context, userID uint, query dto.GroupListQuery) ([]dto.GroupResponse, error)
	Recommended(ctx context.Context, userID uint, limit int) ([]dto.GroupResponse, error)
	Get(ctx context.Context, id uint) (dto.GroupResponse, error)
	Join(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error)
	Leave(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error)
	Pledge(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error)
	Unpledge(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error)
	UpdateMeta(ctx context.Context, groupID, userID uint, payload dto.GroupMetaUpdateRequest) (dto.GroupResponse, error)
}

type groupService struct {
	groups      repository.GroupRepository
	broadcaster Broadcaster
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
}

// NewGroupService constructs a group service.
func NewGroupService(groups repository.GroupRepository, broadcaster Broadcaster, validate *validator.Validate, logger zerolog.Logger) GroupService {
	policy := bluemonday.UGCPolicy()

	return &groupService{
		groups:      groups,
		broadcaster: broadcaster,
		validator:   validate,
		logger:      logger.With().Str("component", "group_service").Logger(),
		tracer:      otel.Tracer("github.com/sahayata/sahayata-api/internal/service/group"),
		sanitizer:   policy,
	}
}

func (s *groupService) Create(ctx context.Context, creatorID uint, payload dto.GroupCreateRequest) (dto.GroupResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, err
	}

	name := strings.TrimSpace(s.sanitizer.Sanitize(payload.Name))
	if name == "" {
		return dto.GroupResponse{}, ErrEmptyMessage
	}

	category := strings.TrimSpace(payload.Category)
	if category == "" {
		category = "General"
	}

	spanCtx, span := s.tracer.Start(ctx, "group.create", trace.WithAttributes(
		attribute.Int64("group.creator_id", int64(creatorID)),
	))
	defer span.End()

	group := models.Group{
		Name:         name,
		Description:  strings.TrimSpace(s.sanitizer.Sanitize(payload.Description)),
		Category:     category,
		ProblemTitle: strings.TrimSpace(s.sanitizer.Sanitize(payload.ProblemTitle)),
		Status:       models.GroupStatusOpen,
		CreatedByID:  creatorID,
	}

	if err := s.groups.Create(spanCtx, &group); err != nil {
		span.RecordError(err)
		return dto.GroupResponse{}, err
	}
	group.Members = []models.GroupMember{{GroupID: group.ID, UserID: creatorID}}

	s.logger.Info().Uint("group_id", group.ID).Uint("creator_id", creatorID).Msg("group created")
	return dto.NewGroupResponse(group), nil
}

func (s *groupService) List(ctx context.Context, userID uint, query dto.GroupListQuery) ([]dto.GroupResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, err
	}

	filter := repository.GroupFilter{
		Query:    query.Q,
		Category: query.Category,
		Limit:    query.Limit,
	}
	if query.OnlyJoined {
		filter.OnlyJoined = &userID
	}

	groups, err := s.groups.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewGroupResponseSlice(groups), nil
}

func (s *groupService) Recommended(ctx context.Context, userID uint, limit int) ([]dto.GroupResponse, error) {
	groups, err := s.groups.Recommended(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewGroupResponseSlice(groups), nil
}

func (s *groupService) Get(ctx context.Context, id uint) (dto.GroupResponse, error) {
	group, err := s.groups.Get(ctx, id)
	if err != nil {
		return dto.GroupResponse{}, err
	}
	return dto.NewGroupResponse(group), nil
}

// Join enrolls the user; joining twice is a no-op.
func (s *groupService) Join(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error) {
	if _, err := s.groups.Get(ctx, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.groups.AddMember(ctx, groupID, userID); err != nil {
		return dto.GroupResponse{}, err
	}
	return s.Get(ctx, groupID)
}

func (s *groupService) Leave(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error) {
	if _, err := s.groups.Get(ctx, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.groups.RemoveMember(ctx, groupID, userID); err != nil {
		return dto.GroupResponse{}, err
	}
	return s.Get(ctx, groupID)
}

// Pledge marks the user as a helper for the group's problem. Pledging does
// not require membership.
func (s *groupService) Pledge(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error) {
	if _, err := s.groups.Get(ctx, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.groups.AddPledge(ctx, groupID, userID); err != nil {
		return dto.GroupResponse{}, err
	}
	return s.Get(ctx, groupID)
}

func (s *groupService) Unpledge(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error) {
	if _, err := s.groups.Get(ctx, groupID); err != nil {
		return dto.GroupResponse{}, err
	}
	if err := s.groups.RemovePledge(ctx, groupID, userID); err != nil {
		return dto.GroupResponse{}, err
	}
	return s.Get(ctx, groupID)
}

// UpdateMeta applies creator-only metadata changes and announces the new
// state to the group room.
func (s *groupService) UpdateMeta(ctx context.Context, groupID, userID uint, payload dto.GroupMetaUpdateRequest) (dto.GroupResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.GroupResponse{}, err
	}

	group, err := s.groups.Get(ctx, groupID)
	if err != nil {
		return dto.GroupResponse{}, err
	}
	if group.CreatedByID != userID {
		return dto.GroupResponse{}, ErrNotCreator
	}

	updates := make(map[string]interface{})
	if payload.Status != nil {
		status := strings.TrimSpace(*payload.Status)
		if !validGroupStatus(status) {
			return dto.GroupResponse{}, ErrInvalidStatus
		}
		updates["status"] = status
	}
	if payload.ProblemTitle != nil {
		updates["problem_title"] = strings.TrimSpace(s.sanitizer.Sanitize(*payload.ProblemTitle))
	}
	if payload.Description != nil {
		updates["description"] = strings.TrimSpace(s.sanitizer.Sanitize(*payload.Description))
	}

	if len(updates) > 0 {
		if err := s.groups.UpdateMeta(ctx, groupID, updates); err != nil {
			return dto.GroupResponse{}, err
		}
	}

	response, err := s.Get(ctx, groupID)
	if err != nil {
		return dto.GroupResponse{}, err
	}

	s.broadcaster.Emit(GroupRoom(groupID), dto.EventGroupUpdate, response)
	return response, nil
}

func validGroupStatus(status string) bool {
	for _, candidate := range models.GroupStatuses {
		if candidate == status {
			return true
		}
	}
	return false
}
