package handler

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/service"
	"github.com/sahayata/sahayata-api/internal/utils"
)

// GroupHandler provides HTTP endpoints for help groups and their chat.
type GroupHandler struct {
	groups    service.GroupService
	messages  service.GroupMessageService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewGroupHandler constructs a handler instance.
func NewGroupHandler(groups service.GroupService, messages service.GroupMessageService, validator *validator.Validate, logger zerolog.Logger) *GroupHandler {
	return &GroupHandler{
		groups:    groups,
		messages:  messages,
		validator: validator,
		logger:    logger.With().Str("component", "group_handler").Logger(),
	}
}

// Register binds the group routes.
func (h *GroupHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/recommended", h.recommended)
	router.Get("/:id", h.get)
	router.Patch("/:id", h.updateMeta)
	router.Post("/:id/join", h.join)
	router.Post("/:id/leave", h.leave)
	router.Post("/:id/pledge", h.pledge)
	router.Delete("/:id/pledge", h.unpledge)

	router.Get("/:id/messages", h.listMessages)
	router.Post("/:id/messages", h.sendMessage)
	router.Post("/:id/read", h.markRead)
	router.Get("/:id/unread", h.unread)
}

func (h *GroupHandler) create(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload dto.GroupCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.groups.Create(withRequestContext(c), userID, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "group created", response)
}

func (h *GroupHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var query dto.GroupListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query")
	}

	groups, err := h.groups.List(withRequestContext(c), userID, query)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "groups", groups)
}

func (h *GroupHandler) recommended(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	groups, err := h.groups.Recommended(withRequestContext(c), userID, limit)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "recommended groups", groups)
}

func (h *GroupHandler) get(c *fiber.Ctx) error {
	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	group, err := h.groups.Get(withRequestContext(c), groupID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "group", group)
}

func (h *GroupHandler) updateMeta(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GroupMetaUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.groups.UpdateMeta(withRequestContext(c), groupID, userID, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "group updated", response)
}

func (h *GroupHandler) join(c *fiber.Ctx) error {
	return h.membership(c, h.groups.Join, "joined group")
}

func (h *GroupHandler) leave(c *fiber.Ctx) error {
	return h.membership(c, h.groups.Leave, "left group")
}

func (h *GroupHandler) pledge(c *fiber.Ctx) error {
	return h.membership(c, h.groups.Pledge, "pledged to help")
}

func (h *GroupHandler) unpledge(c *fiber.Ctx) error {
	return h.membership(c, h.groups.Unpledge, "pledge withdrawn")
}

func (h *GroupHandler) membership(c *fiber.Ctx, op func(ctx context.Context, groupID, userID uint) (dto.GroupResponse, error), message string) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := op(withRequestContext(c), groupID, userID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, message, response)
}

func (h *GroupHandler) sendMessage(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.GroupMessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.messages.Send(withRequestContext(c), userID, groupID, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", response)
}

func (h *GroupHandler) listMessages(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	messages, err := h.messages.ListPage(withRequestContext(c), userID, groupID, page, pageSize)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *GroupHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.messages.MarkRead(withRequestContext(c), userID, groupID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "group read", response)
}

func (h *GroupHandler) unread(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	groupID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.messages.Unread(withRequestContext(c), userID, groupID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "unread count", response)
}
