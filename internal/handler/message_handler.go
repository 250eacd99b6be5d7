package handler

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/service"
	"github.com/sahayata/sahayata-api/internal/utils"
)

// MessageHandler provides HTTP endpoints for post-room and direct messages.
type MessageHandler struct {
	service   service.MessageService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewMessageHandler constructs a handler instance.
func NewMessageHandler(service service.MessageService, validator *validator.Validate, logger zerolog.Logger) *MessageHandler {
	return &MessageHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "message_handler").Logger(),
	}
}

// RegisterPostRoutes binds the post chat-room routes.
func (h *MessageHandler) RegisterPostRoutes(router fiber.Router) {
	router.Get("/:id/messages", h.listPostMessages)
	router.Post("/:id/messages", h.sendToPost)
	router.Delete("/:id/messages", h.clearPostMessages)
}

// RegisterMessageRoutes binds the per-message routes.
func (h *MessageHandler) RegisterMessageRoutes(router fiber.Router) {
	router.Patch("/:id", h.edit)
	router.Delete("/:id", h.delete)
	router.Post("/:id/reactions", h.toggleReaction)
}

func (h *MessageHandler) sendToPost(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	postID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SendToPost(withRequestContext(c), userID, postID, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", response)
}

func (h *MessageHandler) listPostMessages(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	postID, err := parseUintParam(c, "id")
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

	messages, err := h.service.ListPostPage(withRequestContext(c), userID, postID, page, pageSize)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *MessageHandler) clearPostMessages(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	postID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)
	switch deleteMode(c) {
	case "all":
		err = h.service.ClearPostForEveryone(ctx, postID)
	default:
		err = h.service.ClearPostForMe(ctx, userID, postID)
	}
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages cleared", nil)
}

func (h *MessageHandler) edit(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessageEditRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Edit(withRequestContext(c), userID, messageID, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "message updated", response)
}

func (h *MessageHandler) delete(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := withRequestContext(c)
	switch deleteMode(c) {
	case "all":
		err = h.service.DeleteForEveryone(ctx, userID, messageID)
	default:
		err = h.service.DeleteForMe(ctx, userID, messageID)
	}
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "message deleted", nil)
}

func (h *MessageHandler) toggleReaction(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	messageID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.ReactionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	reactions, err := h.service.ToggleReaction(withRequestContext(c), userID, messageID, payload.Emoji)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "reactions", reactions)
}

// deleteMode reads the delete scope from the query string. Anything other
// than "all" hides the target for the caller only.
func deleteMode(c *fiber.Ctx) string {
	return strings.ToLower(strings.TrimSpace(c.Query("mode")))
}
