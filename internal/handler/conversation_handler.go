package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/service"
	"github.com/sahayata/sahayata-api/internal/utils"
)

type conversationStartRequest struct {
	RecipientID uint `json:"recipient_id" validate:"required,min=1"`
}

// ConversationHandler provides HTTP endpoints for direct conversations.
type ConversationHandler struct {
	conversations service.ConversationService
	messages      service.MessageService
	validator     *validator.Validate
	logger        zerolog.Logger
}

// NewConversationHandler constructs a handler instance.
func NewConversationHandler(conversations service.ConversationService, messages service.MessageService, validator *validator.Validate, logger zerolog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		messages:      messages,
		validator:     validator,
		logger:        logger.With().Str("component", "conversation_handler").Logger(),
	}
}

// Register binds the conversation routes. Extra guards apply to the
// conversation-start route only.
func (h *ConversationHandler) Register(router fiber.Router, startGuards ...fiber.Handler) {
	router.Get("/", h.list)
	router.Post("/", append(startGuards, h.start)...)
	router.Get("/:id/messages", h.listMessages)
	router.Post("/:id/messages", h.send)
	router.Post("/:id/read", h.markRead)
}

func (h *ConversationHandler) start(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	var payload conversationStartRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if payload.RecipientID == userID {
		return utils.SendError(c, fiber.StatusBadRequest, "cannot start a conversation with yourself")
	}

	response, err := h.conversations.StartOrGet(withRequestContext(c), userID, payload.RecipientID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "conversation", response)
}

func (h *ConversationHandler) list(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversations, err := h.conversations.List(withRequestContext(c), userID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "conversations", conversations)
}

func (h *ConversationHandler) listMessages(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID, err := parseUintParam(c, "id")
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

	messages, err := h.messages.ListConversationPage(withRequestContext(c), userID, conversationID, page, pageSize)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "messages", messages)
}

func (h *ConversationHandler) send(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.MessageSendRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.messages.SendToConversation(withRequestContext(c), userID, conversationID, payload)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", response)
}

func (h *ConversationHandler) markRead(c *fiber.Ctx) error {
	userID := userIDFromContext(c)
	if userID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "user not authenticated")
	}

	conversationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.conversations.MarkRead(withRequestContext(c), userID, conversationID)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "conversation read", response)
}
