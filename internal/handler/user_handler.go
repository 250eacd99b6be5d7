package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/sahayata/sahayata-api/internal/dto"
	"github.com/sahayata/sahayata-api/internal/repository"
	"github.com/sahayata/sahayata-api/internal/utils"
)

// UserHandler exposes the read-only collaborator directory.
type UserHandler struct {
	users  repository.UserRepository
	logger zerolog.Logger
}

// NewUserHandler constructs a handler instance.
func NewUserHandler(users repository.UserRepository, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger.With().Str("component", "user_handler").Logger(),
	}
}

// Register binds the user routes.
func (h *UserHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
}

func (h *UserHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	user, err := h.users.Get(withRequestContext(c), id)
	if err != nil {
		return respondServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "user", dto.NewUserSummary(user))
}
