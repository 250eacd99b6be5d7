package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/sahayata/sahayata-api/internal/middleware"
	"github.com/sahayata/sahayata-api/internal/ratelimit"
	"github.com/sahayata/sahayata-api/internal/service"
	"github.com/sahayata/sahayata-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parseUintParam(c *fiber.Ctx, key string) (uint, error) {
	value := strings.TrimSpace(c.Params(key))
	if value == "" {
		return 0, fmt.Errorf("%s required", key)
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(parsed), nil
}

func userIDFromContext(c *fiber.Ctx) uint {
	id, _ := middleware.CurrentUserID(c)
	return id
}

func withRequestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// respondServiceError maps service-layer failures onto HTTP responses so
// every handler reports the same statuses for the same conditions. Unexpected
// failures are logged with the request correlation id and answered with a
// generic message.
func respondServiceError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var throttled *ratelimit.ThrottledError
	if errors.As(err, &throttled) {
		retryAfter := throttled.RetryAfterSeconds()
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return utils.SendErrorWithData(c, fiber.StatusTooManyRequests, err.Error(), fiber.Map{
			"retry_after": retryAfter,
		})
	}

	switch {
	case isValidationError(err),
		errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrInvalidReaction),
		errors.Is(err, service.ErrInvalidReply),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrMessageDeleted):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotSender),
		errors.Is(err, service.ErrNotMember),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotCreator):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "not found")
	default:
		requestLogger(logger, c).Error().Err(err).
			Str("path", c.Path()).
			Msg("unexpected service error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
