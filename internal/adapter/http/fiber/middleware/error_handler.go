package middleware

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mincom-smart/chargebridge/internal/domain"
)

// ErrorHandler maps application errors onto their stable code and status.
// Wrapped causes stay in the logs; response bodies only ever carry the
// user-safe message.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if appErr, ok := domain.AsAppError(err); ok {
			if appErr.StatusCode() >= fiber.StatusInternalServerError {
				log.Error("request failed",
					zap.Int("code", appErr.Def.Code),
					zap.String("path", c.Path()),
					zap.Error(err))
			}
			return c.Status(appErr.StatusCode()).JSON(appErr.Response())
		}

		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if code == fiber.StatusInternalServerError {
			log.Error("Internal Server Error", zap.Error(err), zap.String("path", c.Path()))
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"code":    domain.ErrDefUnknown.Code,
				"msg":     domain.ErrDefUnknown.Message,
			})
		}

		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"code":    code,
			"msg":     err.Error(),
		})
	}
}
