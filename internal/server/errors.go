package server

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	log "github.com/sirupsen/logrus"

	"plinko/internal/game"
	"plinko/internal/prizepool"
)

// APIError is the error body of every failed request.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

var kindStatus = map[game.Kind]int{
	game.KindValidation:    fiber.StatusBadRequest,
	game.KindAuthorization: fiber.StatusForbidden,
	game.KindArithmetic:    fiber.StatusUnprocessableEntity,
	game.KindSolvency:      fiber.StatusConflict,
	game.KindLifecycle:     fiber.StatusConflict,
	game.KindInternal:      fiber.StatusInternalServerError,
}

// statusOf maps an engine error to an HTTP status and a short code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, prizepool.ErrNoPrize):
		return fiber.StatusNotFound, "no_prize"
	case errors.Is(err, game.ErrNotInitialized):
		return fiber.StatusServiceUnavailable, "not_initialized"
	case errors.Is(err, game.ErrQueueFull), errors.Is(err, game.ErrStopped):
		return fiber.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, game.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "timeout"
	}
	kind := game.KindOf(err)
	return kindStatus[kind], kind.String()
}

func errorHandler(c *fiber.Ctx, err error) error {
	var status int
	var code string

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		code = strings.ToLower(strings.ReplaceAll(utils.StatusMessage(status), " ", "_"))
	} else {
		status, code = statusOf(err)
	}

	if status >= fiber.StatusInternalServerError {
		log.WithFields(log.Fields{
			"component": "server",
			"path":      c.Path(),
			"error":     err,
		}).Error("request failed")
	}

	return c.Status(status).JSON(APIError{
		Error:   err.Error(),
		Code:    code,
		Message: err.Error(),
	})
}
