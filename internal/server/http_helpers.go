package server

import (
	"errors"
	"net/http"

	"type-royale/internal/game"
	"type-royale/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrForbidden):
		return http.StatusUnauthorized
	case errors.Is(err, game.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrFull),
		errors.Is(err, game.ErrAlreadyStarted),
		errors.Is(err, game.ErrWrongState),
		errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain failures to a status and a client-safe message.
func writeError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.FullPath()).Msg(fallback)
		_ = c.Error(err)
		message = fallback
	case http.StatusNotFound:
		message = "game not found"
		if errors.Is(err, game.ErrNotFound) && !errors.Is(err, store.ErrNotFound) {
			message = "player not found"
		}
	case http.StatusConflict:
		if errors.Is(err, store.ErrConflict) {
			message = "game is busy, try again"
		}
	}
	c.JSON(status, gin.H{"error": message})
}
