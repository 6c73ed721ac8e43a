package server

import (
	"errors"
	"io"
	"net/http"

	"type-royale/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

type bindMessages map[string]map[string]string

type roomURI struct {
	ID string `uri:"id" binding:"required,roomcode"`
}

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be omitted.
func bindOptionalJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil {
		if errors.Is(err, io.EOF) {
			return true
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": resolveBindError(err, messages, fallback)})
		return false
	}
	return true
}

// bindRoom resolves the :id path parameter. Malformed codes are reported as a
// missing game.
func bindRoom(c *gin.Context) (string, bool) {
	var uri roomURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return "", false
	}
	return game.NormalizeRoomCode(uri.ID), true
}

func bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return false
	}
	return true
}

func resolveBindError(err error, messages bindMessages, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			if fieldMsgs, ok := messages[verr.Field()]; ok {
				if msg, ok := fieldMsgs[verr.Tag()]; ok {
					return msg
				}
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "invalid request"
}
