package server

import (
	"net/http"

	"type-royale/internal/game"

	"github.com/gin-gonic/gin"
)

type createRequest struct {
	PlayerName string          `json:"playerName" binding:"required,name"`
	Password   string          `json:"password" binding:"max=64"`
	Visibility game.Visibility `json:"visibility" binding:"omitempty,visibility"`
	MaxPlayers int             `json:"maxPlayers" binding:"omitempty,min=1"`
}

// The name is checked by Session.Join so an unknown room reports 404 first.
type joinRequest struct {
	PlayerName string `json:"playerName"`
	Password   string `json:"password" binding:"max=64"`
}

type hostRequest struct {
	PlayerID string `json:"playerId"`
}

type playerRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
}

type settingsRequest struct {
	PlayerID   string           `json:"playerId"`
	MaxPlayers *int             `json:"maxPlayers" binding:"omitempty,min=1"`
	Visibility *game.Visibility `json:"visibility" binding:"omitempty,visibility"`
	Password   *string          `json:"password" binding:"omitempty,max=64"`
}

type updatePlayerRequest struct {
	PlayerID string            `json:"playerId" binding:"required"`
	Updates  game.PlayerUpdate `json:"updates"`
}

type rematchRequest struct {
	PlayerID string `json:"playerId" binding:"required"`
	Vote     *bool  `json:"vote" binding:"required"`
}

type deleteQuery struct {
	PlayerID string `form:"playerId"`
}

var nameMessages = bindMessages{
	"PlayerName": {
		"required": "player name is required",
		"name":     "player name must be 1-20 letters, digits or simple punctuation",
	},
	"Password": {
		"max": "password must be 64 characters or fewer",
	},
	"Visibility": {
		"visibility": "visibility must be public or private",
	},
	"MaxPlayers": {
		"min": "max players must be at least 1",
	},
}

var playerMessages = bindMessages{
	"PlayerID": {
		"required": "playerId is required",
	},
	"Vote": {
		"required": "vote is required",
	},
}

func (s *Server) handleCreateGame(c *gin.Context) {
	if !s.enforceRateLimit(c, "create") {
		return
	}
	var req createRequest
	if !bindJSON(c, &req, nameMessages, "invalid game settings") {
		return
	}
	sess, playerID, err := s.createSession(c.Request.Context(), createParams{
		PlayerName: req.PlayerName,
		Password:   req.Password,
		Visibility: req.Visibility,
		MaxPlayers: req.MaxPlayers,
	})
	if err != nil {
		writeError(c, err, "failed to create game")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"roomId":   sess.ID,
		"playerId": playerID,
		"game":     sess.Snapshot(),
	})
}

func (s *Server) handleListGames(c *gin.Context) {
	summaries, err := s.listSessions(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to list games")
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": summaries})
}

func (s *Server) handleGetGame(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	sess, err := s.loadSession(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err, "failed to load game")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleJoinGame(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	if !s.enforceRateLimit(c, "join") {
		return
	}
	var req joinRequest
	if !bindJSON(c, &req, nameMessages, "invalid join request") {
		return
	}
	sess, playerID, err := s.joinSession(c.Request.Context(), roomID, req.PlayerName, req.Password)
	if err != nil {
		writeError(c, err, "failed to join game")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"playerId": playerID,
		"game":     sess.Snapshot(),
	})
}

func (s *Server) handleStartGame(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req hostRequest
	if !bindOptionalJSON(c, &req, playerMessages, "invalid start request") {
		return
	}
	sess, err := s.startSession(c.Request.Context(), roomID, req.PlayerID)
	if err != nil {
		writeError(c, err, "failed to start game")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleUpdateGame(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req settingsRequest
	if !bindJSON(c, &req, nameMessages, "invalid settings") {
		return
	}
	sess, err := s.updateSettings(c.Request.Context(), roomID, settingsParams{
		PlayerID:   req.PlayerID,
		MaxPlayers: req.MaxPlayers,
		Visibility: req.Visibility,
		Password:   req.Password,
	})
	if err != nil {
		writeError(c, err, "failed to update game")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleUpdatePlayer(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req updatePlayerRequest
	if !bindJSON(c, &req, playerMessages, "invalid player update") {
		return
	}
	sess, err := s.updatePlayer(c.Request.Context(), roomID, req.PlayerID, req.Updates)
	if err != nil {
		writeError(c, err, "failed to update player")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleSurrender(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req playerRequest
	if !bindJSON(c, &req, playerMessages, "invalid surrender request") {
		return
	}
	sess, err := s.surrender(c.Request.Context(), roomID, req.PlayerID)
	if err != nil {
		writeError(c, err, "failed to surrender")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleRematch(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req rematchRequest
	if !bindJSON(c, &req, playerMessages, "invalid rematch vote") {
		return
	}
	sess, err := s.voteRematch(c.Request.Context(), roomID, req.PlayerID, *req.Vote)
	if err != nil {
		writeError(c, err, "failed to record vote")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleLeave(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req playerRequest
	if !bindJSON(c, &req, playerMessages, "invalid leave request") {
		return
	}
	sess, err := s.leaveSession(c.Request.Context(), roomID, req.PlayerID)
	if err != nil {
		writeError(c, err, "failed to leave game")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleReset(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var req hostRequest
	if !bindOptionalJSON(c, &req, playerMessages, "invalid reset request") {
		return
	}
	sess, err := s.resetSession(c.Request.Context(), roomID, req.PlayerID)
	if err != nil {
		writeError(c, err, "failed to reset game")
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteGame(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	var query deleteQuery
	if !bindQuery(c, &query) {
		return
	}
	if err := s.deleteSession(c.Request.Context(), roomID, query.PlayerID); err != nil {
		writeError(c, err, "failed to delete game")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleHealth(c *gin.Context) {
	count, err := s.store.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"gamesActive":       count,
		"pendingCountdowns": s.pendingCountdowns(),
		"uptime":            s.clock.Since(s.startedAt).Seconds(),
	})
}
