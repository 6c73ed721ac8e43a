package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"type-royale/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type string         `json:"type"`
	Game *game.Snapshot `json:"game,omitempty"`
}

type lobbyMessage struct {
	Type  string         `json:"type"`
	Games []game.Summary `json:"games"`
}

// wsClient serializes writes; gorilla connections allow one concurrent writer.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsClient) close(code int, reason string) {
	c.mu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
	c.mu.Unlock()
	_ = c.conn.Close()
}

type wsHub struct {
	mu     sync.Mutex
	groups map[string]map[*wsClient]struct{}
}

type lobbyHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newWSHub() *wsHub {
	return &wsHub{groups: make(map[string]map[*wsClient]struct{})}
}

func newLobbyHub() *lobbyHub {
	return &lobbyHub{clients: make(map[*wsClient]struct{})}
}

func (h *wsHub) Add(roomID string, client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	group := h.groups[roomID]
	if group == nil {
		group = make(map[*wsClient]struct{})
		h.groups[roomID] = group
	}
	group[client] = struct{}{}
}

func (h *wsHub) Remove(roomID string, client *wsClient) {
	h.mu.Lock()
	group := h.groups[roomID]
	if group != nil {
		delete(group, client)
		if len(group) == 0 {
			delete(h.groups, roomID)
		}
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

func (h *wsHub) Count(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[roomID])
}

func (h *wsHub) Broadcast(roomID string, payload any) {
	h.mu.Lock()
	group := h.groups[roomID]
	clients := make([]*wsClient, 0, len(group))
	for client := range group {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	if len(clients) == 0 {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.Remove(roomID, client)
		}
	}
}

// CloseRoom tells every subscriber the room is gone and disconnects them.
func (h *wsHub) CloseRoom(roomID string) {
	h.mu.Lock()
	group := h.groups[roomID]
	delete(h.groups, roomID)
	h.mu.Unlock()
	data, _ := json.Marshal(wsMessage{Type: "deleted"})
	for client := range group {
		_ = client.write(data)
		client.close(websocket.CloseNormalClosure, "game deleted")
	}
}

func (h *wsHub) CloseAll() {
	h.mu.Lock()
	groups := h.groups
	h.groups = make(map[string]map[*wsClient]struct{})
	h.mu.Unlock()
	for _, group := range groups {
		for client := range group {
			client.close(websocket.CloseGoingAway, "server shutting down")
		}
	}
}

func (h *lobbyHub) Add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = struct{}{}
}

func (h *lobbyHub) Remove(client *wsClient) {
	h.mu.Lock()
	delete(h.clients, client)
	h.mu.Unlock()
	_ = client.conn.Close()
}

func (h *lobbyHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *lobbyHub) Broadcast(payload any) {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.Remove(client)
		}
	}
}

func (h *lobbyHub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()
	for client := range clients {
		client.close(websocket.CloseGoingAway, "server shutting down")
	}
}

func (s *Server) handleWebsocket(c *gin.Context) {
	roomID, ok := bindRoom(c)
	if !ok {
		return
	}
	sess, err := s.loadSession(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err, "failed to load game")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	log.Debug().Str("room_id", roomID).Str("remote", c.Request.RemoteAddr).Msg("ws connected")
	client := &wsClient{conn: conn}
	s.ws.Add(roomID, client)
	snap := sess.Snapshot()
	if data, err := json.Marshal(wsMessage{Type: "snapshot", Game: &snap}); err == nil {
		_ = client.write(data)
	}
	go s.readWS(roomID, client)
}

func (s *Server) handleLobbyWebsocket(c *gin.Context) {
	summaries, err := s.listSessions(c.Request.Context())
	if err != nil {
		writeError(c, err, "failed to list games")
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	log.Debug().Str("remote", c.Request.RemoteAddr).Msg("lobby ws connected")
	client := &wsClient{conn: conn}
	s.lobbyWS.Add(client)
	if data, err := json.Marshal(lobbyMessage{Type: "lobby", Games: summaries}); err == nil {
		_ = client.write(data)
	}
	go s.readLobbyWS(client)
}

// Clients never send anything meaningful; reading only detects disconnects.
func (s *Server) readWS(roomID string, client *wsClient) {
	defer s.ws.Remove(roomID, client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			log.Debug().Str("room_id", roomID).Err(err).Msg("ws disconnected")
			return
		}
	}
}

func (s *Server) readLobbyWS(client *wsClient) {
	defer s.lobbyWS.Remove(client)
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			log.Debug().Err(err).Msg("lobby ws disconnected")
			return
		}
	}
}

func (s *Server) broadcastGameUpdate(sess *game.Session) {
	snap := sess.Snapshot()
	s.ws.Broadcast(sess.ID, wsMessage{Type: "snapshot", Game: &snap})
	s.broadcastLobbyUpdate()
}

func (s *Server) broadcastLobbyUpdate() {
	if s.lobbyWS.Len() == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timerWriteTimeout)
	defer cancel()
	summaries, err := s.listSessions(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("lobby refresh failed")
		return
	}
	s.lobbyWS.Broadcast(lobbyMessage{Type: "lobby", Games: summaries})
}
