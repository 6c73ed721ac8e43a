package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"type-royale/internal/config"
	"type-royale/internal/events"
	"type-royale/internal/game"
	"type-royale/internal/password"
	"type-royale/internal/snippets"
	"type-royale/internal/store"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Options carries the collaborators a Server needs. Nil fields get in-process
// defaults.
type Options struct {
	Store    store.Store
	Clock    clockwork.Clock
	Snippets *snippets.Pool
	Hasher   game.PasswordHasher
	Events   events.Publisher
	Validate game.UpdateValidator
}

type Server struct {
	store     store.Store
	clock     clockwork.Clock
	cfg       config.Config
	snippets  *snippets.Pool
	hasher    game.PasswordHasher
	events    events.Publisher
	validate  game.UpdateValidator
	ws        *wsHub
	lobbyWS   *lobbyHub
	limiter   *rateLimiter
	timersMu  sync.Mutex
	timers    map[string]clockwork.Timer
	startedAt time.Time
}

func New(cfg config.Config, opts Options) *Server {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	st := opts.Store
	if st == nil {
		st = store.NewMemory(clock)
	}
	pool := opts.Snippets
	if pool == nil {
		pool = snippets.Default()
	}
	hasher := opts.Hasher
	if hasher == nil {
		hasher = password.NewDefault()
	}
	publisher := opts.Events
	if publisher == nil {
		publisher = events.NewLogPublisher(log.Logger)
	}
	registerValidators()
	return &Server{
		store:     st,
		clock:     clock,
		cfg:       cfg,
		snippets:  pool,
		hasher:    hasher,
		events:    publisher,
		validate:  opts.Validate,
		ws:        newWSHub(),
		lobbyWS:   newLobbyHub(),
		limiter:   newRateLimiter(clock, cfg.RateLimitPerMinute, cfg.RateLimitBurst),
		timers:    make(map[string]clockwork.Timer),
		startedAt: clock.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	if !s.cfg.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	r.Use(cors.New(corsConfig(s.cfg.CORSOrigins)))

	r.GET("/api/health", s.handleHealth)

	api := r.Group("/api/games")
	{
		api.POST("", s.handleCreateGame)
		api.GET("", s.handleListGames)
		api.GET("/:id", s.handleGetGame)
		api.PATCH("/:id", s.handleUpdateGame)
		api.DELETE("/:id", s.handleDeleteGame)
		api.POST("/:id/join", s.handleJoinGame)
		api.POST("/:id/start", s.handleStartGame)
		api.PATCH("/:id/update-player", s.handleUpdatePlayer)
		api.POST("/:id/surrender", s.handleSurrender)
		api.POST("/:id/rematch", s.handleRematch)
		api.POST("/:id/leave", s.handleLeave)
		api.POST("/:id/reset", s.handleReset)
	}

	r.GET("/ws/games/:id", s.handleWebsocket)
	r.GET("/ws/lobby", s.handleLobbyWebsocket)
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", "Origin"},
		ExposeHeaders: []string{"Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Run starts the background janitor and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.runJanitor(ctx, s.cfg.SweepInterval())
}

// Close stops pending countdowns and flushes the event publisher.
func (s *Server) Close() error {
	s.timersMu.Lock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	s.timersMu.Unlock()
	s.ws.CloseAll()
	s.lobbyWS.CloseAll()
	return s.events.Close()
}
