package devserver

import (
	"context"
	"fmt"
	"strings"

	"givebridge/internal/config"
	"givebridge/internal/domain"
	"givebridge/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Server is the in-memory development portal backend: the REST surface the
// sync engine consumes plus the websocket push endpoint. It implements the
// same wire contract as the production portal with none of its persistence.
type Server struct {
	cfg      config.ServerConfig
	log      *logger.Logger
	state    *State
	hub      *Hub
	handlers *Handlers
	router   *gin.Engine
}

const fixturePassword = "givebridge"

func New(cfg config.ServerConfig, log *logger.Logger) (*Server, error) {
	if log == nil {
		log = logger.NewNop()
	}

	state := NewState()
	if err := state.SeedFixtures(fixturePassword); err != nil {
		return nil, fmt.Errorf("seed fixtures: %w", err)
	}

	hub := NewHub()
	handlers := NewHandlers(state, hub, []byte(cfg.JWTSecret), cfg.TokenTTL, log)

	s := &Server{
		cfg:      cfg,
		log:      log,
		state:    state,
		hub:      hub,
		handlers: handlers,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	if s.cfg.Environment == logger.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()

	r.POST("/auth/login", s.handlers.Login)
	r.GET("/ws", s.handlers.Connect)

	// The production portal scopes the messaging surface under a per-role
	// prefix; the dev server mounts identical handlers under all four so
	// any role's endpoint resolver works against it.
	roles := []domain.Role{domain.RoleAdmin, domain.RoleManager, domain.RoleStudent, domain.RoleDonor}
	for _, role := range roles {
		g := r.Group("/api/"+strings.ToLower(string(role)), AuthRequired([]byte(s.cfg.JWTSecret)))
		g.GET("/conversations", s.handlers.ListConversations)
		g.GET("/conversations/:counterpartId/messages", s.handlers.ListMessages)
		g.POST("/messages", s.handlers.SendMessage)
		g.DELETE("/messages/:id", s.handlers.DeleteMessage)
		g.GET("/notifications", s.handlers.ListNotifications)
		g.POST("/notifications/:id/read", s.handlers.MarkNotificationRead)
	}
	return r
}

// Router exposes the gin engine, mainly for httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the hub loop and serves until the listener fails or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.log.Infof("devserver listening on :%s", s.cfg.Port)
	return s.router.Run(fmt.Sprintf(":%s", s.cfg.Port))
}
