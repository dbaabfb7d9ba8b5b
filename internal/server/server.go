// Package server exposes the memory game over HTTP+JSON with gin.
package server

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jason-s-yu/arcana-memory/internal/events"
	"github.com/jason-s-yu/arcana-memory/internal/game"
	"github.com/jason-s-yu/arcana-memory/internal/session"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

// Options configures a Server.
type Options struct {
	MinFlipInterval time.Duration // 0 disables server-side rate limiting
	AllowedOrigins  []string      // full origins, e.g. "https://tarot.example"
	SecureCookie    bool
	Logger          logrus.FieldLogger
}

// Server routes HTTP requests to the game manager.
type Server struct {
	games   *game.Manager
	bus     *events.Bus
	tokens  *session.Tokens
	limiter *flipLimiter
	origins map[string]bool
	wsHosts []string
	secure  bool
	log     logrus.FieldLogger
	engine  *gin.Engine
}

// New builds a Server. bus may be nil, in which case /ws is not served.
func New(games *game.Manager, bus *events.Bus, tokens *session.Tokens, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	s := &Server{
		games:   games,
		bus:     bus,
		tokens:  tokens,
		limiter: newFlipLimiter(opts.MinFlipInterval),
		origins: make(map[string]bool),
		secure:  opts.SecureCookie,
		log:     opts.Logger,
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[o] = true
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			s.wsHosts = append(s.wsHosts, u.Host)
		}
	}
	s.engine = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(s.recovery(), s.requestLogger(), s.cors())

	r.GET(protocol.PathHealth, func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	g := r.Group("/", s.sessionCookie())
	g.POST(protocol.PathFlip+":index", s.handleFlip)
	g.POST(protocol.PathNewGame, s.handleNewGame)
	g.POST(protocol.PathCPUTurn, s.handleCPUTurn)
	g.GET(protocol.PathState, s.handleState)
	g.GET(protocol.PathRecentResults, s.handleRecentResults)
	if s.bus != nil {
		g.GET(protocol.PathEvents, s.handleEvents)
	}
	return r
}
