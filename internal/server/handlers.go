package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/engine"
	"github.com/jason-s-yu/arcana-memory/internal/game"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

const (
	msgSlowDown       = "Too many flips, slow down"
	defaultRecentSize = 10
	maxRecentSize     = 100
	wsWriteTimeout    = 5 * time.Second
	wsPingInterval    = 15 * time.Second
)

// handleFlip serves POST /flip/:index.
func (s *Server) handleFlip(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "card index must be an integer"})
		return
	}
	sid := sessionID(c)

	if wait := s.limiter.reserve(sid); wait > 0 {
		c.JSON(http.StatusTooManyRequests, protocol.FlipResult{
			Valid:     false,
			CardIndex: index,
			FirstCard: engine.NoCard,
			Message:   msgSlowDown,
			Backoff:   wait.Seconds(),
		})
		return
	}

	res, err := s.games.Flip(c.Request.Context(), sid, index)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, engine.ErrIndexOutOfRange):
		c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: err.Error()})
	default:
		s.internalError(c, err, "Flip failed.")
	}
}

// handleNewGame serves POST /new-game.
func (s *Server) handleNewGame(c *gin.Context) {
	if err := s.games.NewGame(c.Request.Context(), sessionID(c)); err != nil {
		s.internalError(c, err, "New game failed.")
		return
	}
	c.JSON(http.StatusOK, protocol.NewGameResponse{Success: true})
}

// handleCPUTurn serves POST /cpu-turn.
func (s *Server) handleCPUTurn(c *gin.Context) {
	if !s.games.Rules().CPUOpponent {
		c.JSON(http.StatusNotFound, protocol.ErrorResponse{Error: "CPU opponent is disabled"})
		return
	}
	res, err := s.games.CPUTurn(c.Request.Context(), sessionID(c))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, engine.ErrTurnPending), errors.Is(err, engine.ErrGameOver):
		c.JSON(http.StatusConflict, protocol.ErrorResponse{Error: err.Error()})
	default:
		s.internalError(c, err, "CPU turn failed.")
	}
}

// handleState serves GET /state. A matching If-None-Match gets 304.
func (s *Server) handleState(c *gin.Context) {
	v, err := s.games.View(c.Request.Context(), sessionID(c))
	if err != nil {
		s.internalError(c, err, "Loading state failed.")
		return
	}
	etag := `"` + v.GameID + "-" + v.Version + `"`
	c.Header("ETag", etag)
	c.Header("Cache-Control", "no-cache")
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.JSON(http.StatusOK, v)
}

// handleRecentResults serves GET /results/recent?limit=N.
func (s *Server) handleRecentResults(c *gin.Context) {
	limit := defaultRecentSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, protocol.ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecentSize)
	}
	list, err := s.games.Recent(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err, "Listing results failed.")
		return
	}
	if list == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	c.JSON(http.StatusOK, list)
}

// handleEvents serves GET /ws: a stream of the session's game events, opened
// with a sync_state event carrying the whole board.
func (s *Server) handleEvents(c *gin.Context) {
	sid := sessionID(c)
	conn, err := websocket.Accept(upgradeWriter{c.Writer}, c.Request, &websocket.AcceptOptions{OriginPatterns: s.wsHosts})
	if err != nil {
		s.log.WithError(err).WithField("session", sid).Info("Websocket handshake failed.")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	sub := s.bus.Subscribe(sid)
	defer sub.Close()

	ctx := conn.CloseRead(c.Request.Context())
	log := s.log.WithField("session", sid)

	view, err := s.games.View(ctx, sid)
	if err != nil {
		log.WithError(err).Error("Loading state for stream failed.")
		return
	}
	gameID, _ := uuid.Parse(view.GameID)
	if err := writeEvent(ctx, conn, game.GameEvent{Type: game.EventSyncState, GameID: gameID, State: &view, Timestamp: time.Now()}); err != nil {
		return
	}
	log.Debug("Event stream opened.")

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				log.WithError(err).Debug("Event stream closed.")
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

// upgradeWriter hides WriteHeaderNow from websocket.Accept, since gin will not
// hijack a response that has been written. The 101 goes to the raw writer and
// the hijack goes through gin.
type upgradeWriter struct {
	w gin.ResponseWriter
}

func (u upgradeWriter) Header() http.Header { return u.w.Header() }

func (u upgradeWriter) Write(b []byte) (int, error) { return u.w.Write(b) }

func (u upgradeWriter) WriteHeader(code int) {
	u.w.WriteHeader(code)
	if code != http.StatusSwitchingProtocols {
		return
	}
	if raw, ok := u.w.(interface{ Unwrap() http.ResponseWriter }); ok {
		raw.Unwrap().WriteHeader(code)
	}
}

func (u upgradeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) { return u.w.Hijack() }

func writeEvent(ctx context.Context, conn *websocket.Conn, ev game.GameEvent) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

func (s *Server) internalError(c *gin.Context, err error, msg string) {
	s.log.WithError(err).WithFields(logrus.Fields{"session": sessionID(c), "path": c.Request.URL.Path}).Error(msg)
	c.JSON(http.StatusInternalServerError, protocol.ErrorResponse{Error: "internal error"})
}
