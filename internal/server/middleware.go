package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jason-s-yu/arcana-memory/protocol"
	"github.com/sirupsen/logrus"
)

// SessionCookie is the cookie carrying the signed session token.
const SessionCookie = "memory_session"

const sessionKey = "session"

// sessionCookie resolves the caller's session from its cookie, starting a new
// session when the cookie is missing or invalid. The token is reissued on
// every request so active sessions do not expire.
func (s *Server) sessionCookie() gin.HandlerFunc {
	return func(c *gin.Context) {
		var id uuid.UUID
		if raw, err := c.Cookie(SessionCookie); err == nil {
			if parsed, err := s.tokens.Parse(raw); err == nil {
				id = parsed
			}
		}
		if id == uuid.Nil {
			id = uuid.New()
			s.log.WithField("session", id).Debug("Starting new session.")
		}

		token, _, err := s.tokens.Issue(id)
		if err != nil {
			s.log.WithError(err).Error("Failed to sign session token.")
			c.AbortWithStatusJSON(http.StatusInternalServerError, protocol.ErrorResponse{Error: "session unavailable"})
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, token, int(s.tokens.TTL()/time.Second), "/", "", s.secure, true)
		c.Set(sessionKey, id)
		c.Next()
	}
}

func sessionID(c *gin.Context) uuid.UUID {
	return c.MustGet(sessionKey).(uuid.UUID)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}
		if v, ok := c.Get(sessionKey); ok {
			fields["session"] = v
		}
		entry := s.log.WithFields(fields)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("Request failed.")
		case status >= http.StatusBadRequest:
			entry.Info("Request rejected.")
		default:
			entry.Debug("Request served.")
		}
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.WithFields(logrus.Fields{"panic": recovered, "path": c.Request.URL.Path}).Error("Handler panicked.")
		c.AbortWithStatusJSON(http.StatusInternalServerError, protocol.ErrorResponse{Error: "internal error"})
	})
}

// cors allows credentialed requests from the configured origins only.
func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && s.origins[origin] {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
