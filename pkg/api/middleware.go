package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smith3v/mathquiz/pkg/db"
	"github.com/smith3v/mathquiz/pkg/logger"
)

const (
	ctxProfileID    = "profile_id"
	ctxSessionToken = "session_token"
)

// RequireAuth accepts a Bearer JWT only while its session is still live.
func (s *Server) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, http.StatusUnauthorized, "authorization header required")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abort(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		profileID, token, err := s.tokens.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			abort(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		session, err := s.sessions.Lookup(token)
		if err != nil {
			c.Abort()
			writeError(c, err)
			return
		}
		if session == nil || session.ProfileID != profileID {
			abort(c, http.StatusUnauthorized, "session expired")
			return
		}

		c.Set(ctxProfileID, profileID)
		c.Set(ctxSessionToken, token)
		c.Next()
	}
}

// RequireTeacher must run after RequireAuth.
func (s *Server) RequireTeacher() gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := s.accounts.GetByID(c.GetUint(ctxProfileID))
		if err != nil {
			c.Abort()
			writeError(c, err)
			return
		}
		if acc == nil {
			abort(c, http.StatusUnauthorized, "account no longer exists")
			return
		}
		if acc.Role != db.RoleTeacher {
			abort(c, http.StatusForbidden, "teacher role required")
			return
		}
		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
			return
		}
		logger.Debug("request served", attrs...)
	}
}
