package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"domainflip/internal/ledger"
)

// Identity headers set by the upstream authentication proxy.
const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"

	principalKey = "principal"
)

func (s *Server) requirePrincipal(c *gin.Context) {
	userID := strings.TrimSpace(c.GetHeader(headerUserID))
	if userID == "" && websocket.IsWebSocketUpgrade(c.Request) {
		// Browsers cannot set headers on websocket upgrades.
		userID = strings.TrimSpace(c.Query("user_id"))
	}
	if userID == "" {
		s.renderError(c, http.StatusUnauthorized, errors.New("missing user identity"))
		c.Abort()
		return
	}
	c.Set(principalKey, ledger.Principal{
		UserID: userID,
		Role:   ledger.ParseRole(c.GetHeader(headerUserRole)),
	})
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	if !principalFrom(c).IsAdmin() {
		s.renderError(c, http.StatusForbidden, errors.New("admin role required"))
		c.Abort()
		return
	}
	c.Next()
}

func principalFrom(c *gin.Context) ledger.Principal {
	if value, ok := c.Get(principalKey); ok {
		if p, ok := value.(ledger.Principal); ok {
			return p
		}
	}
	return ledger.Principal{}
}
