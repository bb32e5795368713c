package user

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openvbs/arena/internal/auth"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/run"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleRunWs is the live client channel of one run: inbound REGISTER/ACK
// messages feed the ready latch, outbound run events are pushed through the
// session registry.
func (h *Handler) handleRunWs(c *gin.Context) {
	runID := c.Param("id")
	tokenString := c.Query("token")

	if tokenString == "" {
		c.String(http.StatusUnauthorized, "token query parameter is required")
		return
	}
	claims, err := auth.ValidateJWT(tokenString, h.cfg.Auth.JWT.Secret)
	if err != nil {
		c.String(http.StatusUnauthorized, "invalid token")
		return
	}
	userID := claims.Subject

	m, ok := h.runtime.Get(runID)
	if !ok {
		c.String(http.StatusNotFound, "run not found")
		return
	}

	teamID := ""
	if user, err := database.GetUserByID(h.db, userID); err == nil {
		teamID = user.TeamID
	}
	if teamID == "" {
		for _, team := range m.Template().Teams {
			for _, member := range team.Members {
				if member == userID {
					teamID = team.ID
				}
			}
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.S().Errorf("failed to upgrade websocket: %v", err)
		return
	}

	s := h.sessions.Attach(uuid.NewString(), userID, teamID, runID, conn)
	info := s.Info()
	defer func() {
		h.runtime.SessionDisconnected(s.ID)
		h.sessions.Detach(s.ID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				zap.S().Infof("websocket unexpected close error: %v", err)
			}
			return
		}
		var msg run.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			zap.S().Debugf("session %s sent malformed message: %v", s.ID, err)
			continue
		}
		// A session only ever speaks for the run it connected to.
		msg.RunID = runID
		if err := h.runtime.RouteClientMessage(info, msg); err != nil {
			zap.S().Warnf("failed to route client message: %v", err)
		}
	}
}
