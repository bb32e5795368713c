package user

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openvbs/arena/internal/auth"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/util"
)

func (h *Handler) getAuthStatus(c *gin.Context) {
	util.Success(c, gin.H{
		"local_auth_enabled": h.cfg.Auth.Local.Enabled,
		"oidc_enabled":       h.oidcHandler != nil,
	}, "Auth status retrieved")
}

func (h *Handler) localLogin(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	user, err := auth.Authenticate(h.db, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			util.Error(c, http.StatusUnauthorized, err)
		} else {
			util.Error(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	jwtToken, err := auth.GenerateJWT(user.ID, user.Role, h.cfg.Auth.JWT.Secret, h.cfg.Auth.JWT.ExpireHours)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to generate JWT")
		return
	}
	util.Success(c, gin.H{"token": jwtToken}, "Login successful")
}

func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetString("userID")
	user, err := database.GetUserByID(h.db, userID)
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return
	}
	util.Success(c, user, "Profile retrieved")
}
