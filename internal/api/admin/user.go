package admin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openvbs/arena/internal/auth"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/database/models"
	"github.com/openvbs/arena/internal/util"
)

func (h *Handler) getAllUsers(c *gin.Context) {
	users, err := database.GetAllUsers(h.db)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, err)
		return
	}
	util.Success(c, users, "Users retrieved")
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := database.GetUserByID(h.db, c.Param("id"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return
	}
	util.Success(c, user, "User retrieved")
}

func (h *Handler) createUser(c *gin.Context) {
	var req struct {
		Username    string      `json:"username" binding:"required"`
		Password    string      `json:"password" binding:"required"`
		DisplayName string      `json:"display_name"`
		Role        models.Role `json:"role"`
		TeamID      string      `json:"team_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	_, err := database.GetUserByUsername(h.db, req.Username)
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		if err == nil {
			util.Error(c, http.StatusConflict, "username already exists")
		} else {
			util.Error(c, http.StatusInternalServerError, "database error")
		}
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to hash password")
		return
	}

	newUser := models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		DisplayName:  req.DisplayName,
		Role:         req.Role,
		TeamID:       req.TeamID,
	}
	if newUser.DisplayName == "" {
		newUser.DisplayName = newUser.Username
	}
	if newUser.Role == "" {
		newUser.Role = models.RoleParticipant
	}

	if err := database.CreateUser(h.db, &newUser); err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to create user")
		return
	}
	zap.S().Infof("user %s created with role %s", newUser.Username, newUser.Role)
	util.Success(c, newUser, "User created")
}

func (h *Handler) updateUser(c *gin.Context) {
	user, err := database.GetUserByID(h.db, c.Param("id"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return
	}

	var req struct {
		DisplayName *string      `json:"display_name"`
		Role        *models.Role `json:"role"`
		TeamID      *string      `json:"team_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	if req.DisplayName != nil {
		user.DisplayName = *req.DisplayName
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.TeamID != nil {
		user.TeamID = *req.TeamID
	}

	if err := database.UpdateUser(h.db, user); err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to update user")
		return
	}
	util.Success(c, user, "User updated")
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := database.DeleteUser(h.db, c.Param("id")); err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to delete user")
		return
	}
	util.Success(c, nil, "User deleted")
}

func (h *Handler) resetUserPassword(c *gin.Context) {
	user, err := database.GetUserByID(h.db, c.Param("id"))
	if err != nil {
		util.Error(c, http.StatusNotFound, "user not found")
		return
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to hash password")
		return
	}
	user.PasswordHash = hash

	if err := database.UpdateUser(h.db, user); err != nil {
		util.Error(c, http.StatusInternalServerError, "failed to update user")
		return
	}
	util.Success(c, nil, "Password reset")
}
