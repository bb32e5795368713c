package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/openvbs/arena/internal/config"
	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/database/models"
)

// OIDCHandler implements single-sign-on login against a standards-compliant
// provider. First login provisions a participant account keyed by the
// provider subject; team assignment happens afterwards through the admin API.
type OIDCHandler struct {
	cfg      *config.Config
	db       *gorm.DB
	oauth2   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

type oidcProfile struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
}

func NewOIDCHandler(cfg *config.Config, db *gorm.DB) (*OIDCHandler, error) {
	provider, err := oidc.NewProvider(context.Background(), cfg.Auth.OIDC.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}
	return &OIDCHandler{
		cfg: cfg,
		db:  db,
		oauth2: &oauth2.Config{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			RedirectURL:  cfg.Auth.OIDC.RedirectURI,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile"},
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: cfg.Auth.OIDC.ClientID}),
	}, nil
}

func (h *OIDCHandler) Login(c *gin.Context) {
	url := h.oauth2.AuthCodeURL("state", oauth2.AccessTypeOffline)
	c.Redirect(http.StatusTemporaryRedirect, url)
}

func (h *OIDCHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	token, err := h.oauth2.Exchange(c.Request.Context(), code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange token: " + err.Error()})
		return
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "No id_token in token response"})
		return
	}
	idToken, err := h.verifier.Verify(c.Request.Context(), rawIDToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify ID token: " + err.Error()})
		return
	}

	var profile oidcProfile
	if err := idToken.Claims(&profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode claims: " + err.Error()})
		return
	}

	user, err := database.GetUserByOIDCSubject(h.db, profile.Subject)
	if err == gorm.ErrRecordNotFound {
		subject := profile.Subject
		username := profile.PreferredUsername
		if username == "" {
			username = profile.Subject
		}
		newUser := models.User{
			ID:          uuid.New().String(),
			OIDCSubject: &subject,
			Username:    username,
			DisplayName: profile.Name,
			Role:        models.RoleParticipant,
		}
		if err := database.CreateUser(h.db, &newUser); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user: " + err.Error()})
			return
		}
		user = &newUser
		zap.S().Infof("new user registered via SSO: %s", user.Username)
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error: " + err.Error()})
		return
	}

	jwtToken, err := GenerateJWT(user.ID, user.Role, h.cfg.Auth.JWT.Secret, h.cfg.Auth.JWT.ExpireHours)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate JWT: " + err.Error()})
		return
	}

	if h.cfg.Auth.OIDC.FrontendCallbackURL != "" {
		c.Redirect(http.StatusTemporaryRedirect, h.cfg.Auth.OIDC.FrontendCallbackURL+"?token="+jwtToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": jwtToken})
}
