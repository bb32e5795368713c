package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/openvbs/arena/internal/database"
	"github.com/openvbs/arena/internal/database/models"
)

var ErrBadCredentials = errors.New("invalid username or password")

// HashPassword derives a bcrypt hash for local accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticate checks a username/password pair against the local account
// store. SSO-only accounts (empty hash) never match.
func Authenticate(db *gorm.DB, username, password string) (*models.User, error) {
	user, err := database.GetUserByUsername(db, username)
	if err == gorm.ErrRecordNotFound {
		return nil, ErrBadCredentials
	} else if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" {
		return nil, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrBadCredentials
	}
	return user, nil
}
