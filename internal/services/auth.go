package services

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"belgaum-backend/internal/middleware"
	"belgaum-backend/internal/models"
)

const msgInvalidCredentials = "Invalid username or password"

type adminTokenIssuer interface {
	GenerateAdminToken(username string) (string, error)
}

// AdminAuthService checks the single configured admin account.
type AdminAuthService struct {
	username     string
	passwordHash []byte
	tokens       adminTokenIssuer
}

func NewAdminAuthService(username, passwordHash string, tokens adminTokenIssuer) *AdminAuthService {
	return &AdminAuthService{
		username:     username,
		passwordHash: []byte(passwordHash),
		tokens:       tokens,
	}
}

// Login verifies the credentials and issues a short-lived admin token. With no
// password hash configured every attempt is rejected.
func (s *AdminAuthService) Login(req models.AdminLoginRequest) (*models.AdminLoginResponse, error) {
	if len(s.passwordHash) == 0 || req.Username == "" || req.Password == "" {
		return nil, &UnauthorizedError{Message: msgInvalidCredentials}
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.username)) == 1
	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(req.Password)); err != nil || !userOK {
		return nil, &UnauthorizedError{Message: msgInvalidCredentials}
	}

	token, err := s.tokens.GenerateAdminToken(s.username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue admin token: %w", err)
	}

	return &models.AdminLoginResponse{
		AccessToken: token,
		ExpiresIn:   int(middleware.AdminTokenTTL.Seconds()),
	}, nil
}
