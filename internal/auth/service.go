// Package auth handles account registration and password-based login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/celestial/service/internal/config"
	"github.com/celestial/service/internal/user"
)

// ErrInvalidCredentials is returned when the username or password is wrong.
// Callers present unknown-user and wrong-password identically.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Service contains the business logic for registration and login.
type Service struct {
	userSvc *user.Service
	cfg     *config.Config
}

// NewService creates a new auth Service.
func NewService(userSvc *user.Service, cfg *config.Config) *Service {
	return &Service{userSvc: userSvc, cfg: cfg}
}

// Register creates a new user account and issues a JWT token.
func (s *Service) Register(ctx context.Context, username, password string) (string, *user.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.userSvc.Create(ctx, username, string(hash))
	if err != nil {
		return "", nil, err
	}

	token, err := s.issueToken(u.ID, u.Username)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// Login verifies the password and issues a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := s.userSvc.GetByUsername(ctx, username)
	if err != nil {
		if s.userSvc.IsNotFound(err) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u.ID, u.Username)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// issueToken signs a bearer JWT carrying the user id and username.
func (s *Service) issueToken(userID, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(s.cfg.JWTLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}
