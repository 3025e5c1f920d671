package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/devyljin/jintranet-back/internal/models"
	"github.com/devyljin/jintranet-back/internal/repository"
	"github.com/devyljin/jintranet-back/internal/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type AuthService struct {
	users         repository.UserRepository
	sessionSecret string
}

func NewAuthService(users repository.UserRepository, sessionSecret string) *AuthService {
	return &AuthService{users: users, sessionSecret: sessionSecret}
}

func (a *AuthService) Register(ctx context.Context, username, name, surname, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 6 {
		return nil, errors.New("invalid input")
	}

	// Self-registration always yields a regular user.
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return a.users.Create(ctx, username, strings.TrimSpace(name), strings.TrimSpace(surname), "end_user", hash)
}

func (a *AuthService) Login(ctx context.Context, username, password string) (token string, user *models.User, err error) {
	u, hash, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if !utils.CheckPassword(hash, password) {
		return "", nil, ErrInvalidCredentials
	}
	tok, err := utils.SignJWT(a.sessionSecret, u.ID, u.Role, 24*time.Hour)
	if err != nil {
		return "", nil, err
	}
	return tok, u, nil
}
