package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"smartcity/internal/model"
	"smartcity/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users  UserStore
	tokens *TokenService
}

func NewAuthService(users UserStore, tokens *TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

// Register creates a citizen account and signs it in. avatar may be nil.
func (s *AuthService) Register(ctx context.Context, req *model.RegisterRequest, avatar Upload) (*model.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))

	exists, err := s.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, conflict("user already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var avatarURL string
	if url := avatar.first(ctx); url != nil {
		avatarURL = *url
	}

	user := &model.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleCitizen,
		IsActive:     true,
		Profile: model.Profile{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Avatar:    avatarURL,
		},
		CreatedAt: time.Now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, conflict("user already exists")
		}
		return nil, err
	}

	return s.session(user)
}

// Login checks the credentials. Unknown email and wrong password produce the
// same error.
func (s *AuthService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResponse, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	return s.session(user)
}

// Authenticate verifies a session token and loads its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	userID, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrAccountDisabled
	}
	return user, nil
}

func (s *AuthService) TokenLifetime() time.Duration {
	return s.tokens.Lifetime()
}

func (s *AuthService) session(user *model.User) (*model.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &model.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Summary(),
	}, nil
}
