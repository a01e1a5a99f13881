package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService issues and verifies HS256 session tokens. Tokens are not
// stored server-side, so a token stays valid until it expires even after
// logout.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

func (s *TokenService) Issue(userID uuid.UUID) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.lifetime)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify returns the user id carried by tokenString. Expired tokens yield
// ErrTokenExpired, anything else that fails verification ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (uuid.UUID, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return userID, nil
}
