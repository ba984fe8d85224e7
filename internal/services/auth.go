package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/temcen/cellar/internal/config"
	"github.com/temcen/cellar/internal/database"
	"github.com/temcen/cellar/pkg/models"
)

const (
	RoleAdmin   = "admin"
	tokenIssuer = "cellar"
)

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrInvalidToken  = errors.New("invalid token")
)

// AuthService issues and checks the credentials of the admin API. Callers
// present either a configured API key or a JWT obtained for one. Issued
// tokens are backed by a session in the key-value store so they can be
// revoked.
type AuthService struct {
	apiKeys   []string
	tokenTTL  time.Duration
	jwtSecret []byte
	kv        database.KeyValueStore
	logger    *logrus.Logger
}

func NewAuthService(cfg config.AuthConfig, kv database.KeyValueStore, logger *logrus.Logger) *AuthService {
	secret := []byte(cfg.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			panic(fmt.Sprintf("failed to generate JWT secret: %v", err))
		}
		logger.Warn("auth.jwt_secret not set, tokens will not survive a restart")
	}

	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &AuthService{
		apiKeys:   cfg.APIKeys,
		tokenTTL:  ttl,
		jwtSecret: secret,
		kv:        kv,
		logger:    logger,
	}
}

// ValidateAPIKey returns the name of the matching configured key.
func (s *AuthService) ValidateAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", ErrInvalidAPIKey
	}
	for i, key := range s.apiKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) == 1 {
			return fmt.Sprintf("key-%d", i+1), nil
		}
	}
	return "", ErrInvalidAPIKey
}

// IssueToken exchanges an API key for a signed admin token.
func (s *AuthService) IssueToken(ctx context.Context, apiKey string) (*models.AuthResponse, error) {
	keyName, err := s.ValidateAPIKey(apiKey)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := now.Add(s.tokenTTL)
	claims := &models.JWTClaims{
		KeyName: keyName,
		Role:    RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   keyName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	// Store token in the key-value store for session management
	if s.kv != nil {
		if err := s.kv.Set(ctx, sessionKey(claims.ID), []byte(keyName), s.tokenTTL); err != nil {
			// Don't fail token generation if Redis is down
			s.logger.WithError(err).Warn("Failed to store session")
		}
	}

	return &models.AuthResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC(),
		Role:      RoleAdmin,
	}, nil
}

func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.kv != nil {
		exists, err := s.kv.Exists(ctx, sessionKey(claims.ID))
		if err != nil {
			// Continue validation even if Redis is down
			s.logger.WithError(err).Warn("Failed to check session")
		} else if !exists {
			return nil, fmt.Errorf("%w: session not found or expired", ErrInvalidToken)
		}
	}

	return claims, nil
}

// RevokeToken ends the session behind a token id.
func (s *AuthService) RevokeToken(ctx context.Context, tokenID string) error {
	if s.kv == nil {
		return nil
	}
	if err := s.kv.Del(ctx, sessionKey(tokenID)); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

func sessionKey(tokenID string) string {
	return fmt.Sprintf("cellar:session:%s", tokenID)
}
