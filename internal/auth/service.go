package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/abduss/driveingest/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Service validates access tokens issued by the account service.
type Service struct {
	cfg     config.AuthConfig
	nowFunc func() time.Time
	parser  *jwt.Parser
}

// NewService creates a Service.
func NewService(cfg config.AuthConfig) *Service {
	return &Service{
		cfg:     cfg,
		nowFunc: time.Now,
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name})),
	}
}

// Claims describes the validated identity extracted from an access token.
type Claims struct {
	AccountID uuid.UUID
	ExpiresAt time.Time
}

// ValidateAccessToken verifies the token signature and extracts the account id.
func (s *Service) ValidateAccessToken(tokenString string) (Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrUnauthorized
	}

	parsed, err := s.parser.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.AccessTokenSecret), nil
	})
	if err != nil || !parsed.Valid {
		return Claims{}, ErrUnauthorized
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrUnauthorized
	}

	if s.cfg.Issuer != "" {
		if iss, _ := claims["iss"].(string); iss != s.cfg.Issuer {
			return Claims{}, ErrUnauthorized
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return Claims{}, ErrUnauthorized
	}
	accountID, err := uuid.Parse(sub)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return Claims{}, ErrUnauthorized
	}
	exp := time.Unix(int64(expFloat), 0)
	if exp.Before(s.nowFunc()) {
		return Claims{}, ErrUnauthorized
	}

	return Claims{AccountID: accountID, ExpiresAt: exp}, nil
}
