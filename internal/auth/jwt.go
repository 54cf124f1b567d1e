package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// RoleBoard grants access to a single board's live channel
	RoleBoard = "board"

	defaultBoardTokenTTL = 7 * 24 * time.Hour
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	BoardID string `json:"board_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds the token signing settings
type Config struct {
	Secret        string
	BoardTokenTTL time.Duration
}

// NewConfigFromEnv creates a new Config from environment variables
func NewConfigFromEnv() Config {
	config := Config{Secret: os.Getenv("JWT_SECRET")}
	if v, err := time.ParseDuration(os.Getenv("JWT_BOARD_TOKEN_TTL")); err == nil {
		config.BoardTokenTTL = v
	}
	return config
}

// ValidateConfig validates the Config
func ValidateConfig(config Config) error {
	if len(config.Secret) < 16 {
		return errors.New("JWT_SECRET must be at least 16 characters")
	}
	if config.BoardTokenTTL < 0 {
		return fmt.Errorf("board token ttl must be positive, got %s", config.BoardTokenTTL)
	}
	return nil
}

// Issuer signs and validates board tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a token issuer
func NewIssuer(config Config) (*Issuer, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}
	ttl := config.BoardTokenTTL
	if ttl == 0 {
		ttl = defaultBoardTokenTTL
	}
	return &Issuer{secret: []byte(config.Secret), ttl: ttl, now: time.Now}, nil
}

// GenerateBoardToken generates a JWT token for a board's live channel
func (i *Issuer) GenerateBoardToken(boardID string) (string, time.Time, error) {
	if boardID == "" {
		return "", time.Time{}, errors.New("board id is required")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := &JWTClaims{
		BoardID: boardID,
		Role:    RoleBoard,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   boardID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken validates a JWT token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
