package auth

import (
	"fmt"
	"time"

	"galaxy-server/internal/shared/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RolePlayer = "player"
	RoleAdmin  = "admin"
)

type Claims struct {
	PlayerID int    `json:"player_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

func getJWTSecret() (string, error) {
	if config.GlobalConfig == nil {
		return "", fmt.Errorf("configuration is not initialized")
	}
	secret := config.GlobalConfig.Auth.JWTSecret
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET is required but not set")
	}
	if len(secret) < 32 {
		return "", fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}
	return secret, nil
}

func tokenExpiration() time.Duration {
	if exp := config.GlobalConfig.Auth.TokenExpiration; exp > 0 {
		return exp
	}
	return 24 * time.Hour
}

// GenerateJWT signs a token for the given player. Operators mint admin tokens
// through galaxygen since the server has no login flow of its own.
func GenerateJWT(playerID int, username, role string) (string, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return "", fmt.Errorf("cannot generate JWT: %w", err)
	}
	if role == "" {
		role = RolePlayer
	}

	now := time.Now()
	claims := Claims{
		PlayerID: playerID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenExpiration())),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   fmt.Sprintf("player_%d", playerID),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ValidateJWT(tokenString string) (*Claims, error) {
	secret, err := getJWTSecret()
	if err != nil {
		return nil, fmt.Errorf("cannot validate JWT: %w", err)
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
