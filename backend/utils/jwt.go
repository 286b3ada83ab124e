package utils

import (
	"strings"
	"time"

	"learnhub/backend/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// Principal is the identity a verified token resolves to.
type Principal struct {
	UserID   uint
	Username string
	Role     string
}

func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

func GenerateJWTToken(userID uint, username, role string, cfg *config.Config) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"role":     role,
		"exp":      time.Now().Add(time.Hour * 72).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ExtractPrincipal verifies the bearer token on the request and returns the
// identity it encodes.
func ExtractPrincipal(c *fiber.Ctx, cfg *config.Config) (Principal, error) {
	tokenString := c.Get("Authorization")
	if tokenString == "" {
		return Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Missing authorization token")
	}
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})

	if err != nil {
		return Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid token claims")
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return Principal{}, fiber.NewError(fiber.StatusUnauthorized, "Invalid user ID in token")
	}

	principal := Principal{UserID: uint(userIDFloat)}
	if username, ok := claims["username"].(string); ok {
		principal.Username = username
	}
	if role, ok := claims["role"].(string); ok {
		principal.Role = role
	}

	return principal, nil
}
