package middleware

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/golang-jwt/jwt/v4"

	"github.com/ManuelReschke/CourseFox/app/models"
	"github.com/ManuelReschke/CourseFox/internal/pkg/usercontext"
)

var errMissingUserID = errors.New("token has no user id")

// RequireUser authenticates API calls with an HS256 bearer token issued by
// the auth service. The user id is read from "sub" or "user_id".
func RequireUser(secret string) fiber.Handler {
	key := []byte(strings.TrimSpace(secret))
	return func(c *fiber.Ctx) error {
		if len(key) == 0 {
			log.Error("[Auth] JWT_SECRET is not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "auth_not_configured"})
		}
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "missing bearer token"})
		}

		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return key, nil
		})
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "invalid token"})
		}

		userID, err := userIDFromClaims(claims)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": err.Error()})
		}
		email, _ := claims["email"].(string)
		role, _ := claims["role"].(string)

		usercontext.Set(c, usercontext.UserContext{
			UserID:     userID,
			Email:      email,
			IsLoggedIn: true,
			IsAdmin:    role == models.ROLE_ADMIN,
		})
		return c.Next()
	}
}

func userIDFromClaims(claims jwt.MapClaims) (uint, error) {
	for _, k := range []string{"sub", "user_id"} {
		switch v := claims[k].(type) {
		case float64:
			if v > 0 {
				return uint(v), nil
			}
		case string:
			if id, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64); err == nil && id > 0 {
				return uint(id), nil
			}
		}
	}
	return 0, errMissingUserID
}
