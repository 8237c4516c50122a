package exts

import (
	"fmt"
	"strconv"
	"strings"

	"git.solsynth.dev/hypernet/chatcore/pkg/internal/models"
	"git.solsynth.dev/hypernet/chatcore/pkg/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
)

// AccessClaims is what the identity provider puts into access tokens.
type AccessClaims struct {
	Name   string `json:"name"`
	Nick   string `json:"nick"`
	Avatar string `json:"avatar"`
	jwt.RegisteredClaims
}

func ParseAccessToken(tk string) (AccessClaims, error) {
	var claims AccessClaims
	token, err := jwt.ParseWithClaims(tk, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return []byte(viper.GetString("security.access_token_secret")), nil
	})
	if err != nil {
		return claims, err
	} else if !token.Valid {
		return claims, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func extractToken(c *fiber.Ctx) string {
	if val := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(val, "Bearer ") {
		return strings.TrimSpace(val[7:])
	}
	// Browsers cannot set headers on websocket upgrades
	return c.Query("tk")
}

// AuthMiddleware resolves the bearer token when one was sent.
// Routes that need a user call EnsureAuthenticated.
func AuthMiddleware(c *fiber.Ctx) error {
	tk := extractToken(c)
	if len(tk) == 0 {
		return c.Next()
	}

	claims, err := ParseAccessToken(tk)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, fmt.Sprintf("invalid access token: %v", err))
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid access token subject")
	}

	if len(claims.Name) == 0 {
		claims.Name = fmt.Sprintf("user%d", id)
	}

	profile, err := services.LinkProfile(c.UserContext(), models.Profile{
		ID:     uint(id),
		Name:   claims.Name,
		Nick:   claims.Nick,
		Avatar: claims.Avatar,
	})
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	c.Locals("user", profile)
	c.Locals("credential", tk)
	return c.Next()
}

func EnsureAuthenticated(c *fiber.Ctx) error {
	if _, ok := c.Locals("user").(models.Profile); !ok {
		return fiber.NewError(fiber.StatusUnauthorized, services.ErrUnauthenticated.Error())
	}
	return nil
}

func GetUser(c *fiber.Ctx) models.Profile {
	user, _ := c.Locals("user").(models.Profile)
	return user
}

func GetCredential(c *fiber.Ctx) string {
	tk, _ := c.Locals("credential").(string)
	return tk
}
