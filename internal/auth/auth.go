package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"daochat_go_backend/internal/models"
	"daochat_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
)

// Middleware verifies Supabase-issued HMAC JWTs and resolves the bearer to a
// local user record.
type Middleware struct {
	secret []byte
	users  *services.UserService
}

func NewMiddleware(jwtSecret string, users *services.UserService) *Middleware {
	return &Middleware{secret: []byte(jwtSecret), users: users}
}

// Handler authenticates the request. The token comes from the Authorization
// header, or from the "token" query parameter for websocket upgrades where
// browsers cannot set headers.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		claims, err := m.verifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		authID, _ := claims["sub"].(string)
		email, _ := claims["email"].(string)
		if authID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token missing subject"})
			c.Abort()
			return
		}

		user, err := m.users.CreateOrUpdateUser(authID, email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process user information"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}

func (m *Middleware) verifyToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// CurrentUser pulls the authenticated user out of the gin context.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
