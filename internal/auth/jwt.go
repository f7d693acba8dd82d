package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"parking-lpr-service/internal/config"
)

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"

	ctxClaimsKey = "claims"
)

var ErrBadCredentials = errors.New("invalid username or password")

type JWTService struct {
	secret   []byte
	tokenTTL time.Duration
	users    map[string]config.UserConfig
}

func NewJWTService(cfg config.AuthConfig) *JWTService {
	users := make(map[string]config.UserConfig, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Role == "" {
			u.Role = RoleStaff
		}
		users[u.Username] = u
	}
	return &JWTService{
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: time.Duration(cfg.TokenTTLMin) * time.Minute,
		users:    users,
	}
}

// Authenticate checks operator credentials and issues a signed token carrying
// the role claim.
func (j *JWTService) Authenticate(username, password string) (string, error) {
	u, ok := j.users[username]
	if !ok || u.Password != password {
		return "", ErrBadCredentials
	}
	return j.generateToken(username, u.Role)
}

func (j *JWTService) generateToken(sub, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  "parking-lpr-service",
		"sub":  sub,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(j.tokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTService) parseToken(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// Middleware rejects requests without a valid bearer token.
func Middleware(j *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		claims, err := j.parseToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxClaimsKey, claims)
		c.Next()
	}
}

// RequireRole gates an endpoint on the token's role claim. Runs after
// Middleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.Get(ctxClaimsKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			return
		}
		mc, _ := claims.(jwt.MapClaims)
		if got, _ := mc["role"].(string); got != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
