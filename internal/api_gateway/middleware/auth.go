package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/scrapyard-ledger/internal/config"
	"github.com/scrapyard-ledger/internal/domain/shared"
)

const (
	// ActorKey is the key used to store the authenticated actor in the context
	ActorKey = "actor"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("expired token")
	ErrMissingTenant = errors.New("token carries no tenant")
)

// ActorClaims are the custom claims carried by the access token. Tokens are
// issued by the external auth collaborator; this service only consumes them.
type ActorClaims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// Auth resolves the bearer token into a shared.Actor and stores it in the
// context. Any request it cannot resolve to an actor with a tenant is
// rejected: authentication fails closed.
func Auth(cfg *config.AuthConfig) gin.HandlerFunc {
	secret := []byte(cfg.JWTSecret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		actor, err := resolveActor(strings.TrimPrefix(header, "Bearer "), secret, cfg.Issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		c.Set(ActorKey, actor)
		c.Next()
	}
}

// resolveActor validates the token and extracts the actor identity
func resolveActor(tokenString string, secret []byte, issuer string) (shared.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActorClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithIssuer(issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return shared.Actor{}, ErrExpiredToken
		}
		return shared.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActorClaims)
	if !ok || !token.Valid {
		return shared.Actor{}, ErrInvalidToken
	}

	tenantID, err := uuid.Parse(claims.TenantID)
	if err != nil || tenantID == uuid.Nil {
		return shared.Actor{}, ErrMissingTenant
	}

	role := shared.Role(claims.Role)
	if role != shared.RoleOwner && role != shared.RoleEmployee {
		return shared.Actor{}, ErrInvalidToken
	}

	return shared.Actor{
		TenantID: tenantID,
		Role:     role,
		Name:     claims.Name,
	}, nil
}

// GetActor retrieves the authenticated actor from the gin context. The zero
// Actor it returns when unset fails every authorization check downstream.
func GetActor(c *gin.Context) shared.Actor {
	if v, exists := c.Get(ActorKey); exists {
		if actor, ok := v.(shared.Actor); ok {
			return actor
		}
	}
	return shared.Actor{}
}
