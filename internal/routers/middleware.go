package routers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/talentbridge-io/talentbridge/internal/auth"
	"github.com/talentbridge-io/talentbridge/internal/firewall"
	"github.com/talentbridge-io/talentbridge/internal/models"
	"github.com/talentbridge-io/talentbridge/internal/util/cache"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// gin.Context keys set by the JWT middleware
const (
	AuthUserName string = "_talentbridge.UserName"
	AuthIsAdmin  string = "_talentbridge.IsAdmin"
)

type Claims struct {
	Scope      string   `json:"scope"`
	FullName   string   `json:"name"`
	UserName   string   `json:"preferred_username"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Subject    string   `json:"sub"`
	Roles      []string `json:"roles"`
}

// ValidateJWT verifies the bearer token and stores the subject and admin
// marker on the context.
func ValidateJWT(logger *zap.SugaredLogger, verifier *oidc.IDTokenVerifier, clientIdWeb string, clientIdCli string, adminRole string) func(*gin.Context) {
	return func(c *gin.Context) {
		authz := c.Request.Header.Get("Authorization")
		if authz == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authz, " ")
		if len(parts) != 2 {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		if strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		token, err := verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		for _, audience := range token.Audience {
			if audience != clientIdWeb && audience != clientIdCli {
				c.AbortWithStatus(http.StatusUnauthorized)
				return
			}
		}

		var claims Claims
		if err := token.Claims(&claims); err != nil {
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		admin := false
		for _, role := range claims.Roles {
			if adminRole != "" && role == adminRole {
				admin = true
				break
			}
		}

		c.Set(gin.AuthUserKey, claims.Subject)
		c.Set(AuthUserName, claims.UserName)
		c.Set(AuthIsAdmin, admin)
		c.Next()
	}
}

// actorCacheTTL bounds how long a revoked sponsor permission can keep
// working after the database changed.
const actorCacheTTL = 30 * time.Second

// ResolveActor turns the verified subject into the platform actor and
// stores it on the context. Identities that verify at the idp but have no
// candidate or sponsor record are rejected here, before any handler runs.
func ResolveActor(logger *zap.SugaredLogger, db *gorm.DB) func(*gin.Context) {
	actors := cache.NewRWMutexTTLCache[string, *auth.Actor](actorCacheTTL)
	fw := firewall.New(logger, db)
	return func(c *gin.Context) {
		idpID := c.GetString(gin.AuthUserKey)
		admin := c.GetBool(AuthIsAdmin)

		if actor, found := actors.Get(idpID); found && !admin {
			c.Set(auth.ActorKey, actor)
			c.Next()
			return
		}

		actor, err := auth.Resolve(c.Request.Context(), db, fw, idpID, admin)
		if err != nil {
			if errors.Is(err, auth.ErrUnknownIdentity) {
				c.AbortWithStatusJSON(http.StatusForbidden, models.NewNotAllowedError("identity is not registered"))
				return
			}
			logger.Errorw("failed to resolve actor", "error", err)
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if !admin {
			actors.Put(idpID, actor)
		}
		c.Set(auth.ActorKey, actor)
		c.Next()
	}
}
