package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/phillip/event-manager-go/identity"
	"github.com/phillip/event-manager-go/models"
	"github.com/phillip/event-manager-go/utils"
)

const (
	PrincipalKey = "principal"
	UserIDKey    = "user_id"
)

// AuthMiddleware requires "Authorization: Bearer <token>" and attaches the
// verified principal to the context. Nothing is cached between requests.
func AuthMiddleware(verifier identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := identity.TokenFromHeader(c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(utils.Unauthorized("missing or malformed authorization header"))
			c.Abort()
			return
		}

		principal, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("token rejected")
			_ = c.Error(utils.Unauthorized("invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(PrincipalKey, principal)
		c.Set(UserIDKey, principal.UID)
		c.Next()
	}
}

// CurrentPrincipal returns the principal set by AuthMiddleware.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok && p.UID != ""
}
