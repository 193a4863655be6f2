package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/domain"
)

const authCookie = "jwt"

// AuthRequired validates the session cookie and loads the user onto the
// request context.
func (api *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(authCookie)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		claims, err := api.Tokens.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		user, err := api.Users.FindByID(claims.UserID)
		if err != nil {
			log.Warn().Err(err).Str("module", "adapters.http").Str("user", claims.UserID).Msg("token for unknown user")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	return c.MustGet("user").(*domain.User)
}

func (api *API) setAuthCookie(c *gin.Context, token string) {
	c.SetCookie(authCookie, token, int(api.Tokens.TTL().Seconds()), "/", "", false, true)
}

func (api *API) clearAuthCookie(c *gin.Context) {
	c.SetCookie(authCookie, "", -1, "/", "", false, true)
}
