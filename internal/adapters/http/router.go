// Package http wires the REST API and the WebSocket endpoint. The message
// handlers are the persistence collaborators from the relay's point of view:
// they persist first, then hand the stored record to the hub for its single
// forwarding hop.
package http

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/avdeev/chatline/internal/adapters/ws"
	"github.com/avdeev/chatline/internal/auth"
	"github.com/avdeev/chatline/internal/cache"
	"github.com/avdeev/chatline/internal/config"
	"github.com/avdeev/chatline/internal/relay"
	"github.com/avdeev/chatline/internal/store"
)

// API carries the collaborators the handlers need.
type API struct {
	Users    *store.UserRepo
	Messages *store.MessageRepo
	Hub      *relay.Hub
	Tokens   *auth.Manager
	Cache    *cache.Cache
}

func SetupRouter(ctx context.Context, cfg *config.Config, api *API, wsCtl *ws.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	authRequired := api.AuthRequired()

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/signup", api.Signup)
		authGroup.POST("/login", api.Login)
		authGroup.POST("/logout", api.Logout)
		authGroup.GET("/check", authRequired, api.Check)
		authGroup.PUT("/update-profile", authRequired, api.UpdateProfile)
	}

	msgGroup := r.Group("/api/messages", authRequired)
	{
		msgGroup.GET("/users", api.Sidebar)
		msgGroup.GET("/:id", api.Conversation)
		msgGroup.POST("/send/:id", api.SendMessage)
		msgGroup.PUT("/read/:id", api.MarkRead)
	}

	r.GET("/ws", func(c *gin.Context) {
		wsCtl.Handle(ctx, c)
	})

	return r
}
