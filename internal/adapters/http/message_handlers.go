package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/avdeev/chatline/internal/domain"
	"github.com/avdeev/chatline/internal/store"
)

// Sidebar returns every other user with their last message and unread count,
// most recent conversation first. Cache-aside per user; invalidated on send
// and mark-read.
func (api *API) Sidebar(c *gin.Context) {
	me := currentUser(c)
	key := "sidebar:" + me.ID

	var cached []*store.SidebarEntry
	if hit, err := api.Cache.Get(c.Request.Context(), key, &cached); err == nil && hit {
		c.JSON(http.StatusOK, cached)
		return
	} else if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("sidebar cache read failed")
	}

	others, err := api.Users.ListOthers(me.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("sidebar user list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	entries, err := api.Messages.Sidebar(others, me.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("sidebar query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := api.Cache.Set(c.Request.Context(), key, entries); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("sidebar cache write failed")
	}
	c.JSON(http.StatusOK, entries)
}

func (api *API) Conversation(c *gin.Context) {
	me := currentUser(c)
	otherID := c.Param("id")

	msgs, err := api.Messages.Conversation(me.ID, otherID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("conversation query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
	Audio string `json:"audio"`
}

// SendMessage persists the message, then hands the stored record to the hub.
// The relay hop is fire-and-forget: an offline receiver simply fetches the
// conversation next time.
func (api *API) SendMessage(c *gin.Context) {
	me := currentUser(c)
	receiverID := c.Param("id")

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	msg := domain.NewMessage(me.ID, receiverID, req.Text, req.Image, req.Audio)
	if msg.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		return
	}

	if err := api.Messages.Create(msg); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("message create failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	api.Hub.NotifyNewMessage(msg)
	api.invalidateSidebar(c, me.ID, receiverID)
	c.JSON(http.StatusCreated, msg)
}

// MarkRead flips unread messages from the conversation peer to read. The
// read receipt only fires when at least one message actually changed.
func (api *API) MarkRead(c *gin.Context) {
	me := currentUser(c)
	otherID := c.Param("id")

	changed, err := api.Messages.MarkRead(otherID, me.ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("mark read failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if changed > 0 {
		api.Hub.NotifyMessagesRead(me.ID, otherID)
		api.invalidateSidebar(c, me.ID, otherID)
	}
	c.JSON(http.StatusOK, gin.H{"message": "messages marked as read"})
}

func (api *API) invalidateSidebar(c *gin.Context, userIDs ...string) {
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = "sidebar:" + id
	}
	if err := api.Cache.Delete(c.Request.Context(), keys...); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("sidebar cache invalidation failed")
	}
}
