// Telegram HTTP handlers.
//
//   - POST /telegram/webhook         update delivery (relay)
//   - POST /api/v1/telegram/webhook  webhook registration (token auth)
//
// The update webhook acknowledges every decodable update with 200 so
// Telegram never redelivers because of a relay fault.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/http/middleware"
	"github.com/jotacemarin/botnorrea-v2/internal/services"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

// WebhookAck is the body returned for a processed update.
type WebhookAck struct {
	// Stage names where processing of the update stopped.
	Stage string `json:"stage" example:"relayed"`
}

// SetWebhookRequest is the JSON payload for registering the bot webhook.
type SetWebhookRequest struct {
	URL string `json:"url" example:"https://bot.example.com/telegram/webhook?id=1&apiKey=k"`
}

// SetWebhookResponse reports the registration before and after the change.
type SetWebhookResponse struct {
	Old *models.WebhookInfo     `json:"old"`
	New *telegram.WebhookResult `json:"new"`
}

// TelegramWebhook godoc
// @ID          telegramWebhook
// @Summary     Receive a Telegram update
// @Description Records the sender and chat, then relays registered slash-commands to their endpoint. Relay failures never change the 200 acknowledgement.
// @Tags        Telegram
// @Accept      json
// @Produce     json
//
// @Param       id      query  string  true  "Caller external id (ROOT, ADMIN or SERVICE)"
// @Param       apiKey  query  string  true  "Caller api key"
// @Param       body    body   object  true  "Telegram update"
//
// @Success     200  {object}  handlers.WebhookAck
// @Failure     400  {object}  handlers.ErrorResponse "Missing or undecodable update"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Router      /telegram/webhook [post]
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	raw, found := rawUpdate(c)
	if !found {
		return
	}
	if h.dispatch == nil {
		unavailable(c)
		return
	}
	stage, err := h.dispatch.Handle(c.Request.Context(), raw)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, WebhookAck{Stage: string(stage)})
}

// SetWebhook godoc
// @ID          setWebhook
// @Summary     Register the bot webhook
// @Description Replaces the Telegram webhook URL and returns the previous registration alongside the outcome.
// @Tags        Telegram
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.SetWebhookRequest  true  "Webhook URL"
//
// @Success     200  {object}  handlers.SetWebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse "Missing URL"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse "Bot API failure"
// @Router      /telegram/webhook [post]
func (h *Handlers) SetWebhook(c *gin.Context) {
	caller, found := middleware.CallerFrom(c)
	if !found || !auth.IsElevated(caller) {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
		return
	}
	var req SetWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "url required")
		return
	}
	if h.webhook == nil {
		unavailable(c)
		return
	}

	ctx := c.Request.Context()
	old, err := h.webhook.WebhookInfo(ctx)
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
		return
	}
	res, err := h.webhook.SetWebhook(ctx, strings.TrimSpace(req.URL))
	if err != nil {
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
		return
	}
	ok(c, http.StatusOK, SetWebhookResponse{Old: old, New: res})
}
