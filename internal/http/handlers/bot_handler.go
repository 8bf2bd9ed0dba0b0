// Bot management HTTP handlers.
//
// Each route receives the Telegram update carrying a management command
// (/commands_create, /commands_list, /commands_remove, /create_api_key) and
// answers with the status of the operation. The chat reply is sent by the
// service.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CreateCommand godoc
// @ID          botCreateCommand
// @Summary     Register a command from chat
// @Description Handles "/commands_create <name> <url> [description]" sent in a private chat by a user holding an api key.
// @Tags        Bot
// @Accept      json
// @Produce     json
//
// @Param       id      query  string  true  "Caller external id (ROOT or ADMIN)"
// @Param       apiKey  query  string  true  "Caller api key"
// @Param       body    body   object  true  "Telegram update"
//
// @Success     200  {object}  domain.Command
// @Failure     400  {object}  handlers.ErrorResponse "Bad usage, invalid URL or probe failure"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Not a private chat, missing api key or command exists"
// @Router      /botnorrea/commands/create [post]
func (h *Handlers) CreateCommand(c *gin.Context) {
	raw, found := rawUpdate(c)
	if !found || !h.botReady(c) {
		return
	}
	cmd, err := h.bot.CreateCommand(c.Request.Context(), raw)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, cmd)
}

// ListCommands godoc
// @ID          botListCommands
// @Summary     List the sender's commands
// @Tags        Bot
// @Accept      json
// @Produce     json
//
// @Param       id      query  string  true  "Caller external id (ROOT or ADMIN)"
// @Param       apiKey  query  string  true  "Caller api key"
// @Param       body    body   object  true  "Telegram update"
//
// @Success     200  {array}   domain.Command
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Missing api key"
// @Failure     404  {object}  handlers.ErrorResponse "No commands"
// @Router      /botnorrea/commands/list [post]
func (h *Handlers) ListCommands(c *gin.Context) {
	raw, found := rawUpdate(c)
	if !found || !h.botReady(c) {
		return
	}
	items, err := h.bot.ListCommands(c.Request.Context(), raw)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// RemoveCommand godoc
// @ID          botRemoveCommand
// @Summary     Remove one of the sender's commands
// @Tags        Bot
// @Accept      json
//
// @Param       id      query  string  true  "Caller external id (ROOT or ADMIN)"
// @Param       apiKey  query  string  true  "Caller api key"
// @Param       body    body   object  true  "Telegram update"
//
// @Success     200  {string}  string "OK"
// @Failure     400  {object}  handlers.ErrorResponse "Missing argument"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized or not the owner"
// @Failure     403  {object}  handlers.ErrorResponse "Not a private chat or missing api key"
// @Failure     404  {object}  handlers.ErrorResponse "Unknown command"
// @Router      /botnorrea/commands/remove [post]
func (h *Handlers) RemoveCommand(c *gin.Context) {
	raw, found := rawUpdate(c)
	if !found || !h.botReady(c) {
		return
	}
	if err := h.bot.RemoveCommand(c.Request.Context(), raw); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// CreateAPIKey godoc
// @ID          botCreateAPIKey
// @Summary     Issue an api key to the sender
// @Description The credentials are delivered in the private chat only; the response carries no secret.
// @Tags        Bot
// @Accept      json
//
// @Param       id      query  string  true  "Caller external id (ROOT or ADMIN)"
// @Param       apiKey  query  string  true  "Caller api key"
// @Param       body    body   object  true  "Telegram update"
//
// @Success     200  {string}  string "OK"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Not a private chat or key already issued"
// @Failure     404  {object}  handlers.ErrorResponse "Unknown sender"
// @Router      /botnorrea/api-key [post]
func (h *Handlers) CreateAPIKey(c *gin.Context) {
	raw, found := rawUpdate(c)
	if !found || !h.botReady(c) {
		return
	}
	if _, err := h.bot.CreateAPIKey(c.Request.Context(), raw); err != nil {
		failErr(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *Handlers) botReady(c *gin.Context) bool {
	if h.bot == nil {
		unavailable(c)
		return false
	}
	return true
}
