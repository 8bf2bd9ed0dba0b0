// Command record façade.
//
// Every caller must hold an api key. Owners and elevated callers see full
// records; everyone else gets the public view without uuid, owner key and
// description.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/http/middleware"
	"github.com/jotacemarin/botnorrea-v2/internal/services"
)

// commandView shapes cmd for caller.
func commandView(caller *domain.User, cmd *domain.Command) any {
	if services.CanManage(caller, cmd) {
		return cmd
	}
	return cmd.Public()
}

// Commands godoc
// @ID          commands
// @Summary     Command record façade
// @Description Verb router over registered commands. Create stores the normalized key, enables the command and assigns the caller's api key as owner. Update and delete require the owner or an elevated caller; deleting an unknown uuid succeeds.
// @Tags        Commands
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                false "Command UUID"
// @Param       body  body  services.CommandPatch false "Command payload (ignored when id is in the path)"
//
// @Success     200  {object}  domain.Command
// @Success     201  {object}  domain.Command
// @Success     204  {string}  string "No Content"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request or invalid URL"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object}  handlers.ErrorResponse "Command already exists"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     405  {object}  handlers.ErrorResponse "Method not allowed"
// @Failure     422  {object}  handlers.ErrorResponse "Ambiguous record"
// @Failure     502  {object}  handlers.ErrorResponse "Missing body or corrupt record"
// @Router      /commands/{id} [get]
// @Router      /commands [post]
// @Router      /commands [put]
// @Router      /commands [patch]
// @Router      /commands/{id} [delete]
func (h *Handlers) Commands(c *gin.Context) {
	raw, found := crudBody(c)
	if !found {
		return
	}
	caller, found := middleware.CallerFrom(c)
	if !found || !caller.HasAPIKey() {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
		return
	}
	if h.commands == nil {
		unavailable(c)
		return
	}
	ctx := c.Request.Context()

	switch c.Request.Method {
	case http.MethodGet:
		var key keyPayload
		if !decode(c, raw, &key) {
			return
		}
		cmd, err := h.commands.GetByUUID(ctx, key.UUID)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, commandView(caller, cmd))

	case http.MethodPost:
		var in domain.Command
		if !decode(c, raw, &in) {
			return
		}
		in.APIKey = caller.Key()
		cmd, err := h.commands.Create(ctx, in)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusCreated, cmd)

	case http.MethodPut, http.MethodPatch:
		var p services.CommandPatch
		if !decode(c, raw, &p) {
			return
		}
		cmd, err := h.commands.Update(ctx, p, caller)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, commandView(caller, cmd))

	case http.MethodDelete:
		var key keyPayload
		if !decode(c, raw, &key) {
			return
		}
		cmd, err := h.commands.GetByUUID(ctx, key.UUID)
		if errors.Is(err, services.ErrNotFound) {
			noContent(c)
			return
		}
		if err != nil {
			failErr(c, err)
			return
		}
		if !services.CanManage(caller, cmd) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
			return
		}
		if err := h.commands.Remove(ctx, cmd.Command); err != nil {
			failErr(c, err)
			return
		}
		noContent(c)
	}
}
