// User record façade.
//
//   - GET    /users/{id}  read (self or elevated), weak ETag support
//   - POST   /users       create (elevated)
//   - PUT    /users       update (self or elevated), PATCH alike
//   - DELETE /users/{id}  remove (elevated)
//
// A path id replaces the body with {"uuid": id} for every verb.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/http/middleware"
	"github.com/jotacemarin/botnorrea-v2/internal/services"
)

// Users godoc
// @ID          users
// @Summary     User record façade
// @Description Verb router over user records. Non-elevated callers may only read or update their own record; create and delete need ROOT or ADMIN.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id             path    string            false "User UUID"
// @Param       If-None-Match  header  string            false "Return 304 if ETag matches"
// @Param       body           body    services.UserPatch false "User payload (ignored when id is in the path)"
//
// @Success     200  {object}  domain.User
// @Success     201  {object}  domain.User
// @Success     204  {string}  string "No Content"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     405  {object}  handlers.ErrorResponse "Method not allowed"
// @Failure     422  {object}  handlers.ErrorResponse "Ambiguous record"
// @Failure     502  {object}  handlers.ErrorResponse "Missing body or corrupt record"
// @Router      /users/{id} [get]
// @Router      /users [post]
// @Router      /users [put]
// @Router      /users [patch]
// @Router      /users/{id} [delete]
func (h *Handlers) Users(c *gin.Context) {
	raw, found := crudBody(c)
	if !found {
		return
	}
	caller, found := middleware.CallerFrom(c)
	if !found {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
		return
	}
	if h.users == nil {
		unavailable(c)
		return
	}
	elevated := auth.IsElevated(caller)

	switch c.Request.Method {
	case http.MethodGet:
		var key keyPayload
		if !decode(c, raw, &key) {
			return
		}
		if !elevated && key.UUID != caller.UUID {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
			return
		}
		h.getUser(c, key.UUID)

	case http.MethodPost:
		if !elevated {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
			return
		}
		var in domain.User
		if !decode(c, raw, &in) {
			return
		}
		u, err := h.users.Create(c.Request.Context(), in, elevated)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusCreated, u)

	case http.MethodPut, http.MethodPatch:
		var p services.UserPatch
		if !decode(c, raw, &p) {
			return
		}
		if !elevated && p.UUID != caller.UUID {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
			return
		}
		u, err := h.users.Update(c.Request.Context(), p, elevated)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusOK, u)

	case http.MethodDelete:
		if !elevated {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, services.ErrUnauthorized.Error())
			return
		}
		var key keyPayload
		if !decode(c, raw, &key) {
			return
		}
		if err := h.users.Remove(c.Request.Context(), key.UUID); err != nil {
			failErr(c, err)
			return
		}
		noContent(c)
	}
}

func (h *Handlers) getUser(c *gin.Context, id string) {
	u, err := h.users.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	if notModified(c, fmt.Sprintf(`W/"user:%s:%d"`, u.UUID, u.UpdatedAt)) {
		return
	}
	ok(c, http.StatusOK, u)
}
