package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthorizeRequest is the custom-authorizer input.
type AuthorizeRequest struct {
	AuthorizationToken string `json:"authorizationToken" example:"Bearer MTIzNDU6a2V5"`
	MethodArn          string `json:"methodArn"          example:"GET /api/v1/users/:id"`
}

// Authorize godoc
// @ID          authorize
// @Summary     Evaluate a bearer token
// @Description Returns the Allow or Deny policy for the token and resource. Failures never surface as errors, only as Deny.
// @Tags        Auth
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.AuthorizeRequest  true  "Token and resource"
//
// @Success     200  {object}  auth.Policy
// @Failure     400  {object}  handlers.ErrorResponse "Invalid JSON body"
// @Router      /authorize [post]
func (h *Handlers) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if h.authorizer == nil {
		unavailable(c)
		return
	}
	ok(c, http.StatusOK, h.authorizer.Authorize(c.Request.Context(), req.AuthorizationToken, req.MethodArn))
}
