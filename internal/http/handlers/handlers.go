// Package handlers exposes the HTTP endpoints of the bot backend:
//   - /users and /commands record façades (one verb router per resource)
//   - the Telegram update webhook and the bot management routes
//   - webhook registration and the token authorizer contract
//
// Handlers are transport-thin: they resolve the caller stored by the auth
// middleware, decode input, call application services and translate results
// (or service errors, see statusFor) into HTTP responses.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/services"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

//
// Service contracts (context-aware)
//

// UserService defines the user record operations used by the users façade.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, in domain.User, asElevated bool) (*domain.User, error)
	Update(ctx context.Context, p services.UserPatch, asElevated bool) (*domain.User, error)
	Remove(ctx context.Context, id string) error
}

// CommandService defines the command registry operations used by the
// commands façade.
type CommandService interface {
	GetByUUID(ctx context.Context, id string) (*domain.Command, error)
	Create(ctx context.Context, in domain.Command) (*domain.Command, error)
	Update(ctx context.Context, p services.CommandPatch, caller *domain.User) (*domain.Command, error)
	Remove(ctx context.Context, key string) error
}

// UpdateDispatcher relays raw Telegram updates.
type UpdateDispatcher interface {
	Handle(ctx context.Context, raw []byte) (services.Stage, error)
}

// BotManager runs the chat management commands. Each call receives the raw
// update that carried the command.
type BotManager interface {
	CreateCommand(ctx context.Context, raw []byte) (*domain.Command, error)
	ListCommands(ctx context.Context, raw []byte) ([]domain.Command, error)
	RemoveCommand(ctx context.Context, raw []byte) error
	CreateAPIKey(ctx context.Context, raw []byte) (*domain.User, error)
}

// WebhookManager reads and replaces the bot's webhook registration.
type WebhookManager interface {
	WebhookInfo(ctx context.Context) (*models.WebhookInfo, error)
	SetWebhook(ctx context.Context, url string) (*telegram.WebhookResult, error)
}

// TokenAuthorizer evaluates bearer tokens into policies.
type TokenAuthorizer interface {
	Authorize(ctx context.Context, token, methodArn string) auth.Policy
}

//
// Handler wiring
//

// Deps carries the services behind the endpoints. A nil dependency leaves
// its endpoints answering 500.
type Deps struct {
	Users      UserService
	Commands   CommandService
	Dispatch   UpdateDispatcher
	Bot        BotManager
	Webhook    WebhookManager
	Authorizer TokenAuthorizer
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	users      UserService
	commands   CommandService
	dispatch   UpdateDispatcher
	bot        BotManager
	webhook    WebhookManager
	authorizer TokenAuthorizer
}

// New constructs and returns a Handlers instance bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		users:      d.Users,
		commands:   d.Commands,
		dispatch:   d.Dispatch,
		bot:        d.Bot,
		webhook:    d.Webhook,
		authorizer: d.Authorizer,
	}
}

//
// Façade helpers
//

var crudMethods = map[string]struct{}{
	http.MethodGet:    {},
	http.MethodPost:   {},
	http.MethodPut:    {},
	http.MethodPatch:  {},
	http.MethodDelete: {},
}

// CRUDMethods rejects verbs outside GET/POST/PUT/PATCH/DELETE with 405. It
// runs ahead of authentication on façade routes registered with Any.
func CRUDMethods() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := crudMethods[c.Request.Method]; !ok {
			c.Header("Allow", "GET, POST, PUT, PATCH, DELETE")
			fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
			return
		}
		c.Next()
	}
}

// keyPayload is the payload synthesized from a path id.
type keyPayload struct {
	UUID string `json:"uuid"`
}

// crudBody returns the payload of a façade request: {"uuid": <id>} when the
// path carries an id (the body is then ignored), the raw body otherwise. A
// request with neither is answered with 502.
func crudBody(c *gin.Context) ([]byte, bool) {
	if id := strings.TrimSpace(c.Param("id")); id != "" {
		b, _ := json.Marshal(keyPayload{UUID: id})
		return b, true
	}
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return nil, false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		fail(c, http.StatusBadGateway, ErrCodeBadGateway, "missing body and path id")
		return nil, false
	}
	return raw, true
}

// decode unmarshals a façade payload into v, answering 400 on failure.
func decode(c *gin.Context, raw []byte, v any) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// rawUpdate reads a required request body.
func rawUpdate(c *gin.Context) ([]byte, bool) {
	raw, err := c.GetRawData()
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "request body required")
		return nil, false
	}
	return raw, true
}

func unavailable(c *gin.Context) {
	fail(c, http.StatusInternalServerError, ErrCodeInternal, "service not configured")
}
