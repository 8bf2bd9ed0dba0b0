package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/http/middleware"
	"github.com/jotacemarin/botnorrea-v2/internal/repo"
	"github.com/jotacemarin/botnorrea-v2/internal/services"
)

var handlerTables = repo.Tables{
	Users:    "users_h",
	Groups:   "groups_h",
	Commands: "commands_h",
	Updates:  "updates_h",
}

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := repo.AutoMigrate(db, handlerTables); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// api is a router with the façades mounted behind the real bearer authorizer.
type api struct {
	r        *gin.Engine
	users    *services.UserService
	commands *services.CommandService
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	users := services.NewUserService(db, handlerTables.Users)
	commands := services.NewCommandService(db, handlerTables.Commands)
	authz := auth.NewAuthorizer(users, "")

	h := New(Deps{Users: users, Commands: commands, Authorizer: authz})

	r := gin.New()
	r.Use(middleware.RequestID())
	g := r.Group("/api/v1", CRUDMethods(), middleware.Authorize(authz))
	g.Any("/users", h.Users)
	g.Any("/users/:id", h.Users)
	g.Any("/commands", h.Commands)
	g.Any("/commands/:id", h.Commands)
	r.POST("/authorize", h.Authorize)

	return &api{r: r, users: users, commands: commands}
}

// seed stores a user holding key (if non-empty) and role.
func (a *api) seed(t *testing.T, extID, key string, role domain.Role) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := a.users.Create(ctx, domain.User{ExternalID: extID, Username: "user" + extID, Role: role}, true)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if key == "" {
		return u
	}
	u, err = a.users.IssueAPIKey(ctx, u.UUID, key)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	return u
}

func (a *api) seedCommand(t *testing.T, name, ownerKey string) *domain.Command {
	t.Helper()
	cmd, err := a.commands.Create(context.Background(), domain.Command{
		Command:     name,
		Endpoint:    "https://hooks.example.com" + name,
		Description: "desc " + name,
		APIKey:      ownerKey,
	})
	if err != nil {
		t.Fatalf("seed command: %v", err)
	}
	return cmd
}

// do performs a request as u (nil sends no credentials).
func (a *api) do(t *testing.T, method, path string, u *domain.User, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		req.Header.Set("Authorization", auth.EncodeToken(u.ExternalID, u.Key()))
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d; want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decodeBody[ErrorResponse](t, w).Code
}
