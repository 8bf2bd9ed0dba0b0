package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/repo"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

var testTables = repo.Tables{
	Users:    "users_svc",
	Groups:   "groups_svc",
	Commands: "commands_svc",
	Updates:  "updates_svc",
}

// newServiceDB opens a migrated temp-file SQLite database. A single
// connection keeps concurrent upserts from tripping SQLITE_BUSY.
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_%d.db", time.Now().UnixNano()))
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

	if err := repo.AutoMigrate(db, testTables); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	users    *UserService
	groups   *GroupService
	commands *CommandService
}

func newFixture(t *testing.T) *fixture {
	db := newServiceDB(t)
	return &fixture{
		db:       db,
		users:    NewUserService(db, testTables.Users),
		groups:   NewGroupService(db, testTables.Groups),
		commands: NewCommandService(db, testTables.Commands),
	}
}

// seedUser stores a user with the given external id, role and api key.
func (f *fixture) seedUser(t *testing.T, externalID string, role domain.Role, apiKey string) *domain.User {
	t.Helper()
	ctx := context.Background()
	u, err := f.users.Create(ctx, domain.User{ExternalID: externalID, Username: "u" + externalID, Role: role}, true)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if apiKey != "" {
		u, err = f.users.IssueAPIKey(ctx, u.UUID, apiKey)
		if err != nil {
			t.Fatalf("seed api key: %v", err)
		}
	}
	return u
}

func (f *fixture) seedCommand(t *testing.T, key, endpoint, owner string) *domain.Command {
	t.Helper()
	c, err := f.commands.Create(context.Background(), domain.Command{Command: key, Endpoint: endpoint, APIKey: owner})
	if err != nil {
		t.Fatalf("seed command: %v", err)
	}
	return c
}

// ----- fakes -----

type fakeMessenger struct {
	mu   sync.Mutex
	sent []telegram.Message
	err  error
}

func (m *fakeMessenger) SendMessage(_ context.Context, msg telegram.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *fakeMessenger) last(t *testing.T) telegram.Message {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("no message was sent")
	}
	return m.sent[len(m.sent)-1]
}

type relayCall struct {
	endpoint string
	body     []byte
}

type fakeRelay struct {
	mu    sync.Mutex
	calls []relayCall
	err   error
}

func (r *fakeRelay) Relay(_ context.Context, endpoint string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, relayCall{endpoint: endpoint, body: append([]byte(nil), body...)})
	return r.err
}

func (r *fakeRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// updateJSON builds a Telegram update whose message text starts with a bot
// command entity of cmdLen UTF-16 units. cmdLen 0 means no entity.
func updateJSON(updateID int64, fromID int64, chatID int64, chatType, text string, cmdLen int) []byte {
	entities := ""
	if cmdLen > 0 {
		entities = fmt.Sprintf(`,"entities":[{"type":"bot_command","offset":0,"length":%d}]`, cmdLen)
	}
	return []byte(fmt.Sprintf(`{"update_id":%d,"message":{"message_id":77,"date":1700000000,`+
		`"from":{"id":%d,"is_bot":false,"first_name":"Ana","username":"ana"},`+
		`"chat":{"id":%d,"type":%q,"title":"Team"},"text":%q%s}}`,
		updateID, fromID, chatID, chatType, text, entities))
}

func privateCmd(fromID int64, text string, cmdLen int) []byte {
	return updateJSON(1, fromID, fromID, "private", text, cmdLen)
}
