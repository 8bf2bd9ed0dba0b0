package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

var testTables = Tables{
	Users:    "users_test",
	Groups:   "groups_test",
	Commands: "commands_test",
	Updates:  "updates_test",
}

func newKVDB(t *testing.T, migrate bool) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("kv_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if migrate {
		if err := AutoMigrate(db, testTables); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func strptr(s string) *string { return &s }

func TestGet_EmptyKey(t *testing.T) {
	db := newKVDB(t, true)
	for _, k := range []Key{{}, {Name: "uuid"}, {Name: "uuid", Value: "  "}} {
		if _, err := Get[domain.User](context.Background(), db, testTables.Users, k); !errors.Is(err, ErrEmptyKey) {
			t.Fatalf("Get(%+v) err = %v; want ErrEmptyKey", k, err)
		}
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	db := newKVDB(t, true)
	ctx := context.Background()

	u := &domain.User{
		UUID:       "u-1",
		ExternalID: "100",
		Username:   "alice",
		APIKey:     strptr("k1"),
		Role:       domain.RoleUser,
		CreatedAt:  1700000000000,
		UpdatedAt:  1700000000000,
	}
	if err := Put(ctx, db, testTables.Users, u); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := Get[domain.User](ctx, db, testTables.Users, Key{Name: "uuid", Value: "u-1"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ExternalID != "100" || got.Username != "alice" || got.Key() != "k1" || got.Role != domain.RoleUser {
		t.Fatalf("round-trip mismatch: %+v", got)
	}
	if got.CreatedAt != 1700000000000 || got.UpdatedAt != 1700000000000 {
		t.Fatalf("timestamps not preserved: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := newKVDB(t, true)
	_, err := Get[domain.User](context.Background(), db, testTables.Users, Key{Name: "uuid", Value: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGet_Error_NoTable(t *testing.T) {
	db := newKVDB(t, false)
	_, err := Get[domain.User](context.Background(), db, testTables.Users, Key{Name: "uuid", Value: "x"})
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected raw DB error without table, got %v", err)
	}
}

func TestPut_ReplacesWholeItem(t *testing.T) {
	db := newKVDB(t, true)
	ctx := context.Background()

	first := &domain.Command{UUID: "c-1", Command: "/x", Endpoint: "https://a", Description: "d", IsEnabled: true, APIKey: "k", CreatedAt: 1, UpdatedAt: 1}
	if err := Put(ctx, db, testTables.Commands, first); err != nil {
		t.Fatalf("Put first: %v", err)
	}
	second := &domain.Command{UUID: "c-1", Command: "/x", Endpoint: "https://b", IsEnabled: false, APIKey: "k", CreatedAt: 1, UpdatedAt: 2}
	if err := Put(ctx, db, testTables.Commands, second); err != nil {
		t.Fatalf("Put second: %v", err)
	}

	got, err := Get[domain.Command](ctx, db, testTables.Commands, Key{Name: "command", Value: "/x"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Endpoint != "https://b" || got.Description != "" || got.IsEnabled || got.UpdatedAt != 2 {
		t.Fatalf("expected full replacement, got %+v", got)
	}
}

func TestUpdate_SparseDiff(t *testing.T) {
	db := newKVDB(t, true)
	ctx := context.Background()

	u := &domain.User{UUID: "u-1", ExternalID: "100", Username: "alice", Role: domain.RoleUser, CreatedAt: 10, UpdatedAt: 10}
	if err := Put(ctx, db, testTables.Users, u); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := Update[domain.User](ctx, db, testTables.Users, Key{Name: "uuid", Value: "u-1"}, Attributes{
		"username":   "alice2",
		"role":       nil, // dropped
		"uuid":       "other",
		"updated_at": int64(20),
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.UUID != "u-1" || got.Username != "alice2" || got.Role != domain.RoleUser || got.ExternalID != "100" {
		t.Fatalf("unexpected record after update: %+v", got)
	}
	if got.CreatedAt != 10 || got.UpdatedAt != 20 {
		t.Fatalf("timestamps: %+v", got)
	}
}

func TestUpdate_EmptyDiff_ReturnsCurrent(t *testing.T) {
	db := newKVDB(t, true)
	ctx := context.Background()

	if err := Put(ctx, db, testTables.Groups, &domain.Group{UUID: "g-1", ExternalID: "-5", Title: "T"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := Update[domain.Group](ctx, db, testTables.Groups, Key{Name: "uuid", Value: "g-1"}, Attributes{"title": nil})
	if err != nil || got.Title != "T" {
		t.Fatalf("expected unchanged group, got %+v err=%v", got, err)
	}
}

func TestUpdate_Missing_ReturnsNotFound(t *testing.T) {
	db := newKVDB(t, true)
	_, err := Update[domain.Group](context.Background(), db, testTables.Groups, Key{Name: "uuid", Value: "nope"}, Attributes{"title": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete_IdempotentOnMissing(t *testing.T) {
	db := newKVDB(t, true)
	ctx := context.Background()

	if err := Put(ctx, db, testTables.Groups, &domain.Group{UUID: "g-1", ExternalID: "-5"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	key := Key{Name: "uuid", Value: "g-1"}
	if err := Delete[domain.Group](ctx, db, testTables.Groups, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := Delete[domain.Group](ctx, db, testTables.Groups, key); err != nil {
		t.Fatalf("second Delete should be a no-op, got %v", err)
	}
	if _, err := Get[domain.Group](ctx, db, testTables.Groups, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestScan_FilterAndProjection(t *testing.T) {
	db := newKVDB(t, true)
	ctx := context.Background()

	seed := []*domain.User{
		{UUID: "a", ExternalID: "1", Username: "one", Role: domain.RoleUser},
		{UUID: "b", ExternalID: "2", Username: "two", Role: domain.RoleAdmin},
		{UUID: "c", ExternalID: "2", Username: "two-dup", Role: domain.RoleUser},
	}
	for _, u := range seed {
		if err := Put(ctx, db, testTables.Users, u); err != nil {
			t.Fatalf("seed %s: %v", u.UUID, err)
		}
	}

	all, err := Scan[domain.User](ctx, db, testTables.Users, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("unfiltered scan: len=%d err=%v", len(all), err)
	}

	dups, err := Scan[domain.User](ctx, db, testTables.Users, Filter{"external_id": "2"})
	if err != nil || len(dups) != 2 {
		t.Fatalf("filtered scan: len=%d err=%v", len(dups), err)
	}

	proj, err := Scan[domain.User](ctx, db, testTables.Users, Filter{"external_id": "1"}, "uuid")
	if err != nil || len(proj) != 1 {
		t.Fatalf("projected scan: len=%d err=%v", len(proj), err)
	}
	if proj[0].UUID != "a" || proj[0].Username != "" {
		t.Fatalf("projection should load uuid only, got %+v", proj[0])
	}
}
