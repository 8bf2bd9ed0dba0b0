package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot/models"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
)

func TestGroupService_UpsertFromTelegram(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.UpsertFromTelegram(ctx, models.Chat{ID: -100, Type: models.ChatTypeSupergroup, Title: "Old"})
	if err != nil || g.ExternalID != "-100" || g.Title != "Old" {
		t.Fatalf("first upsert = %+v, %v", g, err)
	}
	again, err := f.groups.UpsertFromTelegram(ctx, models.Chat{ID: -100, Type: models.ChatTypeSupergroup, Title: "New"})
	if err != nil || again.UUID != g.UUID || again.Title != "New" {
		t.Fatalf("second upsert = %+v, %v", again, err)
	}
}

func TestGroupService_SkipsPrivateChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.UpsertFromTelegram(ctx, models.Chat{ID: 5, Type: models.ChatTypePrivate})
	if g != nil || err != nil {
		t.Fatalf("private chat = %+v, %v", g, err)
	}
	if found, _ := f.groups.GetByExternalID(ctx, "5"); found != nil {
		t.Fatalf("private chat must not be stored")
	}
}

func TestGroupService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.groups.Create(ctx, domain.Group{ExternalID: " -1 ", Title: "Team"})
	if err != nil || g.ExternalID != "-1" {
		t.Fatalf("Create = %+v, %v", g, err)
	}
	title := "Renamed"
	got, err := f.groups.Update(ctx, GroupPatch{UUID: g.UUID, Title: &title})
	if err != nil || got.Title != "Renamed" || got.ExternalID != "-1" {
		t.Fatalf("Update = %+v, %v", got, err)
	}
	if _, err := f.groups.Update(ctx, GroupPatch{UUID: "ghost", Title: &title}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
	if err := f.groups.Remove(ctx, g.UUID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := f.groups.Get(ctx, g.UUID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}
