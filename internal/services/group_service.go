// Package services – GroupService
//
// GroupService keeps one record per Telegram group the bot has seen. Records
// are created on first sight and their title refreshed on later messages.
package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/repo"
)

// GroupPatch is a partial group update.
type GroupPatch struct {
	UUID  string  `json:"uuid"`
	Title *string `json:"title,omitempty"`
}

func (p GroupPatch) attributes() repo.Attributes {
	out := repo.Attributes{}
	if p.Title != nil {
		out["title"] = *p.Title
	}
	return out
}

// GroupService provides group record operations on the configured table.
type GroupService struct {
	DB    *gorm.DB
	Table string
	Now   func() time.Time
}

// NewGroupService constructs a GroupService for table.
func NewGroupService(db *gorm.DB, table string) *GroupService {
	return &GroupService{DB: db, Table: table}
}

func (s *GroupService) now() int64 {
	if s.Now != nil {
		return s.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (s *GroupService) tracer(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/GroupService").Start(ctx, op, trace.WithAttributes(attrs...))
}

// Get returns the group stored under uuid or ErrNotFound.
func (s *GroupService) Get(ctx context.Context, id string) (*domain.Group, error) {
	ctx, span := s.tracer(ctx, "Get", attribute.String("group.uuid", id))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingKey
	}
	g, err := repo.Get[domain.Group](ctx, s.DB, s.Table, repo.Key{Name: "uuid", Value: id})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return g, nil
}

// GetByExternalID returns the group for a Telegram chat id, nil when unseen,
// and ErrAmbiguousRecord when several records share the id.
func (s *GroupService) GetByExternalID(ctx context.Context, externalID string) (*domain.Group, error) {
	ctx, span := s.tracer(ctx, "GetByExternalID", attribute.String("group.id", externalID))
	defer span.End()

	if strings.TrimSpace(externalID) == "" {
		return nil, nil
	}
	items, err := repo.Scan[domain.Group](ctx, s.DB, s.Table, repo.Filter{"external_id": externalID}, "uuid", "external_id")
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return s.Get(ctx, items[0].UUID)
	default:
		return nil, ErrAmbiguousRecord
	}
}

// Create stores a new group and returns the stored record.
func (s *GroupService) Create(ctx context.Context, in domain.Group) (*domain.Group, error) {
	ctx, span := s.tracer(ctx, "Create", attribute.String("group.id", in.ExternalID))
	defer span.End()

	ts := s.now()
	g := &domain.Group{
		UUID:       uuid.NewString(),
		ExternalID: strings.TrimSpace(in.ExternalID),
		Title:      in.Title,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if err := repo.Put(ctx, s.DB, s.Table, g); err != nil {
		return nil, err
	}
	return s.Get(ctx, g.UUID)
}

// Update merges p over the stored group and returns the result.
func (s *GroupService) Update(ctx context.Context, p GroupPatch) (*domain.Group, error) {
	ctx, span := s.tracer(ctx, "Update", attribute.String("group.uuid", p.UUID))
	defer span.End()

	if strings.TrimSpace(p.UUID) == "" {
		return nil, ErrMissingKey
	}
	current, err := s.Get(ctx, p.UUID)
	if err != nil {
		return nil, err
	}
	if current.UUID == "" {
		return nil, ErrCorruptRecord
	}

	attrs := p.attributes()
	attrs["updated_at"] = s.now()
	g, err := repo.Update[domain.Group](ctx, s.DB, s.Table, repo.Key{Name: "uuid", Value: current.UUID}, attrs)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return g, nil
}

// Remove deletes the group stored under uuid.
func (s *GroupService) Remove(ctx context.Context, id string) error {
	ctx, span := s.tracer(ctx, "Remove", attribute.String("group.uuid", id))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return ErrMissingKey
	}
	return repo.Delete[domain.Group](ctx, s.DB, s.Table, repo.Key{Name: "uuid", Value: id})
}

// UpsertFromTelegram records a group or supergroup chat. Private chats are
// skipped and yield a nil group.
func (s *GroupService) UpsertFromTelegram(ctx context.Context, chat models.Chat) (*domain.Group, error) {
	if chat.Type == models.ChatTypePrivate || chat.ID == 0 {
		return nil, nil
	}
	externalID := strconv.FormatInt(chat.ID, 10)
	found, err := s.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return s.Create(ctx, domain.Group{ExternalID: externalID, Title: chat.Title})
	}
	title := chat.Title
	return s.Update(ctx, GroupPatch{UUID: found.UUID, Title: &title})
}
