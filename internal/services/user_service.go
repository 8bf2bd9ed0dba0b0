// Package services – UserService
//
// This file implements UserService, which owns the lifecycle of user
// records: creation with a default role, read-then-write partial updates,
// one-time api key issuance and the upsert performed for every Telegram
// sender.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
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

// UserPatch is a partial user update. Nil fields are left untouched.
type UserPatch struct {
	UUID       string       `json:"uuid"`
	ExternalID *string      `json:"id,omitempty"`
	Username   *string      `json:"username,omitempty"`
	APIKey     *string      `json:"apiKey,omitempty"`
	Role       *domain.Role `json:"role,omitempty"`
}

// attributes maps the patch to stored columns. Only the username is
// writable unless the caller is elevated.
func (p UserPatch) attributes(asElevated bool) repo.Attributes {
	out := repo.Attributes{}
	if p.Username != nil {
		out["username"] = *p.Username
	}
	if !asElevated {
		return out
	}
	if p.ExternalID != nil {
		out["external_id"] = *p.ExternalID
	}
	if p.Role != nil {
		out["role"] = string(*p.Role)
	}
	if p.APIKey != nil {
		out["api_key"] = *p.APIKey
	}
	return out
}

// UserService provides user record operations on the configured table.
type UserService struct {
	DB    *gorm.DB
	Table string

	// Now is the clock used for timestamps; nil means time.Now.
	Now func() time.Time
}

// NewUserService constructs a UserService for table.
func NewUserService(db *gorm.DB, table string) *UserService {
	return &UserService{DB: db, Table: table}
}

func (s *UserService) now() int64 {
	if s.Now != nil {
		return s.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (s *UserService) tracer(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/UserService").Start(ctx, op, trace.WithAttributes(attrs...))
}

// Get returns the user stored under uuid or ErrNotFound.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	ctx, span := s.tracer(ctx, "Get", attribute.String("user.uuid", id))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingKey
	}
	u, err := repo.Get[domain.User](ctx, s.DB, s.Table, repo.Key{Name: "uuid", Value: id})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

// GetByExternalID returns the single user with the given Telegram id, nil
// when there is none, and ErrAmbiguousRecord when there are several.
func (s *UserService) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	ctx, span := s.tracer(ctx, "GetByExternalID", attribute.String("user.id", externalID))
	defer span.End()

	if strings.TrimSpace(externalID) == "" {
		return nil, nil
	}
	items, err := repo.Scan[domain.User](ctx, s.DB, s.Table, repo.Filter{"external_id": externalID}, "uuid", "external_id")
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

// Create stores a new user. The role is forced to USER unless asElevated is
// set and in carries a role. The stored record is returned.
func (s *UserService) Create(ctx context.Context, in domain.User, asElevated bool) (*domain.User, error) {
	ctx, span := s.tracer(ctx, "Create", attribute.Bool("elevated", asElevated))
	defer span.End()

	role := domain.RoleUser
	if asElevated && in.Role != "" {
		if !in.Role.Valid() {
			return nil, ErrInvalidRole
		}
		role = in.Role
	}

	ts := s.now()
	u := &domain.User{
		UUID:       uuid.NewString(),
		ExternalID: strings.TrimSpace(in.ExternalID),
		Username:   in.Username,
		Role:       role,
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
	if err := repo.Put(ctx, s.DB, s.Table, u); err != nil {
		return nil, err
	}
	return s.Get(ctx, u.UUID)
}

// Update merges p over the stored record and returns the result. The uuid
// is never rewritten.
func (s *UserService) Update(ctx context.Context, p UserPatch, asElevated bool) (*domain.User, error) {
	ctx, span := s.tracer(ctx, "Update", attribute.String("user.uuid", p.UUID), attribute.Bool("elevated", asElevated))
	defer span.End()

	if strings.TrimSpace(p.UUID) == "" {
		return nil, ErrMissingKey
	}
	if asElevated && p.Role != nil && !p.Role.Valid() {
		return nil, ErrInvalidRole
	}
	current, err := s.Get(ctx, p.UUID)
	if err != nil {
		return nil, err
	}
	if current.UUID == "" {
		return nil, ErrCorruptRecord
	}

	attrs := p.attributes(asElevated)
	attrs["updated_at"] = s.now()
	u, err := repo.Update[domain.User](ctx, s.DB, s.Table, repo.Key{Name: "uuid", Value: current.UUID}, attrs)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return u, nil
}

// Remove deletes the user stored under uuid. Removing an absent user is not
// an error.
func (s *UserService) Remove(ctx context.Context, id string) error {
	ctx, span := s.tracer(ctx, "Remove", attribute.String("user.uuid", id))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return ErrMissingKey
	}
	return repo.Delete[domain.User](ctx, s.DB, s.Table, repo.Key{Name: "uuid", Value: id})
}

// IssueAPIKey assigns key to the user unless one was already issued.
func (s *UserService) IssueAPIKey(ctx context.Context, id, key string) (*domain.User, error) {
	ctx, span := s.tracer(ctx, "IssueAPIKey", attribute.String("user.uuid", id))
	defer span.End()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.HasAPIKey() {
		return nil, ErrAPIKeyExists
	}
	return s.Update(ctx, UserPatch{UUID: current.UUID, APIKey: &key}, true)
}

// UpsertFromTelegram creates the sender's record on first sight and
// refreshes its username afterwards.
func (s *UserService) UpsertFromTelegram(ctx context.Context, from *models.User) (*domain.User, error) {
	if from == nil {
		return nil, nil
	}
	externalID := strconv.FormatInt(from.ID, 10)
	found, err := s.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return s.Create(ctx, domain.User{ExternalID: externalID, Username: from.Username}, false)
	}
	username := from.Username
	return s.Update(ctx, UserPatch{UUID: found.UUID, Username: &username}, false)
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
