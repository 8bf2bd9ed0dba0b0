// Package services – CommandService
//
// CommandService manages the slash-command registry: each command key maps
// to an external endpoint owned by the api key that registered it. Command
// keys are unique; updates are restricted to the owner or an elevated
// caller.
package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/repo"
)

// CommandPatch is a partial command update. The command key, uuid and owner
// are immutable.
type CommandPatch struct {
	UUID        string  `json:"uuid"`
	Endpoint    *string `json:"endpoint,omitempty"`
	Description *string `json:"description,omitempty"`
	IsEnabled   *bool   `json:"isEnabled,omitempty"`
}

func (p CommandPatch) attributes() repo.Attributes {
	out := repo.Attributes{}
	if p.Endpoint != nil {
		out["endpoint"] = strings.TrimSpace(*p.Endpoint)
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.IsEnabled != nil {
		out["is_enabled"] = *p.IsEnabled
	}
	return out
}

// CommandService provides command registry operations on the configured table.
type CommandService struct {
	DB    *gorm.DB
	Table string
	Now   func() time.Time
}

// NewCommandService constructs a CommandService for table.
func NewCommandService(db *gorm.DB, table string) *CommandService {
	return &CommandService{DB: db, Table: table}
}

func (s *CommandService) now() int64 {
	if s.Now != nil {
		return s.Now().UnixMilli()
	}
	return time.Now().UnixMilli()
}

func (s *CommandService) tracer(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer("services/CommandService").Start(ctx, op, trace.WithAttributes(attrs...))
}

// NormalizeCommandKey turns user input such as "Weather-Now" or "/weather"
// into the stored key form "/weather_now". It returns "" when nothing
// remains after normalization.
func NormalizeCommandKey(raw string) string {
	k := strings.ReplaceAll(strings.TrimSpace(raw), "/", "")
	k = strings.ReplaceAll(k, "-", "_")
	k = strings.ToLower(k)
	if k == "" {
		return ""
	}
	return "/" + k
}

// ValidateEndpoint reports ErrInvalidURL unless raw is an absolute http(s) URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ErrInvalidURL
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return ErrInvalidURL
}

// CanManage reports whether caller may change cmd: elevated callers always
// can, others only when they hold the owning api key.
func CanManage(caller *domain.User, cmd *domain.Command) bool {
	if caller == nil || cmd == nil {
		return false
	}
	if auth.IsElevated(caller) {
		return true
	}
	return cmd.APIKey != "" && auth.KeyMatches(caller, cmd.APIKey)
}

// Get returns the command stored under key or ErrNotFound.
func (s *CommandService) Get(ctx context.Context, key string) (*domain.Command, error) {
	ctx, span := s.tracer(ctx, "Get", attribute.String("command", key))
	defer span.End()

	if strings.TrimSpace(key) == "" {
		return nil, ErrMissingKey
	}
	c, err := repo.Get[domain.Command](ctx, s.DB, s.Table, repo.Key{Name: "command", Value: key})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

// GetByUUID returns the command with the given uuid, ErrNotFound when none
// exists and ErrAmbiguousRecord when several do.
func (s *CommandService) GetByUUID(ctx context.Context, id string) (*domain.Command, error) {
	ctx, span := s.tracer(ctx, "GetByUUID", attribute.String("command.uuid", id))
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingKey
	}
	items, err := repo.Scan[domain.Command](ctx, s.DB, s.Table, repo.Filter{"uuid": id}, "command", "uuid")
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return s.Get(ctx, items[0].Command)
	default:
		return nil, ErrAmbiguousRecord
	}
}

// ListByAPIKey returns the commands owned by apiKey.
func (s *CommandService) ListByAPIKey(ctx context.Context, apiKey string) ([]domain.Command, error) {
	ctx, span := s.tracer(ctx, "ListByAPIKey")
	defer span.End()

	if apiKey == "" {
		return []domain.Command{}, nil
	}
	return repo.Scan[domain.Command](ctx, s.DB, s.Table, repo.Filter{"api_key": apiKey},
		"command", "api_key", "endpoint", "description")
}

// Create registers a new command. The key is normalized, the command is
// enabled, and an existing registration for the same key is left untouched
// with ErrCommandExists.
func (s *CommandService) Create(ctx context.Context, in domain.Command) (*domain.Command, error) {
	key := NormalizeCommandKey(in.Command)
	ctx, span := s.tracer(ctx, "Create", attribute.String("command", key))
	defer span.End()

	if key == "" {
		return nil, ErrMissingKey
	}
	if err := ValidateEndpoint(in.Endpoint); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, key); err == nil {
		return nil, ErrCommandExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	ts := s.now()
	c := &domain.Command{
		UUID:        uuid.NewString(),
		Command:     key,
		Endpoint:    strings.TrimSpace(in.Endpoint),
		Description: in.Description,
		IsEnabled:   true,
		APIKey:      in.APIKey,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := repo.Put(ctx, s.DB, s.Table, c); err != nil {
		return nil, err
	}
	return s.Get(ctx, key)
}

// Update applies p to the command identified by p.UUID after checking that
// caller may manage it. On ErrUnauthorized nothing is written.
func (s *CommandService) Update(ctx context.Context, p CommandPatch, caller *domain.User) (*domain.Command, error) {
	ctx, span := s.tracer(ctx, "Update", attribute.String("command.uuid", p.UUID))
	defer span.End()

	if strings.TrimSpace(p.UUID) == "" {
		return nil, ErrMissingKey
	}
	current, err := s.GetByUUID(ctx, p.UUID)
	if err != nil {
		return nil, err
	}
	if current.Command == "" {
		return nil, ErrCorruptRecord
	}
	if !CanManage(caller, current) {
		return nil, ErrUnauthorized
	}
	if p.Endpoint != nil {
		if err := ValidateEndpoint(*p.Endpoint); err != nil {
			return nil, err
		}
	}

	attrs := p.attributes()
	attrs["updated_at"] = s.now()
	c, err := repo.Update[domain.Command](ctx, s.DB, s.Table, repo.Key{Name: "command", Value: current.Command}, attrs)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return c, nil
}

// Remove deletes the command stored under key.
func (s *CommandService) Remove(ctx context.Context, key string) error {
	ctx, span := s.tracer(ctx, "Remove", attribute.String("command", key))
	defer span.End()

	if strings.TrimSpace(key) == "" {
		return ErrMissingKey
	}
	return repo.Delete[domain.Command](ctx, s.DB, s.Table, repo.Key{Name: "command", Value: key})
}
