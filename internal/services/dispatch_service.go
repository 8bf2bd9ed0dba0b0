// Package services – DispatchService
//
// DispatchService receives every Telegram update delivered to the webhook.
// It records the sender and group, and when the message starts with a
// registered slash-command it forwards the raw update to the command's
// endpoint. Every failure after decoding is logged and swallowed so the
// platform always gets its acknowledgement.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/observability"
	"github.com/jotacemarin/botnorrea-v2/internal/repo"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

// Stage names the point at which an update finished dispatching.
type Stage string

const (
	StageNoMessage    Stage = "no_message"
	StageBotSender    Stage = "bot_sender"
	StageNoCommand    Stage = "no_command"
	StageDuplicate    Stage = "duplicate"
	StageUnregistered Stage = "unregistered"
	StageDisabled     Stage = "disabled"
	StageRelayed      Stage = "relayed"
	StageRelayFailed  Stage = "relay_failed"
)

// UserUpserter records Telegram senders.
type UserUpserter interface {
	UpsertFromTelegram(ctx context.Context, from *models.User) (*domain.User, error)
}

// GroupUpserter records Telegram group chats.
type GroupUpserter interface {
	UpsertFromTelegram(ctx context.Context, chat models.Chat) (*domain.Group, error)
}

// CommandFinder resolves a command key to its registration.
type CommandFinder interface {
	Get(ctx context.Context, key string) (*domain.Command, error)
}

// DispatchService relays command updates to their registered endpoints.
type DispatchService struct {
	Users    UserUpserter
	Groups   GroupUpserter
	Commands CommandFinder
	Relay    Relayer

	// DB and ReceiptTable enable redelivery suppression; a nil DB disables it.
	DB           *gorm.DB
	ReceiptTable string
	ReceiptTTL   time.Duration
}

// Handle decodes raw and dispatches it. Only an undecodable payload is an
// error (ErrBadPayload).
func (s *DispatchService) Handle(ctx context.Context, raw []byte) (Stage, error) {
	ctx, span := otel.Tracer("services/DispatchService").Start(ctx, "Handle")
	defer span.End()

	var upd models.Update
	if len(raw) == 0 {
		return "", ErrBadPayload
	}
	if err := json.Unmarshal(raw, &upd); err != nil {
		return "", ErrBadPayload
	}
	span.SetAttributes(attribute.Int64("telegram.update_id", upd.ID))

	stage := s.dispatch(ctx, &upd, raw, span)
	observability.UpdatesTotal.WithLabelValues(string(stage)).Inc()
	return stage, nil
}

func (s *DispatchService) dispatch(ctx context.Context, upd *models.Update, raw []byte, span trace.Span) Stage {
	l := zerolog.Ctx(ctx)
	msg := upd.Message
	if msg == nil {
		return StageNoMessage
	}

	s.record(ctx, msg)

	if msg.From != nil && msg.From.IsBot {
		return StageBotSender
	}

	cmd, ok := telegram.Command(msg)
	if !ok {
		return StageNoCommand
	}
	key := NormalizeCommandKey(cmd)
	span.SetAttributes(attribute.String("command", key))

	if s.claim(ctx, upd.ID, msg.Chat.ID) {
		return StageDuplicate
	}

	if s.Commands == nil {
		return StageUnregistered
	}
	c, err := s.Commands.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.Warn().Err(err).Str("command", key).Msg("command lookup failed")
		}
		return StageUnregistered
	}
	if !c.IsEnabled || c.Endpoint == "" {
		observability.RelayTotal.WithLabelValues(observability.OutcomeSkipped).Inc()
		return StageDisabled
	}
	if s.Relay == nil {
		return StageRelayFailed
	}

	start := time.Now()
	err = s.Relay.Relay(ctx, c.Endpoint, raw)
	observability.RelayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.RelayTotal.WithLabelValues(observability.OutcomeError).Inc()
		l.Error().Err(err).Str("command", key).Str("endpoint", c.Endpoint).Msg("relay failed")
		return StageRelayFailed
	}
	observability.RelayTotal.WithLabelValues(observability.OutcomeOK).Inc()
	l.Info().Str("command", key).Int64("update_id", upd.ID).Msg("update relayed")
	return StageRelayed
}

// record upserts the sender and (non-private) chat concurrently. Failures
// are logged and never abort the dispatch.
func (s *DispatchService) record(ctx context.Context, msg *models.Message) {
	l := zerolog.Ctx(ctx)
	var g errgroup.Group
	if s.Users != nil && msg.From != nil {
		g.Go(func() error {
			if _, err := s.Users.UpsertFromTelegram(ctx, msg.From); err != nil {
				l.Warn().Err(err).Int64("user_id", msg.From.ID).Msg("upsert user failed")
			}
			return nil
		})
	}
	if s.Groups != nil {
		g.Go(func() error {
			if _, err := s.Groups.UpsertFromTelegram(ctx, msg.Chat); err != nil {
				l.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("upsert group failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// claim reports whether the update was already dispatched. Store errors are
// logged and treated as a first delivery.
func (s *DispatchService) claim(ctx context.Context, updateID, chatID int64) bool {
	if s.DB == nil || s.ReceiptTable == "" || updateID == 0 {
		return false
	}
	ttl := s.ReceiptTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := repo.ClaimUpdate(ctx, s.DB, s.ReceiptTable, updateID, strconv.FormatInt(chatID, 10), ttl)
	switch {
	case err == nil:
		return false
	case errors.Is(err, repo.ErrDuplicate):
		zerolog.Ctx(ctx).Info().Int64("update_id", updateID).Msg("duplicate update ignored")
		return true
	default:
		zerolog.Ctx(ctx).Warn().Err(err).Int64("update_id", updateID).Msg("update receipt failed")
		return false
	}
}
