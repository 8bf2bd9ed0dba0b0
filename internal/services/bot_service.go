// Package services – BotService
//
// BotService implements the chat-driven management commands:
//
//   - /commands_create <key> <url> [description...]
//   - /commands_list
//   - /commands_remove <key>
//   - /create_api_key
//
// Each flow replies to the triggering message and returns a service error
// that handlers translate into the HTTP status of the relay call. Chat
// notification failures are logged and never change that status.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jotacemarin/botnorrea-v2/internal/auth"
	"github.com/jotacemarin/botnorrea-v2/internal/domain"
	"github.com/jotacemarin/botnorrea-v2/internal/telegram"
)

// Chat replies.
const (
	msgNotPrivate     = "Please request your new API KEY in a private message!"
	msgNoAPIKey       = "You don't have an API KEY please create one first using the command /create_api_key!"
	msgCreateUsage    = "Bad request.\n\nCommand usage: <code>/commands_create command_key url description*</code>\n\n<i>*description is optional</i>"
	msgRemoveUsage    = "Bad request.\n\nCommand usage: <code>/commands_remove command_key</code>"
	msgInvalidURL     = "Invalid URL"
	msgNotFound       = "Not found"
	msgAPIKeyExists   = "You already have an API KEY!"
	msgUnknownCommand = "Command %s does not exists!"
	msgCannotDelete   = "Unauthorized, you cannot delete this %s!"
	msgCreated        = "Command %s created successfully!"
	msgRemoved        = "Command %s removed successfully!"
)

var prodSuffix = regexp.MustCompile(`(?i)-prod`)

// Messenger sends chat messages.
type Messenger interface {
	SendMessage(ctx context.Context, m telegram.Message) error
}

// BotUsers is the user store BotService needs.
type BotUsers interface {
	GetByExternalID(ctx context.Context, id string) (*domain.User, error)
	IssueAPIKey(ctx context.Context, id, key string) (*domain.User, error)
}

// BotCommands is the command store BotService needs.
type BotCommands interface {
	Get(ctx context.Context, key string) (*domain.Command, error)
	Create(ctx context.Context, in domain.Command) (*domain.Command, error)
	ListByAPIKey(ctx context.Context, apiKey string) ([]domain.Command, error)
	Remove(ctx context.Context, key string) error
}

// BotService runs the management commands.
type BotService struct {
	Users     BotUsers
	Commands  BotCommands
	Messenger Messenger

	// Probe, when set, receives the triggering update at the new endpoint
	// before a command is registered.
	Probe Relayer

	BotName   string
	BotDomain string
	APIPath   string

	// NewKey generates api keys; nil means uuid.NewString.
	NewKey func() string
}

// chatUpdate is the decoded message a management command arrived in.
type chatUpdate struct {
	raw []byte
	msg *models.Message
}

func decodeMessage(raw []byte) (*chatUpdate, error) {
	if len(raw) == 0 {
		return nil, ErrBadPayload
	}
	var upd models.Update
	if err := json.Unmarshal(raw, &upd); err != nil || upd.Message == nil {
		return nil, ErrBadPayload
	}
	return &chatUpdate{raw: raw, msg: upd.Message}, nil
}

func (u *chatUpdate) senderID() string {
	if u.msg.From == nil {
		return ""
	}
	return strconv.FormatInt(u.msg.From.ID, 10)
}

func (s *BotService) span(ctx context.Context, op string) (context.Context, trace.Span) {
	return otel.Tracer("services/BotService").Start(ctx, op)
}

// reply answers the triggering message. Failures are logged only.
func (s *BotService) reply(ctx context.Context, u *chatUpdate, text string, asHTML, protect bool) {
	if s.Messenger == nil {
		return
	}
	err := s.Messenger.SendMessage(ctx, telegram.Message{
		ChatID:         u.msg.Chat.ID,
		Text:           text,
		ReplyTo:        u.msg.ID,
		HTML:           asHTML,
		ProtectContent: protect,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", u.msg.Chat.ID).Msg("send message failed")
	}
}

func (s *BotService) replyError(ctx context.Context, u *chatUpdate, err error) {
	s.reply(ctx, u, "<code>"+html.EscapeString(err.Error())+"</code>", true, false)
}

// sender resolves the user behind the message. A missing record is not an
// error here; callers decide what an unknown sender means.
func (s *BotService) sender(ctx context.Context, u *chatUpdate) (*domain.User, error) {
	if s.Users == nil {
		return nil, nil
	}
	return s.Users.GetByExternalID(ctx, u.senderID())
}

// CreateCommand registers the command described by the message arguments.
func (s *BotService) CreateCommand(ctx context.Context, raw []byte) (*domain.Command, error) {
	ctx, span := s.span(ctx, "CreateCommand")
	defer span.End()

	u, err := decodeMessage(raw)
	if err != nil {
		return nil, err
	}
	if !telegram.IsPrivate(u.msg.Chat) {
		s.reply(ctx, u, msgNotPrivate, false, false)
		return nil, ErrNotPrivateChat
	}
	user, err := s.sender(ctx, u)
	if err != nil {
		s.replyError(ctx, u, err)
		return nil, err
	}
	if !user.HasAPIKey() {
		s.reply(ctx, u, msgNoAPIKey, false, false)
		return nil, ErrNoAPIKey
	}

	args := telegram.Arguments(u.msg)
	if len(args) < 2 {
		s.reply(ctx, u, msgCreateUsage, true, false)
		return nil, ErrBadUsage
	}
	key, endpoint, description := args[0], args[1], strings.Join(args[2:], " ")
	if err := ValidateEndpoint(endpoint); err != nil {
		s.reply(ctx, u, msgInvalidURL, false, false)
		return nil, err
	}
	if s.Probe != nil {
		if err := s.Probe.Relay(ctx, endpoint, u.raw); err != nil {
			s.replyError(ctx, u, err)
			return nil, fmt.Errorf("%w: %v", ErrProbeFailed, err)
		}
	}

	cmd, err := s.Commands.Create(ctx, domain.Command{
		Command:     key,
		Endpoint:    endpoint,
		Description: description,
		IsEnabled:   true,
		APIKey:      user.Key(),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("command", key).Msg("create command failed")
		s.replyError(ctx, u, err)
		return nil, err
	}
	s.reply(ctx, u, fmt.Sprintf(msgCreated, cmd.Command), false, false)
	return cmd, nil
}

// ListCommands replies with the sender's commands, one per line.
func (s *BotService) ListCommands(ctx context.Context, raw []byte) ([]domain.Command, error) {
	ctx, span := s.span(ctx, "ListCommands")
	defer span.End()

	u, err := decodeMessage(raw)
	if err != nil {
		return nil, err
	}
	user, err := s.sender(ctx, u)
	if err != nil {
		s.replyError(ctx, u, err)
		return nil, err
	}
	if !user.HasAPIKey() {
		s.reply(ctx, u, msgNoAPIKey, false, false)
		return nil, ErrNoAPIKey
	}

	cmds, err := s.Commands.ListByAPIKey(ctx, user.Key())
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list commands failed")
		s.replyError(ctx, u, err)
		return nil, err
	}
	if len(cmds) == 0 {
		s.reply(ctx, u, msgNotFound, false, false)
		return nil, ErrCommandNotFound
	}

	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		lines = append(lines, c.Command+" - "+c.Description)
	}
	s.reply(ctx, u, strings.Join(lines, "\n"), false, false)
	return cmds, nil
}

// RemoveCommand deletes the named command when the sender owns it.
func (s *BotService) RemoveCommand(ctx context.Context, raw []byte) error {
	ctx, span := s.span(ctx, "RemoveCommand")
	defer span.End()

	u, err := decodeMessage(raw)
	if err != nil {
		return err
	}
	if !telegram.IsPrivate(u.msg.Chat) {
		s.reply(ctx, u, msgNotPrivate, false, false)
		return ErrNotPrivateChat
	}
	user, err := s.sender(ctx, u)
	if err != nil {
		s.replyError(ctx, u, err)
		return err
	}
	if !user.HasAPIKey() {
		s.reply(ctx, u, msgNoAPIKey, false, false)
		return ErrNoAPIKey
	}

	args := telegram.Arguments(u.msg)
	key := ""
	if len(args) > 0 {
		key = NormalizeCommandKey(args[0])
	}
	if key == "" {
		s.reply(ctx, u, msgRemoveUsage, true, false)
		return ErrBadUsage
	}

	cmd, err := s.Commands.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		s.reply(ctx, u, fmt.Sprintf(msgUnknownCommand, key), false, false)
		return ErrCommandNotFound
	}
	if err != nil {
		s.replyError(ctx, u, err)
		return err
	}
	if cmd.APIKey != user.Key() {
		s.reply(ctx, u, fmt.Sprintf(msgCannotDelete, key), false, false)
		return ErrUnauthorized
	}

	if err := s.Commands.Remove(ctx, cmd.Command); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("command", cmd.Command).Msg("remove command failed")
		s.replyError(ctx, u, err)
		return err
	}
	s.reply(ctx, u, fmt.Sprintf(msgRemoved, cmd.Command), false, false)
	return nil
}

// CreateAPIKey issues the sender's api key and sends the credentials as a
// protected message.
func (s *BotService) CreateAPIKey(ctx context.Context, raw []byte) (*domain.User, error) {
	ctx, span := s.span(ctx, "CreateAPIKey")
	defer span.End()

	u, err := decodeMessage(raw)
	if err != nil {
		return nil, err
	}
	if !telegram.IsPrivate(u.msg.Chat) {
		s.reply(ctx, u, msgNotPrivate, false, false)
		return nil, ErrNotPrivateChat
	}
	user, err := s.sender(ctx, u)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if user.HasAPIKey() {
		s.reply(ctx, u, msgAPIKeyExists, false, false)
		return nil, ErrAPIKeyExists
	}

	key := s.newKey()
	updated, err := s.Users.IssueAPIKey(ctx, user.UUID, key)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("user_uuid", user.UUID).Msg("issue api key failed")
		if errors.Is(err, ErrAPIKeyExists) {
			s.reply(ctx, u, msgAPIKeyExists, false, false)
		}
		return nil, err
	}
	s.reply(ctx, u, s.credentialsText(updated, key), true, true)
	return updated, nil
}

func (s *BotService) newKey() string {
	if s.NewKey != nil {
		return s.NewKey()
	}
	return uuid.NewString()
}

func (s *BotService) credentialsText(u *domain.User, key string) string {
	name := prodSuffix.ReplaceAllString(s.BotName, "")
	endpoint := strings.TrimRight(s.BotDomain, "/") + s.APIPath + "/commands"
	return fmt.Sprintf("Done! You can now add new commands to %s.\n\n"+
		"username: <code>%s</code>\n"+
		"password: <code>%s</code>\n\n"+
		"Authorization header for %s:\n<code>%s</code>",
		html.EscapeString(name), html.EscapeString(u.ExternalID), html.EscapeString(key),
		html.EscapeString(endpoint), html.EscapeString(auth.EncodeToken(u.ExternalID, key)))
}
