package telegram

import (
	"strings"
	"unicode/utf16"

	"github.com/go-telegram/bot/models"
)

// leadingCommand returns the bot_command entity starting the message, if any.
func leadingCommand(msg *models.Message) (models.MessageEntity, bool) {
	if msg == nil {
		return models.MessageEntity{}, false
	}
	for _, e := range msg.Entities {
		if e.Type == models.MessageEntityTypeBotCommand && e.Offset == 0 {
			return e, true
		}
	}
	return models.MessageEntity{}, false
}

// Command returns the slash-command that starts msg, without any
// "@botname" suffix, e.g. "/weather". Entity offsets are counted in UTF-16
// code units as the Bot API specifies.
func Command(msg *models.Message) (string, bool) {
	e, ok := leadingCommand(msg)
	if !ok {
		return "", false
	}
	units := utf16.Encode([]rune(msg.Text))
	end := e.Offset + e.Length
	if e.Offset < 0 || e.Length <= 0 || end > len(units) {
		return "", false
	}
	cmd := string(utf16.Decode(units[e.Offset:end]))
	cmd, _, _ = strings.Cut(cmd, "@")
	if cmd == "" || cmd == "/" {
		return "", false
	}
	return cmd, true
}

// Arguments returns the whitespace-separated words that follow the leading
// command of msg. A message without a command yields every word.
func Arguments(msg *models.Message) []string {
	if msg == nil {
		return nil
	}
	e, ok := leadingCommand(msg)
	if !ok {
		return strings.Fields(msg.Text)
	}
	units := utf16.Encode([]rune(msg.Text))
	end := e.Offset + e.Length
	if end > len(units) {
		return nil
	}
	return strings.Fields(string(utf16.Decode(units[end:])))
}

// IsPrivate reports whether chat is a one-to-one chat with the bot.
func IsPrivate(chat models.Chat) bool {
	return chat.Type == models.ChatTypePrivate
}
