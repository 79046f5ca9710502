package handler

import (
	"context"
	"fmt"
	"strconv"
	"time"
	"unicode/utf16"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"guild-warden/internal/automod"
	"guild-warden/internal/logger"
	"guild-warden/internal/platform/telegram"
)

// BindTelegram registers the update handlers of h on bh.
func (h *Handler) BindTelegram(bh *th.BotHandler, bot *telego.Bot, adapter *telegram.Adapter) {
	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		if message.From == nil || message.From.IsBot {
			return nil
		}
		if message.Chat.Type != "group" && message.Chat.Type != "supergroup" {
			return nil
		}
		h.process("telegram-message", func(ctx context.Context) error {
			return h.onTelegramMessage(ctx, bot, adapter, message)
		})
		return nil
	})

	// the bot was added to a group or promoted there
	bh.Handle(func(ctx *th.Context, update telego.Update) error {
		member := update.MyChatMember
		if member == nil || !telegram.IsPresent(member.NewChatMember) {
			return nil
		}
		h.process("telegram-my-chat-member", func(ctx context.Context) error {
			return h.OnGuildAvailable(ctx, telegram.FormatID(member.Chat.ID), member.Chat.Title)
		})
		return nil
	}, th.AnyMyChatMember())
}

func (h *Handler) onTelegramMessage(ctx context.Context, bot *telego.Bot, adapter *telegram.Adapter, message telego.Message) error {
	guildID := telegram.FormatID(message.Chat.ID)

	inv, err := Parse(telegramText(message), replyTarget(message))
	if err != nil {
		return sendReply(ctx, bot, message, h.ParseFailure(ctx, guildID, err))
	}
	if inv == nil {
		return h.OnMessage(ctx, TelegramMessage(message), message.Chat.Title)
	}

	actor, err := adapter.Actor(ctx, message.Chat.ID, message.From.ID)
	if err != nil {
		return fmt.Errorf("failed to load command author: %w", err)
	}
	inv.GuildID = guildID
	inv.GuildName = message.Chat.Title
	inv.ChannelID = guildID
	inv.Actor = actor
	inv.ActorTag = telegram.Tag(*message.From)
	inv.MessageID = strconv.Itoa(message.MessageID)

	logger.Infof("Command /%s in chat %d by %d", inv.Name, message.Chat.ID, message.From.ID)
	return sendReply(ctx, bot, message, h.Execute(ctx, inv))
}

func sendReply(ctx context.Context, bot *telego.Bot, message telego.Message, text string) error {
	if text == "" {
		return nil
	}
	_, err := bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:          telego.ChatID{ID: message.Chat.ID},
		Text:            text,
		ReplyParameters: &telego.ReplyParameters{MessageID: message.MessageID},
	})
	return err
}

func telegramText(message telego.Message) string {
	if message.Text != "" {
		return message.Text
	}
	return message.Caption
}

// replyTarget is the author of the message a command answers.
func replyTarget(message telego.Message) *Target {
	replied := message.ReplyToMessage
	if replied == nil || replied.From == nil {
		return nil
	}
	return &Target{ID: telegram.FormatID(replied.From.ID), Tag: telegram.Tag(*replied.From)}
}

// TelegramMessage converts a group message for the pipeline. Mentions by
// username cannot be resolved to ids, so the username stands in for the id.
func TelegramMessage(message telego.Message) *automod.Message {
	msg := &automod.Message{
		GuildID:   telegram.FormatID(message.Chat.ID),
		ChannelID: telegram.FormatID(message.Chat.ID),
		MessageID: fmt.Sprint(message.MessageID),
		Content:   telegramText(message),
		At:        time.Unix(message.Date, 0),
	}
	if message.From != nil {
		msg.AuthorID = telegram.FormatID(message.From.ID)
		msg.AuthorMention = telegram.Tag(*message.From)
	}

	entities := message.Entities
	if message.Text == "" {
		entities = message.CaptionEntities
	}
	for _, e := range entities {
		switch e.Type {
		case "text_mention":
			if e.User != nil {
				msg.MentionedUserIDs = append(msg.MentionedUserIDs, telegram.FormatID(e.User.ID))
			}
		case "mention":
			msg.MentionedUserIDs = append(msg.MentionedUserIDs, entityText(msg.Content, e))
		case "custom_emoji":
			msg.CustomEmojiCount++
		}
	}
	return msg
}

// entityText cuts an entity out of text; offsets count UTF-16 code units.
func entityText(text string, e telego.MessageEntity) string {
	units := utf16.Encode([]rune(text))
	if e.Offset < 0 || e.Length < 0 || e.Offset+e.Length > len(units) {
		return ""
	}
	return string(utf16.Decode(units[e.Offset : e.Offset+e.Length]))
}
