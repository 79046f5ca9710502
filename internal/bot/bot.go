// Package bot connects the configured chat platforms and the HTTP server to
// the services.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"guild-warden/internal/config"
	"guild-warden/internal/crash"
	"guild-warden/internal/handler"
	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/platform/discord"
	"guild-warden/internal/platform/telegram"
	"guild-warden/internal/service"
)

const (
	statusInterval = 5 * time.Minute
	handlerWait    = 30 * time.Second
)

// Service owns the platform connections.
type Service struct {
	cfg      *config.Config
	services *service.Services
	server   *WebhookServer

	discord         *discordgo.Session
	telegram        *telego.Bot
	telegramUpdates *th.BotHandler
	handlers        map[string]*handler.Handler
}

// Initialize connects every enabled platform. Discord opens its gateway
// only in Start.
func Initialize(ctx context.Context, cfg *config.Config, services *service.Services) (*Service, error) {
	b := &Service{
		cfg:      cfg,
		services: services,
		server: NewWebhookServer(cfg.Server.ListenPort, cfg.Server.MetricsPath,
			cfg.Bot.Telegram.Webhook.CertFile, cfg.Bot.Telegram.Webhook.KeyFile),
		handlers: make(map[string]*handler.Handler),
	}

	if cfg.Bot.Discord.Enabled {
		if err := b.initDiscord(); err != nil {
			return nil, err
		}
	}
	if cfg.Bot.Telegram.Enabled {
		if err := b.initTelegram(ctx); err != nil {
			return nil, err
		}
	}

	if debugPath := cfg.Bot.Telegram.Webhook.DebugPath; debugPath != "" {
		b.server.HandleFunc(debugPath, b.debugStatus)
	}
	return b, nil
}

func (b *Service) initDiscord() error {
	session, err := discordgo.New("Bot " + b.cfg.Bot.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent

	// gateway chatter goes to its own rotating file
	gatewayLog := log.New(logger.GetRotatingLogWriter(b.cfg, "discord"), "", log.LstdFlags)
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		gatewayLog.Printf(format, a...)
	}
	if logger.GetLevel() == logger.LevelDebug {
		session.LogLevel = discordgo.LogDebug
	}

	adapter := discord.New(session)
	h := handler.New(b.services, b.services.ForPlatform(adapter))
	h.BindDiscord(session)

	b.discord = session
	b.handlers[adapter.Name()] = h
	return nil
}

func (b *Service) initTelegram(ctx context.Context) error {
	token := b.cfg.Bot.Telegram.Token

	var opts []telego.BotOption
	if logger.GetLevel() == logger.LevelDebug {
		opts = append(opts, telego.WithDefaultDebugLogger())
	}
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot info: %w", err)
	}
	logger.Infof("Authorized on telegram account %s", botUser.Username)

	setLocalizedCommands(ctx, bot)

	if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{}); err != nil {
		return fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	// stable across restarts without another config value
	secretToken := "secure_webhook_token_" + token[len(token)-6:]

	bh, err := SetupWebhook(ctx, bot, b.server, b.cfg.Bot.Telegram.Webhook.Endpoint, secretToken)
	if err != nil {
		return fmt.Errorf("failed to setup webhook: %w", err)
	}

	adapter := telegram.New(bot, botUser.ID)
	h := handler.New(b.services, b.services.ForPlatform(adapter))
	h.BindTelegram(bh, bot, adapter)

	b.telegram = bot
	b.telegramUpdates = bh
	b.handlers[adapter.Name()] = h
	return nil
}

// Start serves HTTP, opens the discord gateway and starts consuming
// telegram updates.
func (b *Service) Start(ctx context.Context) error {
	crash.SafeGoroutine("http-server", func() {
		if err := b.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("HTTP server error: %v", err)
		}
	})

	if b.discord != nil {
		if err := b.discord.Open(); err != nil {
			return fmt.Errorf("failed to open discord session: %w", err)
		}
		logger.Infof("Connected to discord as %s", discord.Tag(b.discord.State.User))
		if b.cfg.Bot.Discord.RegisterCommands {
			if err := handler.RegisterDiscordCommands(b.discord); err != nil {
				logger.Warningf("Failed to register slash commands: %v", err)
			}
		}
	}

	if b.telegramUpdates != nil {
		crash.SafeGoroutine("telegram-updates", func() {
			b.telegramUpdates.Start()
		})
	}

	for _, h := range b.handlers {
		h.StartStatusMonitoring(ctx, statusInterval)
	}
	return nil
}

// Stop stops taking events, waits for the events in flight and closes the
// connections.
func (b *Service) Stop(ctx context.Context) {
	if b.telegramUpdates != nil {
		b.telegramUpdates.Stop()
	}

	logger.Infof("Waiting for event handlers to complete...")
	for name, h := range b.handlers {
		if !h.Wait(handlerWait) {
			logger.Warningf("Timeout waiting for %s handlers, proceeding with shutdown", name)
		}
	}

	if b.discord != nil {
		if err := b.discord.Close(); err != nil {
			logger.Warningf("Error closing discord session: %v", err)
		}
	}

	if err := b.server.Shutdown(ctx); err != nil {
		logger.Warningf("HTTP server shutdown error: %v", err)
	}
}

func (b *Service) debugStatus(w http.ResponseWriter, r *http.Request) {
	logger.Infof("Debug endpoint accessed: %s %s", r.Method, r.URL.Path)

	var sb strings.Builder
	sb.WriteString("Bot server is running\n")
	for name, h := range b.handlers {
		fmt.Fprintf(&sb, "\n[%s]%s\n", name, h.GetDetailedStatus())
	}

	if b.telegram != nil {
		webhookInfo, err := b.telegram.GetWebhookInfo(r.Context())
		if err != nil {
			fmt.Fprintf(&sb, "\nError getting webhook info: %v\n", err)
		} else {
			sb.WriteString("\nWebhook Info:\n")
			fmt.Fprintf(&sb, "URL: %s\n", webhookInfo.URL)
			fmt.Fprintf(&sb, "Custom Certificate: %v\n", webhookInfo.HasCustomCertificate)
			fmt.Fprintf(&sb, "Pending Updates: %d\n", webhookInfo.PendingUpdateCount)
			if webhookInfo.LastErrorDate > 0 {
				errorTime := time.Unix(int64(webhookInfo.LastErrorDate), 0)
				fmt.Fprintf(&sb, "Last Error: [%s] %s\n", errorTime.Format("2006-01-02 15:04:05"), webhookInfo.LastErrorMessage)
			}
		}
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(sb.String()))
}

// telegramCommands are the commands listed in telegram's command menu;
// telegram keeps no history to purge.
var telegramCommands = []string{
	handler.CmdWarn, handler.CmdKick, handler.CmdBan, handler.CmdTimeout, handler.CmdUnmute,
	handler.CmdUnban, handler.CmdModlogs, handler.CmdCase, handler.CmdAutomod, handler.CmdLeveling,
	handler.CmdLanguage, handler.CmdModlog, handler.CmdSettings, handler.CmdStats, handler.CmdUserinfo,
	handler.CmdHelp,
}

// setLocalizedCommands sets the command menu in every supported language.
func setLocalizedCommands(ctx context.Context, bot *telego.Bot) {
	langCodes := map[string]string{
		models.LangEnglish:            "en",
		models.LangSimplifiedChinese:  "zh",
		models.LangTraditionalChinese: "zh-hant",
	}

	for lang, telegramLang := range langCodes {
		err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
			Commands:     commandMenu(lang),
			LanguageCode: telegramLang,
		})
		if err != nil {
			logger.Warningf("Failed to set bot commands for %s: %v", lang, err)
		}
	}

	if err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: commandMenu(models.LangEnglish),
	}); err != nil {
		logger.Warningf("Failed to set default bot commands: %v", err)
	}
}

func commandMenu(lang string) []telego.BotCommand {
	commands := make([]telego.BotCommand, 0, len(telegramCommands))
	for _, cmd := range telegramCommands {
		commands = append(commands, telego.BotCommand{
			Command:     cmd,
			Description: models.GetTranslation(lang, "cmd_desc_"+cmd),
		})
	}
	return commands
}
