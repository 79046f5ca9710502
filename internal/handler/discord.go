package handler

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"guild-warden/internal/automod"
	"guild-warden/internal/logger"
	"guild-warden/internal/models"
	"guild-warden/internal/moderr"
	"guild-warden/internal/platform/discord"
)

var (
	banDeleteDaysMin = 0.0
	purgeAmountMin   = 1.0
	permModerate     = int64(discordgo.PermissionModerateMembers)
	permBan          = int64(discordgo.PermissionBanMembers)
	permKick         = int64(discordgo.PermissionKickMembers)
	permManageGuild  = int64(discordgo.PermissionManageServer)
	permManageMsgs   = int64(discordgo.PermissionManageMessages)
)

func userOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        "user",
		Description: description,
		Type:        discordgo.ApplicationCommandOptionUser,
		Required:    required,
	}
}

func reasonOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        "reason",
		Description: "Reason for the action",
		Type:        discordgo.ApplicationCommandOptionString,
		Required:    required,
	}
}

func switchOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Name:        "enabled",
		Description: description,
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Required:    true,
	}
}

// DiscordCommands returns the slash commands of the bot.
func DiscordCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     CmdBan,
			Description:              "Ban a member from the server",
			DefaultMemberPermissions: &permBan,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("The user to ban", true),
				reasonOption(false),
				{
					Name:        "delete_days",
					Description: "Days of messages to delete (0-7)",
					Type:        discordgo.ApplicationCommandOptionInteger,
					MinValue:    &banDeleteDaysMin,
					MaxValue:    7,
				},
			},
		},
		{
			Name:                     CmdKick,
			Description:              "Kick a member from the server",
			DefaultMemberPermissions: &permKick,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("The user to kick", true),
				reasonOption(false),
			},
		},
		{
			Name:                     CmdWarn,
			Description:              "Warn a member",
			DefaultMemberPermissions: &permModerate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("The user to warn", true),
				reasonOption(true),
			},
		},
		{
			Name:                     CmdTimeout,
			Description:              "Timeout a member",
			DefaultMemberPermissions: &permModerate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("The user to timeout", true),
				{
					Name:        "duration",
					Description: "Duration such as 10m, 1h or 2d",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
				},
				reasonOption(false),
			},
		},
		{
			Name:                     CmdUnmute,
			Description:              "Remove the timeout of a member",
			DefaultMemberPermissions: &permModerate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("The user to unmute", true),
				reasonOption(false),
			},
		},
		{
			Name:                     CmdUnban,
			Description:              "Unban a user",
			DefaultMemberPermissions: &permBan,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "user_id",
					Description: "The id of the banned user",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
				},
				reasonOption(false),
			},
		},
		{
			Name:                     CmdModlogs,
			Description:              "Show recent moderation cases",
			DefaultMemberPermissions: &permModerate,
			Options: []*discordgo.ApplicationCommandOption{
				userOption("Only cases of this user", false),
			},
		},
		{
			Name:                     CmdCase,
			Description:              "Show one moderation case",
			DefaultMemberPermissions: &permModerate,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "id",
					Description: "The case id",
					Type:        discordgo.ApplicationCommandOptionInteger,
					Required:    true,
				},
			},
		},
		{
			Name:                     CmdPurge,
			Description:              "Delete recent messages of this channel",
			DefaultMemberPermissions: &permManageMsgs,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "amount",
					Description: "Number of messages to delete (1-100)",
					Type:        discordgo.ApplicationCommandOptionInteger,
					Required:    true,
					MinValue:    &purgeAmountMin,
					MaxValue:    100,
				},
				userOption("Only delete messages of this user", false),
			},
		},
		{
			Name:        CmdUserinfo,
			Description: "Show a member's moderation record and level",
			Options: []*discordgo.ApplicationCommandOption{
				userOption("The member to look up, yourself by default", false),
			},
		},
		{
			Name:                     CmdAutomod,
			Description:              "Turn auto-moderation on or off",
			DefaultMemberPermissions: &permManageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				switchOption("Whether auto-moderation runs"),
			},
		},
		{
			Name:                     CmdLeveling,
			Description:              "Turn leveling on or off",
			DefaultMemberPermissions: &permManageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				switchOption("Whether members earn experience"),
			},
		},
		{
			Name:                     CmdLanguage,
			Description:              "Set the language of notices",
			DefaultMemberPermissions: &permManageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:        "code",
					Description: "Language",
					Type:        discordgo.ApplicationCommandOptionString,
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: models.GetLanguageName(models.LangEnglish), Value: models.LangEnglish},
						{Name: models.GetLanguageName(models.LangSimplifiedChinese), Value: models.LangSimplifiedChinese},
						{Name: models.GetLanguageName(models.LangTraditionalChinese), Value: models.LangTraditionalChinese},
					},
				},
			},
		},
		{
			Name:                     CmdModlog,
			Description:              "Set the mod-log channel, or clear it without a channel",
			DefaultMemberPermissions: &permManageGuild,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Name:         "channel",
					Description:  "Channel receiving mod-log entries",
					Type:         discordgo.ApplicationCommandOptionChannel,
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:                     CmdSettings,
			Description:              "Show the server settings",
			DefaultMemberPermissions: &permManageGuild,
		},
		{
			Name:                     CmdStats,
			Description:              "Show moderation statistics",
			DefaultMemberPermissions: &permManageGuild,
		},
	}
}

// RegisterDiscordCommands creates the slash commands globally.
func RegisterDiscordCommands(s *discordgo.Session) error {
	for _, cmd := range DiscordCommands() {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, "", cmd); err != nil {
			return fmt.Errorf("cannot create command %s: %w", cmd.Name, err)
		}
	}
	logger.Infof("Registered %d slash commands", len(DiscordCommands()))
	return nil
}

// BindDiscord registers the event handlers of h on s.
func (h *Handler) BindDiscord(s *discordgo.Session) {
	s.AddHandler(func(s *discordgo.Session, g *discordgo.GuildCreate) {
		h.process("discord-guild-create", func(ctx context.Context) error {
			return h.OnGuildAvailable(ctx, g.ID, g.Name)
		})
	})

	s.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		msg := discordMessage(m.Message)
		if msg == nil {
			return
		}
		h.process("discord-message", func(ctx context.Context) error {
			return h.OnMessage(ctx, msg, guildName(s, m.GuildID))
		})
	})

	s.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		if i.Type != discordgo.InteractionApplicationCommand || i.Member == nil {
			return
		}
		h.process("discord-command", func(ctx context.Context) error {
			return h.onInteraction(ctx, s, i)
		})
	})
}

func (h *Handler) onInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) error {
	// moderation may take longer than discord's three seconds
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to defer interaction: %w", err)
	}

	inv := DiscordInvocation(i.ApplicationCommandData())
	inv.GuildID = i.GuildID
	inv.ChannelID = i.ChannelID

	var reply string
	guild, err := discordGuild(ctx, s, i.GuildID)
	if err != nil {
		logger.Warningf("Failed to load guild %s: %v", i.GuildID, err)
		reply = moderr.Explain(moderr.Transient("load guild", err))
	} else {
		inv.GuildName = guild.Name
		inv.Actor = discord.ActorFromMember(guild, i.Member)
		inv.ActorTag = discord.Tag(i.Member.User)
		reply = h.Execute(ctx, inv)
	}

	_, err = s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &reply,
	}, discordgo.WithContext(ctx))
	return err
}

// DiscordInvocation reads the options of a slash command.
func DiscordInvocation(data discordgo.ApplicationCommandInteractionData) *Invocation {
	inv := &Invocation{Name: data.Name}

	for _, o := range data.Options {
		switch o.Name {
		case "user":
			id, _ := o.Value.(string)
			target := &Target{ID: id}
			if data.Resolved != nil {
				if u, ok := data.Resolved.Users[id]; ok {
					target.Tag = discord.Tag(u)
				}
			}
			inv.Target = target
		case "user_id":
			id, _ := o.Value.(string)
			inv.Target = &Target{ID: id}
		case "reason":
			inv.Reason, _ = o.Value.(string)
		case "duration":
			inv.Duration, _ = o.Value.(string)
		case "delete_days":
			inv.DeleteDays = int(optionInt(o))
		case "id":
			inv.CaseID = optionInt(o)
		case "amount":
			inv.Amount = int(optionInt(o))
		case "enabled":
			if on, _ := o.Value.(bool); on {
				inv.Value = "on"
			} else {
				inv.Value = "off"
			}
		case "code":
			inv.Value, _ = o.Value.(string)
		}
	}

	if inv.Name == CmdModlog {
		inv.Value = "off"
		for _, o := range data.Options {
			if o.Name == "channel" {
				inv.Value = "here"
				inv.ChannelID, _ = o.Value.(string)
			}
		}
	}
	return inv
}

// optionInt reads an integer option; JSON delivers numbers as float64.
func optionInt(o *discordgo.ApplicationCommandInteractionDataOption) int64 {
	switch v := o.Value.(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

// discordMessage converts a guild message; messages of bots, webhooks and
// direct messages yield nil.
func discordMessage(m *discordgo.Message) *automod.Message {
	if m == nil || m.Author == nil || m.Author.Bot || m.WebhookID != "" || m.GuildID == "" {
		return nil
	}

	msg := &automod.Message{
		GuildID:       m.GuildID,
		ChannelID:     m.ChannelID,
		MessageID:     m.ID,
		AuthorID:      m.Author.ID,
		AuthorMention: m.Author.Mention(),
		Content:       m.Content,
		At:            m.Timestamp,
	}
	for _, u := range m.Mentions {
		msg.MentionedUserIDs = append(msg.MentionedUserIDs, u.ID)
	}
	return msg
}

// discordGuild reads the guild from the state cache before asking the API.
func discordGuild(ctx context.Context, s *discordgo.Session, guildID string) (*discordgo.Guild, error) {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			return g, nil
		}
	}
	return s.Guild(guildID, discordgo.WithContext(ctx))
}

func guildName(s *discordgo.Session, guildID string) string {
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			return g.Name
		}
	}
	return ""
}
