package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// global configuration structure
type Config struct {
	Bot      BotConfig      `mapstructure:"bot"`
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AutoMod  AutoModConfig  `mapstructure:"automod"`
	Leveling LevelingConfig `mapstructure:"leveling"`
}

// chat platform connections
type BotConfig struct {
	Discord  DiscordConfig  `mapstructure:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type DiscordConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Token            string `mapstructure:"token"`
	RegisterCommands bool   `mapstructure:"register_commands"`
}

type TelegramConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Token   string        `mapstructure:"token"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// webhook server configuration
type WebhookConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	DebugPath string `mapstructure:"debug_path"`
	CertFile  string `mapstructure:"cert_file"`
	KeyFile   string `mapstructure:"key_file"`
}

// HTTP server exposing metrics, debug and webhook endpoints
type ServerConfig struct {
	ListenPort  string `mapstructure:"listen_port"`
	MetricsPath string `mapstructure:"metrics_path"`
}

// logging configuration
type LoggerConfig struct {
	Directory string            `mapstructure:"directory"`
	Rotation  LogRotationConfig `mapstructure:"rotation"`
	Level     string            `mapstructure:"level"`
}

// log rotation settings
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	Charset  string `mapstructure:"charset"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// auto-moderation settings; the rule toggles seed new guild policies
type AutoModConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	SpamStore      string        `mapstructure:"spam_store"`
	SpamThreshold  int           `mapstructure:"spam_threshold"`
	SpamTimeframe  time.Duration `mapstructure:"spam_timeframe"`
	SpamTimeout    time.Duration `mapstructure:"spam_timeout"`
	WindowCapacity int           `mapstructure:"window_capacity"`
	NoticeTTL      time.Duration `mapstructure:"notice_ttl"`

	AntiSpam    bool `mapstructure:"anti_spam"`
	AntiInvite  bool `mapstructure:"anti_invite"`
	AntiLink    bool `mapstructure:"anti_link"`
	AntiCaps    bool `mapstructure:"anti_caps"`
	MaxMentions int  `mapstructure:"max_mentions"`
	MaxEmojis   int  `mapstructure:"max_emojis"`
}

type LevelingConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Cooldown  time.Duration `mapstructure:"cooldown"`
	MinXP     int           `mapstructure:"min_xp"`
	MaxXP     int           `mapstructure:"max_xp"`
	NoticeTTL time.Duration `mapstructure:"notice_ttl"`
}

var cfg *Config

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	log.Printf("Using config file: %s", v.ConfigFileUsed())

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg = loaded
	return cfg, nil
}

func Get() *Config {
	if cfg == nil {
		log.Fatal("Configuration not initialized, call Load() first")
	}
	return cfg
}

// Validate checks the combinations viper cannot express.
func (c *Config) Validate() error {
	if !c.Bot.Discord.Enabled && !c.Bot.Telegram.Enabled {
		return fmt.Errorf("at least one of bot.discord and bot.telegram must be enabled")
	}
	if c.Bot.Discord.Enabled && c.Bot.Discord.Token == "" {
		return fmt.Errorf("bot.discord.token is required")
	}
	if c.Bot.Telegram.Enabled {
		if c.Bot.Telegram.Token == "" {
			return fmt.Errorf("bot.telegram.token is required")
		}
		if c.Bot.Telegram.Webhook.Endpoint == "" {
			return fmt.Errorf("bot.telegram.webhook.endpoint is required")
		}
	}

	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.AutoMod.SpamStore {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			return fmt.Errorf("automod.spam_store is redis but redis is disabled")
		}
	default:
		return fmt.Errorf("unknown automod.spam_store %q", c.AutoMod.SpamStore)
	}

	if c.AutoMod.SpamThreshold < 1 || c.AutoMod.SpamTimeframe <= 0 {
		return fmt.Errorf("automod spam threshold and timeframe must be positive")
	}
	if c.Leveling.MinXP < 0 || c.Leveling.MinXP > c.Leveling.MaxXP {
		return fmt.Errorf("leveling.min_xp must be between 0 and leveling.max_xp")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.discord.enabled", false)
	v.SetDefault("bot.discord.register_commands", true)
	v.SetDefault("bot.telegram.enabled", false)
	v.SetDefault("bot.telegram.webhook.debug_path", "/debug")
	v.SetDefault("bot.telegram.webhook.cert_file", "")
	v.SetDefault("bot.telegram.webhook.key_file", "")

	v.SetDefault("server.listen_port", "8443")
	v.SetDefault("server.metrics_path", "/metrics")

	v.SetDefault("logger.directory", "logs")
	v.SetDefault("logger.rotation.max_size", 10)
	v.SetDefault("logger.rotation.max_backups", 30)
	v.SetDefault("logger.rotation.max_age", 90)
	v.SetDefault("logger.rotation.compress", true)
	v.SetDefault("logger.level", "INFO")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "guild-warden.db")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.charset", "utf8mb4")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("automod.enabled", false)
	v.SetDefault("automod.spam_store", "memory")
	v.SetDefault("automod.spam_threshold", 5)
	v.SetDefault("automod.spam_timeframe", 5*time.Second)
	v.SetDefault("automod.spam_timeout", 5*time.Minute)
	v.SetDefault("automod.window_capacity", 100000)
	v.SetDefault("automod.notice_ttl", 5*time.Second)
	v.SetDefault("automod.anti_spam", true)
	v.SetDefault("automod.anti_invite", true)
	v.SetDefault("automod.anti_link", false)
	v.SetDefault("automod.anti_caps", false)
	v.SetDefault("automod.max_mentions", 5)
	v.SetDefault("automod.max_emojis", 10)

	v.SetDefault("leveling.enabled", false)
	v.SetDefault("leveling.cooldown", time.Minute)
	v.SetDefault("leveling.min_xp", 10)
	v.SetDefault("leveling.max_xp", 25)
	v.SetDefault("leveling.notice_ttl", 10*time.Second)
}
