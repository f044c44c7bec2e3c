// Package config provides YAML-based configuration loading for Acorn.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Acorn configuration, loaded from acorn.yaml.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Target     TargetConfig     `yaml:"target"`
	Selectors  SelectorConfig   `yaml:"selectors"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Watch      WatchConfig      `yaml:"watch"`
	API        APIConfig        `yaml:"api"`
	Schedules  ScheduleConfig   `yaml:"schedules"`
	Notify     NotifyConfig     `yaml:"notify"`
	ADB        ADBConfig        `yaml:"adb"`
}

// DatabaseConfig selects the persistent store backend.
type DatabaseConfig struct {
	Backend string `yaml:"backend"` // "sqlite" (default) or "mysql"
	Path    string `yaml:"path"`    // sqlite file path
	DSN     string `yaml:"dsn"`     // mysql DSN
}

// TargetConfig identifies the foreign chat application being automated.
type TargetConfig struct {
	Package          string   `yaml:"package"`
	ChatClasses      []string `yaml:"chat_classes"`
	ChatTitlePattern string   `yaml:"chat_title_pattern"`
}

// SelectorConfig holds the candidate element identifiers, in probe order.
// The foreign app renames its view ids across releases, so each selector is
// a list of known-good ids tried until one yields a match. New releases are
// supported by editing this data, not the code.
type SelectorConfig struct {
	MessageList []string `yaml:"message_list"`
	MessageText []string `yaml:"message_text"`
	InputBox    []string `yaml:"input_box"`
	SendButton  []string `yaml:"send_button"`
	ChatTitle   []string `yaml:"chat_title"`
}

// DispatcherConfig tunes the UI action queue.
type DispatcherConfig struct {
	TickMs int `yaml:"tick_ms"`
}

// WatchConfig tunes the device event watcher.
type WatchConfig struct {
	PollMs int `yaml:"poll_ms"`
}

// APIConfig controls the management HTTP API.
type APIConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ScheduleConfig holds 5-field cron expressions for background maintenance.
// Empty expressions disable the corresponding job.
type ScheduleConfig struct {
	RulesRefresh  string `yaml:"rules_refresh"`
	Retention     string `yaml:"retention"`
	RetentionDays int    `yaml:"retention_days"`
}

// NotifyConfig holds operator notification endpoints. All are optional.
type NotifyConfig struct {
	SlackWebhookURL     string `yaml:"slack_webhook_url"`
	DiscordWebhookID    string `yaml:"discord_webhook_id"`
	DiscordWebhookToken string `yaml:"discord_webhook_token"`
}

// ADBConfig locates the adb binary and target device.
type ADBConfig struct {
	Path   string `yaml:"path"`
	Serial string `yaml:"serial"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values. The selector and
// target defaults match the chat application the original deployment
// automated; they are placeholders for any real installation.
func (c *Config) applyDefaults() {
	if c.Database.Backend == "" {
		c.Database.Backend = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "acorn.db"
	}
	if c.Target.Package == "" {
		c.Target.Package = "com.tencent.mm"
	}
	if len(c.Target.ChatClasses) == 0 {
		c.Target.ChatClasses = []string{"LauncherUI", "ChattingUI"}
	}
	if c.Target.ChatTitlePattern == "" {
		c.Target.ChatTitlePattern = `^(.*) - 聊天$`
	}
	if len(c.Selectors.MessageList) == 0 {
		c.Selectors.MessageList = []string{
			"com.tencent.mm:id/b5q",
			"com.tencent.mm:id/ij",
			"com.tencent.mm:id/kl",
		}
	}
	if len(c.Selectors.MessageText) == 0 {
		c.Selectors.MessageText = []string{
			"com.tencent.mm:id/b5r",
			"com.tencent.mm:id/ik",
			"com.tencent.mm:id/km",
		}
	}
	if len(c.Selectors.InputBox) == 0 {
		c.Selectors.InputBox = []string{
			"com.tencent.mm:id/b4a",
			"com.tencent.mm:id/kg",
			"com.tencent.mm:id/ib",
		}
	}
	if len(c.Selectors.SendButton) == 0 {
		c.Selectors.SendButton = []string{
			"com.tencent.mm:id/b4b",
			"com.tencent.mm:id/kh",
			"com.tencent.mm:id/ic",
		}
	}
	if len(c.Selectors.ChatTitle) == 0 {
		c.Selectors.ChatTitle = []string{"android:id/title"}
	}
	if c.Dispatcher.TickMs <= 0 {
		c.Dispatcher.TickMs = 100
	}
	if c.Watch.PollMs <= 0 {
		c.Watch.PollMs = 1000
	}
	if c.API.Port <= 0 {
		c.API.Port = 8321
	}
	if c.Schedules.RetentionDays <= 0 {
		c.Schedules.RetentionDays = 30
	}
	if c.ADB.Path == "" {
		c.ADB.Path = "adb"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Backend {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for mysql")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.backend %q is not supported (sqlite, mysql)", c.Database.Backend))
	}
	if c.Target.Package == "" {
		errs = append(errs, "target.package is required")
	}
	if _, err := regexp.Compile(c.Target.ChatTitlePattern); err != nil {
		errs = append(errs, fmt.Sprintf("target.chat_title_pattern: %v", err))
	}
	if len(c.Selectors.MessageList) == 0 {
		errs = append(errs, "selectors.message_list must list at least one id")
	}
	if len(c.Selectors.MessageText) == 0 {
		errs = append(errs, "selectors.message_text must list at least one id")
	}
	if (c.Notify.DiscordWebhookID == "") != (c.Notify.DiscordWebhookToken == "") {
		errs = append(errs, "notify.discord_webhook_id and notify.discord_webhook_token must be set together")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
