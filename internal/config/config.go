package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultModel             = "claude-sonnet-4-5-20250929"
	DefaultMaxTokens         = 8192
	DefaultMaxToolIterations = 10
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 18850
	DefaultManagerAgentID    = "idea-manager"
	DefaultEmailAgentID      = "email-sender"
	DefaultScheduleID        = "daily-ideas"
	DefaultScheduleCron      = "0 8 * * *"
	DefaultScheduleTimezone  = "UTC"
	DefaultMaxAttempts       = 3
)

type Config struct {
	Agent    AgentConfig    `json:"agent"`
	Agents   AgentsConfig   `json:"agents"`
	Provider ProviderConfig `json:"provider"`
	Server   ServerConfig   `json:"server"`
	Store    StoreConfig    `json:"store"`
	Schedule ScheduleConfig `json:"schedule"`
	Notify   NotifyConfig   `json:"notify"`
}

type AgentConfig struct {
	Workspace         string `json:"workspace"`
	Model             string `json:"model"`
	MaxTokens         int    `json:"maxTokens"`
	MaxToolIterations int    `json:"maxToolIterations"`
}

// AgentsConfig names the two agent identities used by the flows:
// the idea-generation manager and the email sender.
type AgentsConfig struct {
	ManagerID string `json:"managerId"`
	EmailID   string `json:"emailId"`
}

type ProviderConfig struct {
	Type    string `json:"type,omitempty"` // "anthropic" (default) or "openai"
	APIKey  string `json:"apiKey"`
	BaseURL string `json:"baseUrl,omitempty"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type StoreConfig struct {
	DBPath string `json:"dbPath,omitempty"`
}

type ScheduleConfig struct {
	ID          string `json:"id"`
	CronExpr    string `json:"cronExpr"`
	Timezone    string `json:"timezone"`
	MaxAttempts int    `json:"maxAttempts"`
	StorePath   string `json:"storePath,omitempty"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `json:"telegram"`
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
	ChatID  int64  `json:"chatId"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Agent: AgentConfig{
			Workspace:         filepath.Join(home, ".ideaengine", "workspace"),
			Model:             DefaultModel,
			MaxTokens:         DefaultMaxTokens,
			MaxToolIterations: DefaultMaxToolIterations,
		},
		Agents: AgentsConfig{
			ManagerID: DefaultManagerAgentID,
			EmailID:   DefaultEmailAgentID,
		},
		Provider: ProviderConfig{},
		Server: ServerConfig{
			Host: DefaultHost,
			Port: DefaultPort,
		},
		Schedule: ScheduleConfig{
			ID:          DefaultScheduleID,
			CronExpr:    DefaultScheduleCron,
			Timezone:    DefaultScheduleTimezone,
			MaxAttempts: DefaultMaxAttempts,
		},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".ideaengine")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// DBPath returns the configured sqlite path, falling back to the
// data directory under the config dir.
func (c *Config) DBPath() string {
	if c.Store.DBPath != "" {
		return c.Store.DBPath
	}
	return filepath.Join(ConfigDir(), "data", "ideaengine.db")
}

// ScheduleStorePath returns where the schedule record and its
// execution log are persisted.
func (c *Config) ScheduleStorePath() string {
	if c.Schedule.StorePath != "" {
		return c.Schedule.StorePath
	}
	return filepath.Join(ConfigDir(), "data", "schedule.json")
}

func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if key := os.Getenv("IDEAENGINE_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = key
		if cfg.Provider.Type == "" {
			cfg.Provider.Type = "openai"
		}
	}
	if url := os.Getenv("IDEAENGINE_BASE_URL"); url != "" {
		cfg.Provider.BaseURL = url
	}
	if url := os.Getenv("ANTHROPIC_BASE_URL"); url != "" && cfg.Provider.BaseURL == "" {
		cfg.Provider.BaseURL = url
	}
	if dbPath := os.Getenv("IDEAENGINE_DB_PATH"); dbPath != "" {
		cfg.Store.DBPath = dbPath
	}
	if port := os.Getenv("IDEAENGINE_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = parsed
		}
	}
	if expr := os.Getenv("IDEAENGINE_SCHEDULE_CRON"); expr != "" {
		cfg.Schedule.CronExpr = expr
	}
	if tz := os.Getenv("IDEAENGINE_SCHEDULE_TZ"); tz != "" {
		cfg.Schedule.Timezone = tz
	}
	if token := os.Getenv("IDEAENGINE_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.Token = token
	}
	if chatID := os.Getenv("IDEAENGINE_TELEGRAM_CHAT_ID"); chatID != "" {
		if parsed, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.Notify.Telegram.ChatID = parsed
		}
	}

	if cfg.Agent.Workspace == "" {
		cfg.Agent.Workspace = DefaultConfig().Agent.Workspace
	}
	if cfg.Agents.ManagerID == "" {
		cfg.Agents.ManagerID = DefaultManagerAgentID
	}
	if cfg.Agents.EmailID == "" {
		cfg.Agents.EmailID = DefaultEmailAgentID
	}
	if cfg.Schedule.ID == "" {
		cfg.Schedule.ID = DefaultScheduleID
	}
	if cfg.Schedule.CronExpr == "" {
		cfg.Schedule.CronExpr = DefaultScheduleCron
	}
	if cfg.Schedule.Timezone == "" {
		cfg.Schedule.Timezone = DefaultScheduleTimezone
	}
	if cfg.Schedule.MaxAttempts <= 0 {
		cfg.Schedule.MaxAttempts = DefaultMaxAttempts
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
