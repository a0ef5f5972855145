package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config is the root configuration for mcpbot.
type Config struct {
	General GeneralConfig `json:"general"`
	Slack   SlackConfig   `json:"slack"`
	LLM     LLMConfig     `json:"llm"`
	MCP     MCPConfig     `json:"mcp"`
	Audit   AuditConfig   `json:"audit"`
	Metrics MetricsConfig `json:"metrics,omitempty"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	MaxIterations         int    `json:"maxIterations"`         // orchestration loop cap
	MaxToolCalls          int    `json:"maxToolCalls"`          // batch dispatch cap
	HistoryLimit          int    `json:"historyLimit"`          // messages of history per completion
	MaxConcurrentMessages int    `json:"maxConcurrentMessages"` // concurrent conversations
	RatePerMinute         float64 `json:"ratePerMinute,omitempty"` // completion call throttle, 0 = default
}

type SlackConfig struct {
	BotToken string `json:"botToken"`
	AppToken string `json:"appToken"` // required for Socket Mode
}

type LLMConfig struct {
	Model           string  `json:"model"`
	OpenAIAPIKey    string  `json:"openaiApiKey,omitempty"`
	GroqAPIKey      string  `json:"groqApiKey,omitempty"`
	AnthropicAPIKey string  `json:"anthropicApiKey,omitempty"`
	MaxTokens       int     `json:"maxTokens"`
	Temperature     float64 `json:"temperature"`
	TimeoutSeconds  int     `json:"timeoutSeconds"`
	MaxRetries      int     `json:"maxRetries"`
}

type MCPConfig struct {
	ServersConfigPath string  `json:"serversConfigPath"`
	RetryAttempts     int     `json:"retryAttempts"`
	RetryDelaySeconds float64 `json:"retryDelaySeconds"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled"`
	DBPath  string `json:"dbPath"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Listen  string `json:"listen,omitempty"` // host:port for the /metrics endpoint
}

// DefaultConfigDir returns ~/.mcpbot.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mcpbot"
	}
	return filepath.Join(home, ".mcpbot")
}

// DefaultConfigPath returns ~/.mcpbot/config.json.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads the config file, fills in defaults for zero values, and applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	cfg.ApplyEnv()
	return cfg, nil
}

// Save writes the config to path as indented JSON.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

// ApplyEnv overrides secrets and model selection from the environment.
// These are the variables the bot has always honored, so deployments can keep
// tokens out of the config file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		c.Slack.AppToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("GROQ_API_KEY"); v != "" {
		c.LLM.GroqAPIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.LLM.AnthropicAPIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
}

// Validate checks the fields serve cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.botToken")
	}
	if c.Slack.AppToken == "" {
		missing = append(missing, "slack.appToken")
	}
	if c.LLM.Model == "" {
		missing = append(missing, "llm.model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) applyDefaults() {
	d := Defaults()
	if c.General.LogLevel == "" {
		c.General.LogLevel = d.General.LogLevel
	}
	if c.General.MaxIterations <= 0 {
		c.General.MaxIterations = d.General.MaxIterations
	}
	if c.General.MaxToolCalls <= 0 {
		c.General.MaxToolCalls = d.General.MaxToolCalls
	}
	if c.General.HistoryLimit <= 0 {
		c.General.HistoryLimit = d.General.HistoryLimit
	}
	if c.General.MaxConcurrentMessages <= 0 {
		c.General.MaxConcurrentMessages = d.General.MaxConcurrentMessages
	}
	if c.LLM.Model == "" {
		c.LLM.Model = d.LLM.Model
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = d.LLM.MaxTokens
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = d.LLM.Temperature
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = d.LLM.TimeoutSeconds
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = d.LLM.MaxRetries
	}
	if c.MCP.ServersConfigPath == "" {
		c.MCP.ServersConfigPath = d.MCP.ServersConfigPath
	}
	if c.MCP.RetryAttempts <= 0 {
		c.MCP.RetryAttempts = d.MCP.RetryAttempts
	}
	if c.MCP.RetryDelaySeconds <= 0 {
		c.MCP.RetryDelaySeconds = d.MCP.RetryDelaySeconds
	}
	if c.Audit.DBPath == "" {
		c.Audit.DBPath = d.Audit.DBPath
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = d.Metrics.Listen
	}
}
