package config

import "path/filepath"

// Defaults returns the built-in configuration. The numeric values match the
// bot's historical behavior: 10 loop iterations, 10 tool calls per turn,
// 5 messages of history per completion, 1500 completion tokens.
func Defaults() *Config {
	dir := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			LogLevel:              "info",
			MaxIterations:         10,
			MaxToolCalls:          10,
			HistoryLimit:          5,
			MaxConcurrentMessages: 3,
		},
		LLM: LLMConfig{
			Model:          "gpt-4-turbo",
			MaxTokens:      1500,
			Temperature:    0.7,
			TimeoutSeconds: 30,
			MaxRetries:     2,
		},
		MCP: MCPConfig{
			ServersConfigPath: filepath.Join(dir, "servers_config.json"),
			RetryAttempts:     2,
			RetryDelaySeconds: 1.0,
		},
		Audit: AuditConfig{
			Enabled: true,
			DBPath:  filepath.Join(dir, "audit.db"),
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9090",
		},
	}
}
