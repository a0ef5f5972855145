package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ServerConfig describes how to reach one MCP server. Exactly one of
// Command (stdio) or URL (SSE) must be set.
type ServerConfig struct {
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

type serversFile struct {
	MCPServers map[string]ServerConfig `json:"mcpServers"`
}

// LoadConfig reads a servers_config.json of the form
// {"mcpServers": {"name": {"command": ..., "args": [...]}}}.
func LoadConfig(path string) (map[string]ServerConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read servers config %s: %w", path, err)
	}
	var f serversFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse servers config %s: %w", path, err)
	}
	return f.MCPServers, nil
}

// ConnectAll builds and connects a server per config entry, in stable name
// order so tool-name collisions resolve the same way across restarts. A
// server that fails to connect is skipped with an error log; the rest keep
// going.
func ConnectAll(ctx context.Context, configs map[string]ServerConfig, opts Options) []*Server {
	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	logger := opts.Logger
	servers := make([]*Server, 0, len(names))
	for _, name := range names {
		srv := New(name, configs[name], opts)
		if err := srv.Connect(ctx); err != nil {
			if logger != nil {
				logger.Error("failed to initialize mcp server", "server", name, "error", err)
			}
			continue
		}
		servers = append(servers, srv)
	}
	return servers
}

// CloseAll closes every server, logging failures.
func CloseAll(servers []*Server, opts Options) {
	for _, srv := range servers {
		if err := srv.Close(); err != nil && opts.Logger != nil {
			opts.Logger.Warn("error closing mcp server", "server", srv.Name(), "error", err)
		}
	}
}
