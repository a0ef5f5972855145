package mcpserver

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "servers_config.json")
	raw := `{
  "mcpServers": {
    "sqlite": {
      "command": "uvx",
      "args": ["mcp-server-sqlite", "--db-path", "./test.db"],
      "env": {"FOO": "bar"}
    },
    "remote": {
      "url": "http://localhost:8080/sse"
    }
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfgs, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfgs) != 2 {
		t.Fatalf("expected 2 servers, got %d", len(cfgs))
	}
	sqlite := cfgs["sqlite"]
	if sqlite.Command != "uvx" {
		t.Fatalf("unexpected command %q", sqlite.Command)
	}
	if len(sqlite.Args) != 3 || sqlite.Args[1] != "--db-path" {
		t.Fatalf("args not preserved: %v", sqlite.Args)
	}
	if sqlite.Env["FOO"] != "bar" {
		t.Fatalf("env not preserved: %v", sqlite.Env)
	}
	if cfgs["remote"].URL != "http://localhost:8080/sse" {
		t.Fatalf("url not preserved: %q", cfgs["remote"].URL)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestConnectRequiresTransport(t *testing.T) {
	srv := New("empty", ServerConfig{}, Options{})
	if err := srv.Connect(t.Context()); err == nil {
		t.Fatal("expected error when neither command nor url is set")
	}
}

func TestInvokeBeforeConnect(t *testing.T) {
	srv := New("disconnected", ServerConfig{Command: "true"}, Options{})
	if _, err := srv.Invoke(t.Context(), "anything", nil); err == nil {
		t.Fatal("expected error before Connect")
	}
	if _, err := srv.ListTools(t.Context()); err == nil {
		t.Fatal("expected error before Connect")
	}
}
