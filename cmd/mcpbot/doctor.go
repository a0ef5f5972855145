package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mcpbot/internal/audit"
	"mcpbot/internal/config"
	"mcpbot/internal/mcpserver"
	"mcpbot/internal/provider"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	var showAudit int

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your mcpbot installation",
		Long: `Verifies that mcpbot's configuration, LLM credentials, MCP servers, and
audit database are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showAudit > 0 {
				return printRecentAudit(showAudit)
			}

			cfgPath := resolveConfigPath()
			fmt.Printf("mcpbot Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'mcpbot init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config parse", err.Error())
				fmt.Printf("\nResults: %d passed, %d failed\n", passed, failed+1)
				return fmt.Errorf("config unreadable")
			}
			printPass("Config parse", "valid")
			passed++

			// 3. Slack tokens present
			if cfg.Slack.BotToken == "" || cfg.Slack.AppToken == "" {
				printFail("Slack tokens", "botToken and appToken (or SLACK_BOT_TOKEN/SLACK_APP_TOKEN) required")
				failed++
			} else {
				printPass("Slack tokens", "configured")
				passed++
			}

			// 4. Model resolves to a provider and its key is present
			kind, err := provider.ResolveKind(cfg.LLM.Model)
			if err != nil {
				printFail("LLM model", err.Error())
				failed++
			} else {
				printPass("LLM model", fmt.Sprintf("%s → %s", cfg.LLM.Model, kind))
				passed++
				if _, err := provider.New(cfg.LLM, logger); err != nil {
					printFail("LLM credentials", err.Error())
					failed++
				} else {
					printPass("LLM credentials", "configured")
					passed++
				}
			}

			// 5. MCP servers config and connectivity
			configs, err := mcpserver.LoadConfig(cfg.MCP.ServersConfigPath)
			switch {
			case err != nil:
				printWarn("MCP servers", fmt.Sprintf("no servers config: %v", err))
				warned++
			case len(configs) == 0:
				printWarn("MCP servers", "servers config is empty")
				warned++
			default:
				ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				opts := mcpOptions(cfg)
				servers := mcpserver.ConnectAll(ctx, configs, opts)
				for _, srv := range servers {
					tools, err := srv.ListTools(ctx)
					if err != nil {
						printWarn("MCP: "+srv.Name(), fmt.Sprintf("connected but tool listing failed: %v", err))
						warned++
						continue
					}
					printPass("MCP: "+srv.Name(), fmt.Sprintf("%d tools", len(tools)))
					passed++
				}
				if len(servers) < len(configs) {
					printFail("MCP servers", fmt.Sprintf("%d of %d failed to connect", len(configs)-len(servers), len(configs)))
					failed++
				}
				mcpserver.CloseAll(servers, opts)
				cancel()
			}

			// 6. Audit database writable
			if cfg.Audit.Enabled {
				if err := checkDatabase(cfg.Audit.DBPath); err != nil {
					printFail("Audit database", err.Error())
					failed++
				} else {
					printPass("Audit database", cfg.Audit.DBPath)
					passed++
				}
			}

			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running mcpbot.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nmcpbot should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! mcpbot is ready to run.\n")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&showAudit, "audit", 0, "print the last N tool executions from the audit log instead of running checks")
	return cmd
}

func printRecentAudit(limit int) error {
	cfg := loadConfig()
	store, err := audit.Open(cfg.Audit.DBPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no tool executions recorded")
		return nil
	}
	for _, r := range recs {
		status := "ok"
		if !r.Success {
			status = "FAILED: " + r.Error
		}
		fmt.Printf("%s  %-24s %-16s %6dms  %s\n",
			r.CreatedAt.Format(time.RFC3339), r.Tool, r.ConversationKey,
			r.Duration.Milliseconds(), status)
	}
	return nil
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	// Try a write.
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
