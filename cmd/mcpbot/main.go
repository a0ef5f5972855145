package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mcpbot/internal/agent"
	"mcpbot/internal/audit"
	"mcpbot/internal/bus"
	"mcpbot/internal/channel"
	"mcpbot/internal/config"
	"mcpbot/internal/conversation"
	"mcpbot/internal/domain"
	"mcpbot/internal/mcpserver"
	"mcpbot/internal/metrics"
	"mcpbot/internal/provider"
	"mcpbot/internal/tool"

	"github.com/spf13/cobra"
)

var (
	version    = "1.0.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "mcpbot",
		Short: "mcpbot: Slack bot that answers with MCP tools",
		Long:  "mcpbot bridges Slack to an LLM and a set of MCP tool servers. The model decides which tools to call; mcpbot runs them and feeds the results back.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.mcpbot/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(toolsCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
		cfg.ApplyEnv()
	}
	applyLogLevel(cfg.General.LogLevel)
	return cfg
}

func applyLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write default config.json and servers_config.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			cfgPath := config.DefaultConfigPath()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := writeExampleServersConfig(cfg.MCP.ServersConfigPath); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "servers", cfg.MCP.ServersConfigPath)
			return nil
		},
	}
}

// writeExampleServersConfig writes a starter servers_config.json unless one
// already exists.
func writeExampleServersConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		logger.Info("servers config already exists, leaving it alone", "path", path)
		return nil
	}
	example := `{
  "mcpServers": {
    "sqlite": {
      "command": "uvx",
      "args": ["mcp-server-sqlite", "--db-path", "./test.db"]
    }
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Slack bot",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := buildRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Listen)
	}

	go rt.orchestrator.Run(ctx)

	slackCh := channel.NewSlack(channel.SlackConfig{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
		Catalog: func(ctx context.Context) []domain.ToolDescriptor {
			return rt.dispatcher.Catalog(ctx)
		},
		Logger: logger,
	})
	return slackCh.Start(ctx, rt.bus)
}

func chatCmd() *cobra.Command {
	var once string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start interactive chat in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.close()

			if once != "" {
				rt.bus.OnOutbound("cli", func(msg domain.OutboundMessage) {
					fmt.Println(msg.Text)
				})
				return rt.orchestrator.ProcessDirect(ctx, "cli", "direct", once)
			}

			go rt.orchestrator.Run(ctx)

			cliCh := channel.NewCLI(channel.CLIConfig{Logger: logger})
			return cliCh.Start(ctx, rt.bus)
		},
	}
	cmd.Flags().StringVarP(&once, "once", "m", "", "send a single message, print the replies, and exit")
	return cmd
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered by the configured MCP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			configs, err := mcpserver.LoadConfig(cfg.MCP.ServersConfigPath)
			if err != nil {
				return err
			}
			opts := mcpOptions(cfg)
			servers := mcpserver.ConnectAll(ctx, configs, opts)
			defer mcpserver.CloseAll(servers, opts)

			for _, srv := range servers {
				tools, err := srv.ListTools(ctx)
				if err != nil {
					fmt.Printf("%s: error listing tools: %v\n", srv.Name(), err)
					continue
				}
				fmt.Printf("%s (%d tools)\n", srv.Name(), len(tools))
				for _, t := range tools {
					fmt.Printf("  %-24s %s\n", t.Name, t.Description)
				}
			}
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("mcpbot " + version)
		},
	}
}

// runtime bundles everything a running bot needs.
type runtime struct {
	bus          *bus.InMemoryBus
	dispatcher   *tool.Dispatcher
	orchestrator *agent.Orchestrator
	auditStore   *audit.Store
	servers      []*mcpserver.Server
	mcpOpts      mcpserver.Options
}

func (r *runtime) close() {
	mcpserver.CloseAll(r.servers, r.mcpOpts)
	if r.auditStore != nil {
		r.auditStore.Close()
	}
	r.bus.Close()
}

func mcpOptions(cfg *config.Config) mcpserver.Options {
	return mcpserver.Options{
		RetryAttempts: cfg.MCP.RetryAttempts,
		RetryDelay:    time.Duration(cfg.MCP.RetryDelaySeconds * float64(time.Second)),
		Logger:        logger,
	}
}

func buildRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	completer, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("completion provider ready", "provider", completer.Name(), "model", cfg.LLM.Model)

	opts := mcpOptions(cfg)
	var servers []*mcpserver.Server
	if configs, err := mcpserver.LoadConfig(cfg.MCP.ServersConfigPath); err != nil {
		logger.Warn("no MCP servers configured", "path", cfg.MCP.ServersConfigPath, "err", err)
	} else {
		servers = mcpserver.ConnectAll(ctx, configs, opts)
	}
	metrics.ConnectedServers.Set(int64(len(servers)))

	providers := make([]domain.ToolProvider, len(servers))
	for i, srv := range servers {
		providers[i] = srv
	}

	dispatcher := tool.NewDispatcher(tool.DispatcherConfig{
		Providers:    providers,
		MaxToolCalls: cfg.General.MaxToolCalls,
		Logger:       logger,
	})

	var auditStore *audit.Store
	var recorder agent.AuditRecorder
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.DBPath, logger)
		if err != nil {
			mcpserver.CloseAll(servers, opts)
			return nil, err
		}
		recorder = auditStore
	}

	messageBus := bus.New(100, logger)

	orchestrator := agent.NewOrchestrator(agent.OrchestratorConfig{
		Completer:     completer,
		Store:         conversation.NewStore(),
		Dispatcher:    dispatcher,
		Bus:           messageBus,
		Recorder:      recorder,
		Logger:        logger,
		MaxIterations: cfg.General.MaxIterations,
		HistoryLimit:  cfg.General.HistoryLimit,
		Concurrency:   cfg.General.MaxConcurrentMessages,
		RatePerMinute: cfg.General.RatePerMinute,
	})

	return &runtime{
		bus:          messageBus,
		dispatcher:   dispatcher,
		orchestrator: orchestrator,
		auditStore:   auditStore,
		servers:      servers,
		mcpOpts:      opts,
	}, nil
}

func serveMetrics(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Collector.Handler())
	logger.Info("metrics endpoint listening", "addr", listen)
	if err := http.ListenAndServe(listen, mux); err != nil {
		logger.Error("metrics server failed", "err", err)
	}
}
