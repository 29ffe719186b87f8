package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/liteclaw/internal/agent"
	"github.com/nextlevelbuilder/liteclaw/internal/browser"
	"github.com/nextlevelbuilder/liteclaw/internal/config"
	"github.com/nextlevelbuilder/liteclaw/internal/egress"
	"github.com/nextlevelbuilder/liteclaw/internal/gateway"
	"github.com/nextlevelbuilder/liteclaw/internal/loops"
	"github.com/nextlevelbuilder/liteclaw/internal/memory"
	"github.com/nextlevelbuilder/liteclaw/internal/providers"
	"github.com/nextlevelbuilder/liteclaw/internal/router"
	"github.com/nextlevelbuilder/liteclaw/internal/scheduler"
	"github.com/nextlevelbuilder/liteclaw/internal/store/sqlite"
	"github.com/nextlevelbuilder/liteclaw/internal/subagent"
	"github.com/nextlevelbuilder/liteclaw/internal/tools"
	"github.com/nextlevelbuilder/liteclaw/internal/vision"
)

func gatewayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gateway",
		Short: "Run the gateway server (default command)",
		Run: func(cmd *cobra.Command, args []string) {
			runGateway()
		},
	}
}

// providerBases maps provider names to their OpenAI-compatible API
// roots. A configured api_base always wins.
var providerBases = map[string]string{
	"openai":     "https://api.openai.com/v1",
	"openrouter": "https://openrouter.ai/api/v1",
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com",
}

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	workspace := cfg.WorkspacePath()
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		slog.Error("failed to create workspace", "dir", workspace, "error", err)
		os.Exit(1)
	}

	db, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		slog.Error("failed to open database", "path", cfg.DatabasePath(), "error", err)
		os.Exit(1)
	}
	defer db.Close()

	providerName, pc := cfg.ActiveProvider()
	if pc.APIKey == "" {
		slog.Error("no API key configured for provider", "provider", providerName)
		os.Exit(1)
	}
	base := pc.APIBase
	if base == "" {
		base = providerBases[providerName]
	}
	provider := providers.NewOpenAIProvider(providerName, pc.APIKey, base, cfg.Agent.Model)

	mem := memory.NewStore(workspace)
	eg := egress.NewClient(cfg.Bridge.URL)
	registry := tools.NewRegistry()

	engine := agent.NewEngine(agent.Config{
		Provider:      provider,
		Registry:      registry,
		History:       db,
		Memory:        mem,
		SelfTag:       cfg.SelfTag(),
		Model:         cfg.Agent.Model,
		MaxTokens:     cfg.Agent.MaxTokens,
		Temperature:   cfg.Agent.Temperature,
		MaxIterations: cfg.Agent.MaxToolIterations,
		HistoryLimit:  cfg.Agent.HistoryLimit,
	})

	allowed := []string(cfg.Bridge.AllowedNumbers)
	pending := router.NewPendingQuestions()
	rt := router.New(engine, db, eg, pending, cfg.SelfTag(), allowed)

	bm := browser.NewManager(cfg.Tools.Browser.Headless)
	sup := subagent.NewSupervisor(engine, eg, bm, db, cfg.SelfTag())

	var screen vision.Screen = vision.UnavailableScreen{}
	visionWorker := vision.NewWorker(vision.WorkerConfig{
		Provider: provider,
		Model:    cfg.Agent.VisionModel,
		Screen:   screen,
		Egress:   eg,
		Pending:  pending,
		SelfTag:  cfg.SelfTag(),
		WorkDir:  workspace,
		MaxSteps: cfg.Vision.MaxSteps,
	})
	sup.SetVision(visionWorker)

	notifyTo := ""
	if len(allowed) > 0 {
		notifyTo = allowed[0]
	}
	sched := scheduler.New(scheduler.Config{
		Store:    db,
		History:  db,
		Runner:   engine,
		Egress:   eg,
		SelfTag:  cfg.SelfTag(),
		NotifyTo: notifyTo,
	})

	registerTools(registry, toolDeps{
		cfg:        cfg,
		workspace:  workspace,
		memory:     mem,
		history:    db,
		egress:     eg,
		supervisor: sup,
		vision:     visionWorker,
		browser:    bm,
		scheduler:  sched,
		screen:     screen,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	if cfg.Vision.Enabled {
		visionWorker.Start(ctx)
	}
	if cfg.Loops.Heartbeat {
		loops.NewHeartbeat(engine, sup, visionWorker, workspace).Start(ctx)
	}
	if cfg.Loops.Subconscious {
		loops.NewSubconscious(engine, mem).Start(ctx)
	}
	if cfg.Loops.Conscious {
		loops.NewConscious(engine, mem).Start(ctx)
	}

	server := gateway.NewServer(gateway.Config{
		Host:         cfg.Gateway.Host,
		Port:         cfg.Gateway.Port,
		RateLimitRPM: cfg.Gateway.RateLimitRPM,
	}, engine, db, rt, sched)

	defer bm.CloseAll()

	if err := server.Start(ctx); err != nil {
		slog.Error("gateway stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("gateway shut down")
}


// toolDeps bundles everything the builtin tools need.
type toolDeps struct {
	cfg        *config.Config
	workspace  string
	memory     *memory.Store
	history    *sqlite.Store
	egress     *egress.Client
	supervisor *subagent.Supervisor
	vision     *vision.Worker
	browser    *browser.Manager
	scheduler  *scheduler.Scheduler
	screen     vision.Screen
}

func registerTools(reg *tools.Registry, d toolDeps) {
	reg.Register(tools.NewShellTool(d.workspace, d.cfg.Tools.Shell.TimeoutSec))
	reg.Register(tools.NewSystemInfoTool(d.screen))

	reg.Register(tools.NewUpdateSoulTool(d.memory))
	reg.Register(tools.NewAppendSoulTool(d.memory))
	reg.Register(tools.NewUpdatePersonalityTool(d.memory))
	reg.Register(tools.NewUpdateSubconsciousTool(d.memory))
	reg.Register(tools.NewUpdateConsciousTool(d.memory))

	reg.Register(tools.NewCreateSessionTool(d.history))
	reg.Register(tools.NewFetchURLTool())
	reg.Register(tools.NewSearchTool(d.cfg.Tools.Search.BraveAPIKey))
	reg.Register(tools.NewFilesTool(d.workspace))
	reg.Register(tools.NewSkillsTool(d.workspace))
	reg.Register(tools.NewCronTool(d.scheduler))

	reg.Register(tools.NewSendMediaTool(d.egress, d.cfg.SelfTag()))
	reg.Register(tools.NewGifTool(d.egress, d.cfg.Tools.Giphy.APIKey, d.cfg.SelfTag()))

	reg.Register(tools.NewDelegateTool(d.supervisor))
	reg.Register(tools.NewListSubAgentsTool(d.supervisor))
	reg.Register(tools.NewKillSubAgentTool(d.supervisor))
	reg.Register(tools.NewKillAllSubAgentsTool(d.supervisor))
	reg.Register(tools.NewMessageSubAgentTool(d.supervisor))

	if d.cfg.Vision.Enabled {
		reg.Register(tools.NewVisionTaskTool(d.vision))
	}
	reg.Register(tools.NewBrowserTaskTool(d.browser))
}
