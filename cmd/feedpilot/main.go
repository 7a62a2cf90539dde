package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"feedpilot/pkg/bridge"
	"feedpilot/pkg/config"
	"feedpilot/pkg/dispatch"
	"feedpilot/pkg/eventlog"
	"feedpilot/pkg/gen"
	"feedpilot/pkg/gen/llm"
	"feedpilot/pkg/logx"
	"feedpilot/pkg/metrics"
	"feedpilot/pkg/persistence"
	"feedpilot/pkg/proto"
	"feedpilot/pkg/review"
	"feedpilot/pkg/scroll"
	"feedpilot/pkg/utils"
)

// Version information - set by goreleaser via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath   = flag.String("config", "feedpilot.yaml", "Path to settings file")
		setupSecrets = flag.Bool("setup-secrets", false, "Interactively store encrypted API keys and exit")
		showVersion  = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("feedpilot %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
		os.Exit(0)
	}

	os.Exit(run(*configPath, *setupSecrets))
}

// run contains the main application logic and returns an exit code so defers
// execute before the process exits.
func run(configPath string, setupSecrets bool) int {
	settings, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if setupSecrets {
		if err := runSecretsSetup(settings.DataDir); err != nil {
			fmt.Fprintf(os.Stderr, "Secrets setup failed: %v\n", err)
			return 1
		}
		return 0
	}

	secrets, err := loadSecrets(settings.DataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load secrets: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runSession(ctx, settings, secrets); err != nil {
		fmt.Fprintf(os.Stderr, "feedpilot failed: %v\n", err)
		return 1
	}
	return 0
}

// runSession wires the full stack for one browsing session and blocks until
// the context is cancelled.
func runSession(ctx context.Context, settings *config.Settings, secrets config.Secrets) error {
	logger := logx.NewLogger("main")
	sessionID := uuid.New().String()
	logger.Info("starting session %s", sessionID)

	store, err := persistence.Open(filepath.Join(settings.DataDir, "feedpilot.db"), sessionID)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("closing store: %v", closeErr)
		}
	}()

	activity, err := eventlog.NewWriter(filepath.Join(settings.DataDir, "logs"), sessionID)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := activity.Close(); closeErr != nil {
			logger.Warn("closing activity log: %v", closeErr)
		}
	}()

	recorder := metrics.NewRecorder()

	page, err := bridge.Dial(ctx, "ws://"+settings.BridgeAddr)
	if err != nil {
		return fmt.Errorf("page bridge unavailable at %s: %w", settings.BridgeAddr, err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			logger.Debug("closing bridge: %v", closeErr)
		}
	}()

	generator, err := buildGenerator(ctx, settings, secrets, recorder)
	if err != nil {
		return err
	}

	notifCh := make(chan *proto.StateChangeNotification, 16)
	jitter := utils.NewRand()

	var scrollAgent *scroll.Agent
	if settings.Behavior.AutoScroll {
		engine := scroll.NewEngine(settings.Behavior.ScrollSpeed)
		scrollAgent = scroll.NewAgent("scroll-001", engine, page, page, store, jitter, notifCh)
	}

	deps := dispatch.Deps{
		Settings:  settings,
		Extractor: page,
		Liker:     page,
		Injector:  page,
		Store:     store,
		Activity:  activity,
		Metrics:   recorder,
		Generator: generator,
		Reviewer:  review.New(),
		NotifCh:   notifCh,
	}
	if scrollAgent != nil {
		deps.ScrollAgent = scrollAgent
	}

	orch, err := dispatch.New(deps)
	if err != nil {
		return err
	}

	if err := orch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start orchestrator: %w", err)
	}
	if err := activity.Append("session_started", map[string]any{"session_id": sessionID}); err != nil {
		logger.Debug("activity append: %v", err)
	}

	// Pump page events into the orchestrator until the bridge closes.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for event := range page.Events() {
			orch.HandleEvent(event)
		}
	}()

	fmt.Println("✅ feedpilot running. Press Ctrl+C to stop.")
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case <-pumpDone:
		logger.Warn("page connection lost, shutting down")
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := orch.Stop(stopCtx); err != nil {
		logger.Warn("orchestrator stop: %v", err)
	}

	printSessionReport(stopCtx, store, recorder, activity, logger)
	return nil
}

// buildGenerator assembles the provider client and middleware chain. When
// auto-comments are off no provider is needed and the generator stays nil.
func buildGenerator(ctx context.Context, settings *config.Settings, secrets config.Secrets, recorder *metrics.Recorder) (*gen.Generator, error) {
	if !settings.Behavior.AutoComments {
		return nil, nil
	}

	base, err := gen.NewProviderClient(ctx, &settings.Generation, secrets)
	if err != nil {
		return nil, fmt.Errorf("generation provider setup failed: %w", err)
	}

	client := llm.Chain(base,
		llm.WithTimeout(settings.Generation.Timeout),
		llm.WithValidation(),
		llm.WithLogging(logx.NewLogger("gen")),
		llm.WithMetrics(recorder),
	)

	tokens, err := utils.NewTokenCounter()
	if err != nil {
		// The counter is nil-safe; prompts fall back to length estimation.
		logx.Warnf("tokenizer unavailable, using length estimation: %v", err)
		tokens = nil
	}

	return gen.NewGenerator(client, tokens, settings.Generation.PromptTokenLimit, utils.NewRand()), nil
}

func printSessionReport(ctx context.Context, store *persistence.Store, recorder *metrics.Recorder, activity *eventlog.Writer, logger *logx.Logger) {
	summary, err := store.Summary(ctx)
	if err != nil {
		logger.Warn("session summary unavailable: %v", err)
		return
	}

	fmt.Printf("\nSession %s\n", summary.SessionID)
	fmt.Printf("  items seen: %d\n", summary.ItemsSeen)
	for kind, count := range summary.Interactions {
		fmt.Printf("  %s: %d\n", kind, count)
	}

	fields := map[string]any{"items_seen": summary.ItemsSeen}
	for kind, count := range summary.Interactions {
		fields[string(kind)] = count
	}
	if err := activity.Append("session_summary", fields); err != nil {
		logger.Debug("activity append: %v", err)
	}

	if snapshot, err := recorder.Snapshot(); err == nil {
		logger.Debug("metrics snapshot:\n%s", snapshot)
	}
}
