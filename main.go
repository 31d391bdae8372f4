// Lunef voice payment agent.
// Turns transcribed voice utterances into payments on Neo X: fiat amounts are
// converted to GAS, recipients are resolved from @tags, and every payment is
// previewed and voice-confirmed before execution.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dgraph-io/ristretto"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/lunef/agent-go/agent"
	"github.com/lunef/agent-go/backend"
	"github.com/lunef/agent-go/config"
	"github.com/lunef/agent-go/engine"
	"github.com/lunef/agent-go/gateway"
	"github.com/lunef/agent-go/logger"
	"github.com/lunef/agent-go/metrics"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl := logger.NewZapLogger(cfg.LogLevel)
	recorder := metrics.NewPrometheusRecorder()

	client := backend.NewClient(cfg.BackendURL,
		backend.WithLogger(zl),
		backend.WithMetrics(recorder),
	)

	tagCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		log.Fatalf("tag cache: %v", err)
	}
	defer tagCache.Close()

	deps := &agent.ToolDeps{
		Client:                 client,
		TagCache:               tagCache,
		Validate:               validator.New(),
		Log:                    zl,
		VideoCostPerSecondUSDC: cfg.VideoCostPerSecondUSDC,
	}
	registry := engine.NewRegistry(agent.CreateTools(deps)...)

	anthropicClient := anthropic.NewClient(option.WithAPIKey(cfg.AnthropicAPIKey))

	eng := engine.NewEngine(&anthropicClient, registry,
		engine.WithLogger(zl),
		engine.WithSystemPrompt(agent.SystemPrompt),
		engine.WithModel(cfg.Model),
		engine.WithMaxTokens(cfg.MaxTokens),
	)

	sessions := agent.NewManager(eng, client, zl)

	srv := gateway.NewServer(cfg.ServerAddr, sessions, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zl.Info("lunef agent starting", map[string]any{
		"addr":    cfg.ServerAddr,
		"backend": cfg.BackendURL,
		"model":   cfg.Model,
		"tools":   registry.Names(),
	})

	if err := srv.Run(ctx); err != nil {
		zl.Error("gateway stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}
