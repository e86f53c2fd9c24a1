// Command arbiterd runs the O3-mini arbiter HTTP service: the one
// in-scope network collaborator named by spec.md §4.9/§6, receiving
// divergent specialist report pairs and returning a verdict.
//
// Configuration is environment-driven, matching the original services'
// env-var conventions (ARBITER_LLM_PREF, plus ARBITER_LISTEN_ADDR for the
// listen address and OPENAI_API_KEY/GEMINI_API_KEY for the adapters) and
// the teacher's LOG_LEVEL logger wiring (cmd/hector/logger.go).
// ARBITER_O3_URL is read by arbiter.NewClient on the caller side, not here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"

	"github.com/medflowai/engine/arbiter"
	"github.com/medflowai/engine/llms"
)

const (
	listenAddrEnvVar = "ARBITER_LISTEN_ADDR"
	defaultAddr      = ":8089"
	logLevelEnvVar   = "LOG_LEVEL"
	openAIKeyEnvVar  = "OPENAI_API_KEY"
	geminiKeyEnvVar  = "GEMINI_API_KEY"
	openAIModelVar   = "OPENAI_MODEL"
	geminiModelVar   = "GEMINI_MODEL"
)

func main() {
	_ = godotenv.Load(".env.local", ".env")

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "arbiterd",
		Level: hclog.LevelFromString(envOr(logLevelEnvVar, "info")),
	})

	var openaiAdapter, geminiAdapter llms.Adapter
	if key := os.Getenv(openAIKeyEnvVar); key != "" {
		cfg := llms.Config{Type: "openai", APIKey: key, Model: envOr(openAIModelVar, "gpt-4o-mini")}
		openaiAdapter = llms.NewOpenAIAdapter(cfg, nil)
	}
	if key := os.Getenv(geminiKeyEnvVar); key != "" {
		cfg := llms.Config{Type: "gemini", APIKey: key, Model: envOr(geminiModelVar, "gemini-1.5-pro-latest")}
		geminiAdapter = llms.NewGeminiAdapter(cfg, nil)
	}

	primary, fallback := arbiter.ResolveModelPref(openaiAdapter, geminiAdapter)
	if primary == nil && fallback == nil {
		logger.Warn("no LLM adapter configured (set OPENAI_API_KEY or GEMINI_API_KEY); all reviews will return cannot_decide")
	}

	svc := arbiter.NewService(primary, fallback, "", logger)

	addr := envOr(listenAddrEnvVar, defaultAddr)
	server := &http.Server{
		Addr:              addr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("arbiter service listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server exited", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
