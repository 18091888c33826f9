// Command ltam-server hosts the HTTP surface and scheduler runtime (§0): it
// wires the entity store, LLM/embedding collaborators, and the memory
// synthesis, dream curation, and pack compilation components (C1-C10) into
// one running process. Deep HTTP routing, auth verification internals, and
// LLM/embedding client internals are out of scope per §1; the handlers here
// are thin adapters onto the core packages.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/auth"
	"github.com/scrypster/ltam/internal/config"
	"github.com/scrypster/ltam/internal/dream"
	"github.com/scrypster/ltam/internal/hooks"
	"github.com/scrypster/ltam/internal/llm"
	"github.com/scrypster/ltam/internal/packcompiler"
	"github.com/scrypster/ltam/internal/retention"
	"github.com/scrypster/ltam/internal/scheduler"
	"github.com/scrypster/ltam/internal/store"
	"github.com/scrypster/ltam/internal/store/postgres"
	"github.com/scrypster/ltam/internal/store/sqlite"
	"github.com/scrypster/ltam/internal/synthesis"
	"github.com/scrypster/ltam/pkg/types"
)

func main() {
	cfgPath := os.Getenv("LTAM_CONFIG_FILE")
	watcher, err := config.Watch(cfgPath)
	if err != nil {
		log.Fatalf("ltam-server: load config: %v", err)
	}
	defer func() { _ = watcher.Close() }()
	cfg := watcher.Snapshot()

	entityStore, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("ltam-server: open store: %v", err)
	}
	defer func() { _ = entityStore.Close() }()

	textGen, err := llm.NewTextGenerator(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		log.Fatalf("ltam-server: build llm client: %v", err)
	}
	embedGen, err := llm.NewEmbeddingGenerator(llm.ProviderConfig{
		Provider: cfg.LLM.Provider,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	}, cfg.LLM.EmbeddingModel)
	if err != nil {
		log.Fatalf("ltam-server: build embedding client: %v", err)
	}
	llmClient := llm.NewClient(textGen, embedGen, cfg.LLM.RatePerSecond)

	janitor := retention.NewJanitor(entityStore)
	compiler := packcompiler.NewCompiler(entityStore, llmClient, janitor)

	autoKnowledge := hooks.NewAutoKnowledge(func(ctx context.Context, memoryID string) error {
		ks := synthesis.NewKnowledgeSynthesizer(entityStore, llmClient, synthesis.DedupReplace)
		_, err := ks.Synthesize(ctx, memoryID)
		return err
	}, func() bool { return true })

	memSynth := synthesis.NewMemorySynthesizer(entityStore, llmClient, autoKnowledge)

	progress := dream.NewProgressHub()
	go progress.Run()
	defer progress.Stop()

	dreamEngine := dream.NewEngine(entityStore, llmClient, llmClient, types.DefaultDreamConfig()).WithProgress(progress)

	orch := scheduler.NewOrchestrator(entityStore)
	orch.Register(scheduler.NewMemorySynthesisWorkflow(memSynth, cfg.Scheduler.SynthesisIntervalHours))
	orch.Register(scheduler.NewDreamWorkflow(dreamEngine, cfg.Scheduler.DreamIntervalHours))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	orch.Start(ctx)
	defer orch.Stop()

	resolver := buildResolver(entityStore, cfg.Security)

	mux := http.NewServeMux()
	srv := &apiServer{
		store:    entityStore,
		compiler: compiler,
		orch:     orch,
		auth:     resolver,
		progress: progress,
	}
	srv.registerRoutes(mux)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("ltam-server: listening on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ltam-server: serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Print("ltam-server: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ltam-server: shutdown: %v", err)
	}
}

func openStore(cfg config.StorageConfig) (store.Store, error) {
	switch cfg.Engine {
	case "postgres":
		return postgres.Open(cfg.DSN)
	case "sqlite", "":
		return sqlite.Open(cfg.DSN)
	default:
		return nil, errors.New("ltam-server: unsupported storage engine " + cfg.Engine)
	}
}

func buildResolver(entityStore store.Store, sec config.SecurityConfig) *auth.Resolver {
	if sec.JWKSURL == "" {
		return auth.NewResolver(entityStore, nil)
	}
	jwks := auth.NewJWKSCache(auth.HTTPKeyFetcher(nil, sec.JWKSURL))
	verifier := auth.NewJWTVerifier(jwks, sec.JWTAudience, sec.JWTIssuer)
	return auth.NewResolver(entityStore, verifier)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.NotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.Deleted):
		status = http.StatusGone
	case errors.Is(err, apperr.Duplicate):
		status = http.StatusConflict
	case errors.Is(err, apperr.Validation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.Unauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperr.Transient):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

