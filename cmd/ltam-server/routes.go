package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/scrypster/ltam/internal/apperr"
	"github.com/scrypster/ltam/internal/auth"
	"github.com/scrypster/ltam/internal/dream"
	"github.com/scrypster/ltam/internal/packcompiler"
	"github.com/scrypster/ltam/internal/scheduler"
	"github.com/scrypster/ltam/internal/store"
)

// apiServer holds the handful of core collaborators the thin route
// handlers below dispatch to. Deep HTTP routing concerns (path params,
// content negotiation, middleware chains) are explicitly out of scope per
// §1; these handlers exist to prove the wiring, not to be a complete REST
// surface.
type apiServer struct {
	store    store.Store
	compiler *packcompiler.Compiler
	orch     *scheduler.Orchestrator
	auth     *auth.Resolver
	progress *dream.ProgressHub
}

func (s *apiServer) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /packs/compile", s.authenticated(s.handleCompilePack))
	mux.HandleFunc("POST /dreams/trigger", s.authenticated(s.handleTriggerDream))
	mux.HandleFunc("GET /scheduler/status", s.authenticated(s.handleSchedulerStatus))
	mux.HandleFunc("POST /scheduler/workflows/{name}/trigger", s.authenticated(s.handleTriggerWorkflow))
	mux.HandleFunc("/dreams/progress", s.progress.ServeHTTP)
}

type ctxUserKey struct{}

// authenticated wraps h with the bearer-token resolution contract (§6): a
// missing or invalid Authorization header never reaches h.
func (s *apiServer) authenticated(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			writeError(w, apperr.Wrap(apperr.Unauthorized, "missing bearer token"))
			return
		}
		userID, err := s.auth.Resolve(r.Context(), token)
		if err != nil {
			writeError(w, apperr.Wrap(apperr.Unauthorized, "invalid credential"))
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserKey{}, userID)
		h(w, r.WithContext(ctx))
	}
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type compilePackRequest struct {
	AnimaID    string                     `json:"anima_id"`
	Query      string                     `json:"query"`
	Persist    bool                       `json:"persist"`
	PresetName string                     `json:"preset_name"`
	Config     packcompiler.RetrievalConfig `json:"config"`
}

func (s *apiServer) handleCompilePack(w http.ResponseWriter, r *http.Request) {
	var req compilePackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.Validation, "malformed request body"))
		return
	}
	cfg := req.Config
	cfg.AnimaID = req.AnimaID
	cfg.Query = req.Query

	pack, err := s.compiler.Compile(r.Context(), cfg, req.Persist, req.PresetName)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pack)
}

type triggerDreamRequest struct {
	AnimaID string `json:"anima_id"`
}

func (s *apiServer) handleTriggerDream(w http.ResponseWriter, r *http.Request) {
	var req triggerDreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.Validation, "malformed request body"))
		return
	}
	result, err := s.orch.TriggerManual(r.Context(), "dreamer", req.AnimaID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *apiServer) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	names := []string{"memory_synthesis", "dreamer"}
	out := make(map[string]scheduler.Status, len(names))
	for _, n := range names {
		st, err := s.orch.Status(n)
		if err != nil {
			continue
		}
		out[n] = st
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *apiServer) handleTriggerWorkflow(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	animaID := r.URL.Query().Get("anima_id")

	result, err := s.orch.TriggerManual(r.Context(), name, animaID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

