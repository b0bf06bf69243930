package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"planforge/internal/agent"
	"planforge/internal/catalog"
	"planforge/internal/config"
	"planforge/internal/facts"
	"planforge/internal/messaging/inproc"
	"planforge/internal/orchestrator"
	"planforge/internal/planning"
	sqlitestore "planforge/internal/store/sqlite"
)

type app struct {
	cfg     config.Config
	planner *orchestrator.Service
}

func main() {
	configPath := flag.String("config", "", "path to config.toml (default: ~/.planforge/config.toml)")
	addrFlag := flag.String("addr", "", "http listen address override")
	dbPathFlag := flag.String("db", "", "sqlite database path override")
	demo := flag.Bool("demo", false, "bootstrap a demo agent and scenario on startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if *configPath != "" {
			log.Fatalf("load config: %v", err)
		}
		log.Printf("no config file loaded, using defaults: %v", err)
	}

	addr := firstNonEmpty(*addrFlag, cfg.Planner.Addr, ":8091")
	dbPath := firstNonEmpty(*dbPathFlag, cfg.Planner.DBPath, "data/planforge.db")
	dbPath = filepath.Clean(dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		log.Fatalf("create db directory: %v", err)
	}

	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		log.Fatalf("open sqlite store: %v", err)
	}
	defer func() {
		_ = store.Close()
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migrate sqlite: %v", err)
	}

	bus := inproc.New(intOrDefault(cfg.Planner.BusBuffer, 256))
	svcCfg := orchestrator.Config{
		TickInterval:        durationMS(cfg.Planner.TickIntervalMS, 250*time.Millisecond),
		FrameBudget:         durationMS(cfg.Planner.FrameProcessingLimitMS, 30*time.Millisecond),
		DepthLimit:          intOrDefault(cfg.Planner.NodeDepthLimit, 16),
		DisablePrioritySort: cfg.Planner.DisablePrioritySort,
		AutoExecute:         *demo,
	}
	svc := orchestrator.New(store, bus, catalog.NewRegistry(), facts.NewWorld(), svcCfg, log.Default())

	if *demo {
		bootstrapDemo(svc)
	}
	svc.Start(ctx)

	a := &app{
		cfg:     cfg,
		planner: svc,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/config", a.handleConfig)
	mux.HandleFunc("/world", a.handleWorld)
	mux.HandleFunc("/agents", a.handleAgents)
	mux.HandleFunc("/agents/", a.handleAgentByID)

	server := &http.Server{
		Addr:              addr,
		Handler:           loggingMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("planforge started addr=%s db=%s tick=%s", addr, dbPath, svcCfg.TickInterval)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *app) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path": a.cfg.Path,
		"raw":  a.cfg.Raw,
	})
}

func (a *app) handleWorld(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"facts": a.planner.WorldDescription(),
	})
}

func (a *app) handleAgents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, a.planner.Agents())
}

func (a *app) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/agents/")
	parts := strings.Split(trimmed, "/")
	agentID := parts[0]
	if agentID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("agent id is required"))
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		for _, snap := range a.planner.Agents() {
			if snap.ID == agentID {
				writeJSON(w, http.StatusOK, snap)
				return
			}
		}
		writeError(w, http.StatusNotFound, fmt.Errorf("agent %s not found", agentID))
		return
	}

	action := parts[1]
	switch action {
	case "plans":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		items, err := a.planner.ListPlans(r.Context(), agentID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case "events":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		limit := queryInt(r, "limit", 200)
		items, err := a.planner.ListEvents(r.Context(), agentID, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case "invalidate":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			GoalName string `json:"goal_name"`
			Reason   string `json:"reason"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json body: %w", err))
			return
		}
		if strings.TrimSpace(req.GoalName) == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("goal_name is required"))
			return
		}
		if err := a.planner.InvalidatePlan(r.Context(), agentID, req.GoalName, req.Reason); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "invalidation queued", "agent_id": agentID})
	case "complete":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := a.planner.CompleteTask(r.Context(), agentID); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "task completed", "agent_id": agentID})
	case "fail":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := a.planner.FailTask(r.Context(), agentID); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "task failed", "agent_id": agentID})
	default:
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown action: %s", action))
	}
}

// bootstrapDemo loads a small two-room scenario: the agent must reach room B
// through a closed door and pick up an item. Two inverse tasks are included
// so the search has dead ends to prune.
func bootstrapDemo(svc *orchestrator.Service) {
	reg := svc.Registry()
	reg.Register("goto_door",
		facts.NewRequirements().
			RequireEqual("room", facts.Str("A")).
			RequireEqual("near_door", facts.Bool(false)),
		facts.NewWorld().Set("near_door", facts.Bool(true)),
		1,
	)
	reg.Register("open_door",
		facts.NewRequirements().
			RequireEqual("near_door", facts.Bool(true)).
			RequireEqual("door_open", facts.Bool(false)),
		facts.NewWorld().Set("door_open", facts.Bool(true)),
		1,
	)
	reg.Register("goto_b",
		facts.NewRequirements().
			RequireEqual("room", facts.Str("A")).
			RequireEqual("near_door", facts.Bool(true)).
			RequireEqual("door_open", facts.Bool(true)),
		facts.NewWorld().Set("room", facts.Str("B")),
		1,
	)
	reg.Register("pickup_item",
		facts.NewRequirements().
			RequireEqual("room", facts.Str("B")).
			RequireEqual("item_picked_up", facts.Bool(false)),
		facts.NewWorld().Set("item_picked_up", facts.Bool(true)),
		1,
	)
	reg.Register("close_door",
		facts.NewRequirements().RequireEqual("door_open", facts.Bool(true)),
		facts.NewWorld().Set("door_open", facts.Bool(false)),
		1,
	)
	reg.Register("goto_a",
		facts.NewRequirements().RequireEqual("room", facts.Str("B")),
		facts.NewWorld().Set("room", facts.Str("A")),
		1,
	)

	svc.SetFact("room", facts.Str("A"))
	svc.SetFact("near_door", facts.Bool(false))
	svc.SetFact("door_open", facts.Bool(false))
	svc.SetFact("item_picked_up", facts.Bool(false))

	collector := agent.New("collector", 1, log.Default())
	for _, name := range []string{"goto_door", "open_door", "goto_b", "pickup_item", "close_door", "goto_a"} {
		collector.AddTask(catalog.Primitive(name))
	}
	collector.AddGoal(planning.NewGoal("Pick up item",
		facts.NewRequirements().RequireEqual("item_picked_up", facts.Bool(true)), 1))
	svc.AddAgent(collector)

	log.Printf("demo scenario loaded agent=%s", collector.ID())
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]any{
		"error": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func durationMS(v int, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return time.Duration(v) * time.Millisecond
}

func intOrDefault(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func queryInt(r *http.Request, key string, def int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
