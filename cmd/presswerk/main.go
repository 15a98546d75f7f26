// Entry point for the presswerk HTTP service: issue intake, template pack
// management, render job supervision, and artifact serving.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mwinterhoff/presswerk/idgen"
	"github.com/mwinterhoff/presswerk/issue"
	"github.com/mwinterhoff/presswerk/press"
	"github.com/mwinterhoff/presswerk/render"
	"github.com/mwinterhoff/presswerk/store"
)

const maxIntakeBytes = 8 << 20

func main() {
	port := env("PORT", "8090")
	dbPath := env("DB_PATH", "db/presswerk.db")
	artifactsDir := env("ARTIFACTS_DIR", "artifacts")
	chromeURL := env("CHROME_URL", "")
	mcpTransport := env("MCP_TRANSPORT", "")
	logLevel := env("LOG_LEVEL", "info")

	// Logging.
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Repository.
	st, err := store.Open(dbPath)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.SeedBuiltinPacks(ctx); err != nil {
		slog.Error("seed packs", "error", err)
		os.Exit(1)
	}

	// PDF engine. Launch is lazy: a broken Chrome costs nothing until the
	// first render, which then degrades to the HTML fallback.
	chrome := render.NewChrome(render.ChromeConfig{
		RemoteURL: chromeURL,
		Logger:    logger,
	})
	defer chrome.Close()

	sup := press.New(press.Config{
		Store:        st,
		Renderer:     chrome,
		ArtifactsDir: artifactsDir,
		Logger:       logger,
	})

	// Optional MCP over stdio.
	if mcpTransport == "stdio" {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "presswerk",
			Version: "1.0.0",
		}, nil)
		sup.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				slog.Error("mcp stdio", "error", err)
			}
		}()
	}

	// Router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Issues.
	r.Post("/api/issues", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxIntakeBytes))
		if err != nil {
			writeError(w, 400, err)
			return
		}
		in, err := issue.ParseIntake(body)
		if err != nil {
			writeError(w, 422, err)
			return
		}
		iss, err := st.ImportIssue(r.Context(), in)
		if err != nil {
			writeError(w, 500, err)
			return
		}
		slog.Info("issue imported", "issue", iss.ID, "articles", len(in.Articles))
		writeJSON(w, 201, iss)
	})

	r.Get("/api/issues", func(w http.ResponseWriter, r *http.Request) {
		issues, err := st.Issues(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, orEmpty(issues))
	})

	r.Get("/api/issues/{id}", func(w http.ResponseWriter, r *http.Request) {
		iss, err := st.Issue(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 200, iss)
	})

	// Template packs.
	r.Get("/api/packs", func(w http.ResponseWriter, r *http.Request) {
		packs, err := st.Packs(r.Context())
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, orEmpty(packs))
	})

	r.Post("/api/packs/{id}/activate", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := st.ActivatePack(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		slog.Info("pack activated", "pack", id)
		writeJSON(w, 200, map[string]string{"status": "active", "id": id})
	})

	// Render jobs.
	r.Post("/api/render-jobs", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			IssueID string `json:"issue_id"`
			PackID  string `json:"pack_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		if req.IssueID == "" {
			writeError(w, 400, errors.New("issue_id is required"))
			return
		}
		job, err := sup.Submit(r.Context(), req.IssueID, req.PackID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 202, job)
	})

	r.Get("/api/render-jobs", func(w http.ResponseWriter, r *http.Request) {
		jobs, err := st.Jobs(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		writeJSON(w, 200, orEmpty(jobs))
	})

	r.Get("/api/render-jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		// Job ids are UUIDs; reject malformed ones before the store query.
		id, err := idgen.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, 400, err)
			return
		}
		job, err := st.Job(r.Context(), id)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 200, job)
	})

	r.Post("/api/render-jobs/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		id, err := idgen.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, 400, err)
			return
		}
		if err := sup.Cancel(r.Context(), id); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, 202, map[string]string{"status": "cancelling", "id": id})
	})

	// Artifacts.
	r.Get("/artifacts/*", func(w http.ResponseWriter, r *http.Request) {
		http.StripPrefix("/artifacts/", http.FileServer(http.Dir(artifactsDir))).ServeHTTP(w, r)
	})

	// HTTP server.
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

// --- Helpers ---

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return 404
	case errors.Is(err, store.ErrTerminal):
		return 409
	default:
		return 500
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
