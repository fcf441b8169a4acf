// main is the entry point of the student-records web application.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Open the SQLite database and wrap it as a reactive store
//  4. Register the HTML form pages and the JSON API
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/student-records --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/student-records
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aanand-mishra/student-records/internal/config"
	"github.com/aanand-mishra/student-records/internal/http/handlers/student"
	"github.com/aanand-mishra/student-records/internal/http/handlers/studentform"
	"github.com/aanand-mishra/student-records/internal/storage"
	"github.com/aanand-mishra/student-records/internal/storage/sqlite"
	"github.com/aanand-mishra/student-records/internal/storage/watch"
	"github.com/aanand-mishra/student-records/internal/validation"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Installed as the default so package-level slog calls in handlers and
	// forms use the same format and level.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting student-records",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	// The SQLite backend owns the records; watch.New adds push-on-change
	// reads for the edit form. Everything below sees only the interfaces.
	db, err := sqlite.New(cfg)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	var store storage.Reactive = watch.New(db)

	log.Info("storage initialised",
		slog.String("path", cfg.StoragePath))

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	router := newRouter(store, validation.New(), cfg)

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	server := newServer(cfg, router)

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe blocks, so it runs on its own goroutine and main
	// stays free to wait for the shutdown signal.
	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// Shutdown cancels the server's base context, which ends open watch
	// streams; everything else gets until the deadline to finish.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// newServer builds the HTTP server. Every request context derives from a
// base context that Shutdown cancels when it starts, so open watch streams
// end instead of holding Shutdown until its deadline.
func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	base, cancel := context.WithCancel(context.Background())

	server := &http.Server{
		Addr:    cfg.HTTPServer.Addr,
		Handler: handler,

		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,

		BaseContext: func(net.Listener) context.Context { return base },
	}
	server.RegisterOnShutdown(cancel)

	return server
}

// newRouter builds the route table.
//
//	GET    /                           → redirect to the list
//	GET    /students                   → list page
//	GET    /students/new               → create form
//	POST   /students/new               → submit or cancel the create form
//	GET    /students/{id}/edit         → edit form (loading / not found)
//	POST   /students/{id}/edit         → submit or cancel the edit form
//	POST   /students/validate          → live field validation (JSON)
//	POST   /api/students               → create (JSON)
//	GET    /api/students               → list (JSON)
//	GET    /api/students/{id}          → fetch one (JSON)
//	PUT    /api/students/{id}          → update (JSON)
//	GET    /api/students/{id}/watch    → reactive read (Server-Sent Events)
func newRouter(store storage.Reactive, v *validation.Validator, cfg *config.Config) *http.ServeMux {
	router := http.NewServeMux()

	router.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, studentform.ListPath, http.StatusSeeOther)
	})
	router.HandleFunc("GET /students", studentform.List(store))
	router.HandleFunc("GET /students/new", studentform.CreatePage())
	router.HandleFunc("POST /students/new", studentform.CreateSubmit(store, v))
	router.HandleFunc("GET /students/{id}/edit", studentform.EditPage(store, v, cfg.Forms.LoadTimeout))
	router.HandleFunc("POST /students/{id}/edit", studentform.EditSubmit(store, v, cfg.Forms.LoadTimeout))
	router.HandleFunc("POST /students/validate", studentform.Validate(v))

	router.HandleFunc("POST /api/students", student.New(store, v))
	router.HandleFunc("GET /api/students", student.GetList(store))
	router.HandleFunc("GET /api/students/{id}", student.GetByID(store))
	router.HandleFunc("PUT /api/students/{id}", student.Update(store, v))
	router.HandleFunc("GET /api/students/{id}/watch", student.Watch(store))

	return router
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
