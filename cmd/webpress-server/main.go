package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vrsandeep/webpress/internal/api"
	"github.com/vrsandeep/webpress/internal/core"
	"github.com/vrsandeep/webpress/internal/jobs"
	"github.com/vrsandeep/webpress/internal/watcher"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	app.Version = version
	app.Start()
	defer app.Close()

	// --- Watch folder ---
	if watchPath := app.Config.Watch.Path; watchPath != "" {
		opts := app.Config.DefaultOptions()
		opts.OutputDir = app.Config.Watch.OutputDir
		debounce := time.Duration(app.Config.Watch.DebounceMs) * time.Millisecond

		watch := watcher.NewService(app.Manager, watchPath, opts, debounce)
		if err := watch.Start(); err != nil {
			log.Fatalf("Could not watch %s: %v", watchPath, err)
		}
		defer watch.Stop()

		// Convert whatever arrived while the server was down.
		watch.Sweep()

		sweepEvery := time.Duration(app.Config.Watch.SweepInterval) * time.Minute
		sched, err := jobs.StartSchedule("watch-folder-sweep", sweepEvery, func() { watch.Sweep() })
		if err != nil {
			log.Fatalf("Could not schedule watch folder sweep: %v", err)
		}
		if sched != nil {
			defer sched.Stop()
		}
	}

	// Setup the API server
	server := api.NewServer(app)
	addr := fmt.Sprintf(":%d", app.Config.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}
	// --- Graceful Shutdown ---
	go func() {
		log.Printf("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
