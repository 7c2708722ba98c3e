package core

import (
	"context"
	"fmt"
	"log"

	"github.com/vrsandeep/webpress/internal/config"
	"github.com/vrsandeep/webpress/internal/events"
	"github.com/vrsandeep/webpress/internal/jobs"
	"github.com/vrsandeep/webpress/internal/logging"
	"github.com/vrsandeep/webpress/internal/progress"
	"github.com/vrsandeep/webpress/internal/websocket"
)

// App holds the core components of the application that are shared
// between the server and the CLI.
type App struct {
	Config   *config.Config
	Logs     *logging.Buffer
	Progress *progress.State
	Events   *events.Queue
	Pump     *Pump
	WsHub    *websocket.Hub
	Manager  *jobs.Manager
	Version  string

	ctx      context.Context
	cancel   context.CancelFunc
	stopPump context.CancelFunc
	pumpDone chan struct{}
}

// New loads config.yml and sets up a new App instance.
func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewWithConfig(cfg), nil
}

// NewWithConfig wires every component around cfg. Nothing runs until Start.
func NewWithConfig(cfg *config.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())

	logs := logging.NewBuffer(cfg.Log.MaxLines, cfg.Log.Echo)
	state := progress.NewState()
	queue := events.NewQueue()
	hub := websocket.NewHub()
	scheduler := jobs.NewScheduler(state, queue, logs, cfg.Workers)

	return &App{
		Config:   cfg,
		Logs:     logs,
		Progress: state,
		Events:   queue,
		Pump:     NewPump(queue, hub, cfg.PollInterval(), 0),
		WsHub:    hub,
		Manager:  jobs.NewManager(ctx, scheduler, logs),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the websocket hub and the event pump in the background. Hosts
// that consume the event queue themselves, like the CLI, do not call it.
func (a *App) Start() {
	pumpCtx, stop := context.WithCancel(context.Background())
	a.stopPump = stop
	a.pumpDone = make(chan struct{})

	go a.WsHub.Run()
	go func() {
		defer close(a.pumpDone)
		a.Pump.Run(pumpCtx)
	}()
	log.Println("Core application setup complete.")
}

// Context is cancelled by Close.
func (a *App) Context() context.Context { return a.ctx }

// Close cancels the running batch, waits for it to report BatchCompleted
// and stops the background goroutines. The pump stops last so the final
// events still reach the hub.
func (a *App) Close() {
	a.cancel()
	if b := a.Manager.Current(); b != nil {
		b.Wait()
	}
	if a.stopPump != nil {
		a.stopPump()
		<-a.pumpDone
	}
	a.WsHub.Stop()
}
