package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"

	"TradePilot/internal/handler/ws"
	"TradePilot/internal/registry"
	"TradePilot/pkg/config"
	xhttp "TradePilot/pkg/http"
	pkgkafka "TradePilot/pkg/kafka"
	applogger "TradePilot/pkg/logger"
)

// Closer is implemented by infrastructure clients the app owns.
type Closer interface {
	Close() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	reg      *registry.Registry
	watcher  *registry.Watcher
	hub      *ws.Hub
	consumer *pkgkafka.Consumer
	producer *pkgkafka.Producer
	closers  []Closer

	httpServer *xhttp.Server
	handlers   []xhttp.Handler
}

// routeSet registers several route groups on one Echo instance.
type routeSet []xhttp.Handler

func (r routeSet) RegisterRoutes(e *echo.Echo) {
	for _, h := range r {
		if h != nil {
			h.RegisterRoutes(e)
		}
	}
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	reg *registry.Registry,
	watcher *registry.Watcher,
	hub *ws.Hub,
	consumer *pkgkafka.Consumer,
	producer *pkgkafka.Producer,
	handlers []xhttp.Handler,
	closers []Closer,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		reg:      reg,
		watcher:  watcher,
		hub:      hub,
		consumer: consumer,
		producer: producer,
		handlers: handlers,
		closers:  closers,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loaded, err := a.reg.LoadAll()
	if err != nil {
		a.l.Warn("initial model scan reported errors", applogger.Error(err))
	}
	a.l.Info("model registry loaded",
		applogger.Int("models", loaded), applogger.String("dir", a.reg.Dir()))

	if a.hub != nil {
		go a.hub.Run(ctx)
	}

	if a.watcher != nil {
		go a.watcher.Run(ctx)
		a.l.Info("model directory watcher started", applogger.String("dir", a.reg.Dir()))
	}

	if a.consumer != nil {
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.l.Info("kafka consumer started",
			applogger.Strings("brokers", a.cfg.Kafka.Brokers),
			applogger.String("group", a.cfg.Kafka.Consumer.GroupID))
	}

	a.httpServer = xhttp.NewServer(routeSet(a.handlers),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		return err
	}
	a.l.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	cancel()
	return a.shutdown()
}

// shutdown gracefully stops all services in reverse start order.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.l.Warn("model watcher close error", applogger.Error(err))
		}
	}
	if a.hub != nil {
		a.hub.Close()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.l.Warn("infrastructure close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
