package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"TickFeed/internal/domain/repository"
	"TickFeed/internal/port"
	"TickFeed/internal/usecase"
	"TickFeed/pkg/cache"
	pkgch "TickFeed/pkg/clickhouse"
	"TickFeed/pkg/config"
	xhttp "TickFeed/pkg/http"
	applogger "TickFeed/pkg/logger"
)

// App encapsulates the worker lifecycle: the command loop on the message
// port, the ops HTTP listener, and teardown of every infrastructure
// client.
type App struct {
	cfg      *config.Config
	log      *applogger.Logger
	port     *port.Port
	ctrl     *usecase.Controller
	sink     repository.AggregateSink
	chClient *pkgch.Client
	cacheSvc cache.Service
	ops      *xhttp.Server
}

// New creates the App. sink, chClient and cacheSvc may be nil when not
// configured.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	p *port.Port,
	ctrl *usecase.Controller,
	sink repository.AggregateSink,
	chClient *pkgch.Client,
	cacheSvc cache.Service,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		port:     p,
		ctrl:     ctrl,
		sink:     sink,
		chClient: chClient,
		cacheSvc: cacheSvc,
	}
}

// Run blocks, serving commands until shutdown is requested, the port
// closes, or a termination signal arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.cfg.Ops.Enabled {
		a.ops = xhttp.NewServer(nil,
			xhttp.WithPort(a.cfg.Ops.Port),
			xhttp.WithTimeouts(a.cfg.Ops.ReadTimeout, a.cfg.Ops.WriteTimeout, a.cfg.Ops.ShutdownTimeout),
		)
		if err := a.ops.Start(); err != nil {
			a.log.Error("ops server start", applogger.Error(err))
		} else {
			a.log.Info("ops server listening", applogger.Int("port", a.cfg.Ops.Port))
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	type inbound struct {
		cmd port.Command
		err error
	}
	cmdCh := make(chan inbound)
	go func() {
		for {
			cmd, err := a.port.ReadCommand()
			cmdCh <- inbound{cmd: cmd, err: err}
			if err != nil && !isBadPayload(err) {
				return
			}
		}
	}()

	a.log.Info("worker ready")

loop:
	for {
		select {
		case sig := <-sigCh:
			a.log.Info("signal received", applogger.String("signal", sig.String()))
			a.ctrl.Shutdown()
			break loop

		case in := <-cmdCh:
			if in.err != nil {
				if errors.Is(in.err, port.ErrClosed) {
					a.log.Info("port closed")
					a.ctrl.Shutdown()
					break loop
				}
				if isBadPayload(in.err) {
					_ = a.port.WriteEvent(port.Event{
						Type: port.EvtError,
						Data: port.ErrorData{Code: port.CodeBadPayload, Message: in.err.Error()},
					})
					continue
				}
				a.log.Error("port read", applogger.Error(in.err))
				a.ctrl.Shutdown()
				break loop
			}
			if exit := a.ctrl.Handle(ctx, in.cmd); exit {
				break loop
			}
		}
	}

	a.teardown(ctx)
	return nil
}

func (a *App) teardown(ctx context.Context) {
	if a.ops != nil {
		if err := a.ops.Stop(ctx); err != nil {
			a.log.Warn("ops shutdown", applogger.Error(err))
		}
	}
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			a.log.Warn("sink close", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close", applogger.Error(err))
		}
	}
	if a.cacheSvc != nil {
		if err := a.cacheSvc.Close(); err != nil {
			a.log.Warn("cache close", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}

func isBadPayload(err error) bool {
	var bad *port.BadPayloadError
	return errors.As(err, &bad)
}
