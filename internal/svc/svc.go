// Package svc optionally wraps the supervisor as an OS service using
// kardianos/service, for platforms where FlowInspector is installed as a
// long-running daemon rather than invoked from a terminal.
package svc

import (
	"context"
	"log/slog"

	"github.com/kardianos/service"

	"github.com/iGTsan/flow-inspector/internal/supervisor"
)

const (
	serviceName        = "FlowInspector"
	serviceDisplayName = "FlowInspector intrusion detection engine"
	serviceDescription = "Signature-based network intrusion detection engine"
)

// program adapts a *supervisor.Supervisor to service.Interface.
type program struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	sup    *supervisor.Supervisor
	done   chan struct{}
}

var _ service.Interface = (*program)(nil)

// Start implements service.Interface. It must not block; the supervisor's
// read loop runs on its own goroutine.
func (p *program) Start(_ service.Service) error {
	go func() {
		defer close(p.done)

		if err := p.sup.Start(p.ctx); err != nil {
			p.logger.Error("supervisor exited", "error", err)
		}
	}()

	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	p.logger.Info("stopping: waiting for cleanup")

	p.cancel()
	if err := p.sup.Stop(context.Background()); err != nil {
		return err
	}

	<-p.done

	return nil
}

// New returns a service.Service running sup under the given logger.
// ctx governs the supervisor's read loop; canceling it or calling the
// returned service's Stop both trigger shutdown.
func New(ctx context.Context, logger *slog.Logger, sup *supervisor.Supervisor) (service.Service, error) {
	ctx, cancel := context.WithCancel(ctx)

	prg := &program{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		sup:    sup,
		done:   make(chan struct{}),
	}

	cfg := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
	}

	return service.New(prg, cfg)
}
