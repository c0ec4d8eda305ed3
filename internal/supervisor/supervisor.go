// Package supervisor wires the logger, dispatcher, analyzer, worker pool,
// frame origin, and pcap writer into a single running engine, and exposes
// the start/stop/reload operations a CLI front end or OS service wrapper
// drives.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iGTsan/flow-inspector/internal/analyzer"
	"github.com/iGTsan/flow-inspector/internal/config"
	"github.com/iGTsan/flow-inspector/internal/dispatcher"
	"github.com/iGTsan/flow-inspector/internal/event"
	"github.com/iGTsan/flow-inspector/internal/frame"
	"github.com/iGTsan/flow-inspector/internal/logger"
	"github.com/iGTsan/flow-inspector/internal/metrics"
	"github.com/iGTsan/flow-inspector/internal/origin"
	"github.com/iGTsan/flow-inspector/internal/pcapwriter"
	"github.com/iGTsan/flow-inspector/internal/pool"
	"github.com/iGTsan/flow-inspector/internal/rule"
	"github.com/iGTsan/flow-inspector/internal/ruleparser"
	"github.com/iGTsan/flow-inspector/internal/rulestore"
)

// Supervisor owns every long-running component and drives their lifecycle.
type Supervisor struct {
	opLogger *slog.Logger

	store      *rulestore.Store
	dispatcher *dispatcher.Dispatcher
	metrics    *metrics.Metrics
	eventLog   *logger.Logger
	analyzer   *analyzer.Analyzer
	pool       *pool.Pool
	pcapOut    *pcapwriter.Writer
	frameOrig  origin.Origin

	rulesPath   string
	watchCancel context.CancelFunc

	stopOnce sync.Once
	stopped  chan struct{}
}

// New constructs every component described by cfg and wires the default
// event handlers, but does not start anything; call [Supervisor.Start].
func New(cfg *config.Config, opLogger *slog.Logger, promReg prometheus.Registerer) (*Supervisor, error) {
	m := metrics.New(promReg)

	reg := ruleparser.NewRegistry()
	store := rulestore.New(opLogger, reg)

	disp := dispatcher.New()

	evLog := logger.New(logger.Config{
		Logger:     opLogger,
		OutputPath: cfg.LogOutput,
		Level:      cfg.Level(),
	})

	var frameOrig origin.Origin
	switch cfg.Mode {
	case config.ModePcap:
		frameOrig = origin.NewFileReader(opLogger, cfg.File)
	case config.ModeLive:
		frameOrig = origin.NewLiveCapture(opLogger, cfg.Interface)
	default:
		return nil, errors.Error("unsupported mode " + string(cfg.Mode))
	}

	pcapOut := pcapwriter.New(opLogger, frameOrig.LinkType)
	pcapOut.SetOutputFilename(cfg.Write)

	a := analyzer.New(analyzer.Config{
		Logger:        opLogger,
		Store:         store,
		Dispatcher:    disp,
		Metrics:       m,
		StatsInterval: time.Duration(cfg.StatSpeed) * time.Second,
	})

	p := pool.New(pool.Config{
		Logger:   opLogger,
		Workers:  cfg.Cores,
		LinkType: frameOrig.LinkType,
		Metrics:  m,
	})
	p.AddCallback(a.Detect)

	disp.AddHandler(rule.EventAlert, func(e *event.Event) {
		evLog.LogAlert(e.Frame, e.Rule.Name)
	})
	disp.AddHandler(rule.EventSaveToPcap, func(e *event.Event) {
		pcapOut.SavePacket(e.Frame)
	})

	s := &Supervisor{
		opLogger:   opLogger,
		store:      store,
		dispatcher: disp,
		metrics:    m,
		eventLog:   evLog,
		analyzer:   a,
		pool:       p,
		pcapOut:    pcapOut,
		frameOrig:  frameOrig,
		rulesPath:  cfg.Rules,
		stopped:    make(chan struct{}),
	}

	if cfg.Rules != "" {
		if err := s.LoadRules(cfg.Rules); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// LoadRules replaces the active ruleset from path and remembers path for a
// future [Supervisor.ReloadRules].
func (s *Supervisor) LoadRules(path string) error {
	if err := s.store.ReplaceFromFile(path); err != nil {
		return err
	}

	s.rulesPath = path

	return nil
}

// ErrNoRulesConfigured is returned by ReloadRules when no rules file was
// ever loaded, so there is nothing for a SIGHUP to re-parse.
const ErrNoRulesConfigured errors.Error = "no rules file configured"

// ReloadRules re-parses the rules file previously loaded. It is the
// SIGHUP-equivalent operation; a malformed file leaves the active ruleset
// untouched (see [rulestore.Store.ReplaceFromFile]).
func (s *Supervisor) ReloadRules() error {
	if s.rulesPath == "" {
		return ErrNoRulesConfigured
	}

	return s.store.ReplaceFromFile(s.rulesPath)
}

// Start launches the logger rotator and worker pool, then runs the frame
// origin's read loop on the calling goroutine until ctx is canceled or
// [Supervisor.Stop] is called. It returns when the origin's read loop
// returns.
func (s *Supervisor) Start(ctx context.Context) error {
	if err := s.eventLog.Start(ctx); err != nil {
		return errors.Annotate(err, "starting logger: %w")
	}

	if err := s.pool.Start(ctx); err != nil {
		return errors.Annotate(err, "starting worker pool: %w")
	}

	s.frameOrig.SetProcessor(func(f *frame.Frame) {
		if !s.pool.TryEnqueue(f) {
			s.opLogger.Warn("dropping frame, queue full")
		}
	})

	if s.rulesPath != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		s.watchCancel = cancel

		go func() {
			if err := s.store.WatchReload(watchCtx, s.rulesPath); err != nil {
				s.opLogger.Warn("rule file watcher stopped", "error", err)
			}
		}()
	}

	err := s.frameOrig.StartReading(ctx)

	s.opLogger.Info("stopped")

	return err
}

// Stop requests the origin's read loop return, drains the worker pool, and
// flushes the logger and pcap writer. Safe to call multiple times and
// concurrently with Start.
func (s *Supervisor) Stop(ctx context.Context) error {
	var err error

	s.stopOnce.Do(func() {
		if s.watchCancel != nil {
			s.watchCancel()
		}

		s.frameOrig.StopReading()
		s.pool.Shutdown(ctx)
		err = s.analyzer.Shutdown(ctx)
		if logErr := s.eventLog.Shutdown(ctx); logErr != nil && err == nil {
			err = logErr
		}
		if closeErr := s.pcapOut.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		close(s.stopped)
	})

	return err
}
