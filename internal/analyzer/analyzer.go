// Package analyzer implements the per-frame matcher: for each active rule,
// it evaluates the rule's signature conjunction and dispatches an event for
// every match.
package analyzer

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/iGTsan/flow-inspector/internal/decoder"
	"github.com/iGTsan/flow-inspector/internal/dispatcher"
	"github.com/iGTsan/flow-inspector/internal/event"
	"github.com/iGTsan/flow-inspector/internal/frame"
	"github.com/iGTsan/flow-inspector/internal/metrics"
	"github.com/iGTsan/flow-inspector/internal/rulestore"
	"github.com/iGTsan/flow-inspector/internal/signature"
)

// Config configures an [Analyzer].
type Config struct {
	Logger *slog.Logger

	Store      *rulestore.Store
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Metrics

	// StatsInterval, if non-zero, starts a background thread that drains the
	// packets-processed counter every interval and logs the per-interval
	// rate. Zero disables the thread.
	StatsInterval time.Duration
}

// Analyzer matches decoded frames against the active ruleset and dispatches
// an event for every rule that matches.
type Analyzer struct {
	logger     *slog.Logger
	store      *rulestore.Store
	dispatcher *dispatcher.Dispatcher
	metrics    *metrics.Metrics

	processed atomic.Uint64

	reconfigure chan struct{}
	statsDone   chan struct{}
	statsWG     chan struct{}
}

// New returns an Analyzer. It starts the background stats thread if
// cfg.StatsInterval is positive; [Analyzer.SetStatsInterval] starts, replaces,
// or stops it later. A zero-value Config leaves it disabled.
func New(cfg Config) *Analyzer {
	a := &Analyzer{
		logger:      cfg.Logger,
		store:       cfg.Store,
		dispatcher:  cfg.Dispatcher,
		metrics:     cfg.Metrics,
		reconfigure: make(chan struct{}, 1),
	}
	a.reconfigure <- struct{}{}

	if cfg.StatsInterval > 0 {
		a.SetStatsInterval(cfg.StatsInterval)
	}

	return a
}

// Detect evaluates f against the active ruleset and dispatches an event for
// every matched rule. It is the pool's default per-frame callback.
func (a *Analyzer) Detect(f *frame.Frame, parsed decoder.ParsedFrame) {
	a.processed.Add(1)
	if a.metrics != nil {
		a.metrics.PacketsProcessed.Inc()
	}

	in := signature.Input{
		Raw:    f.Bytes,
		Parsed: parsedFrameAdapter{parsed},
	}

	matched := a.store.Evaluate(in)
	for _, r := range matched {
		if a.metrics != nil {
			a.metrics.RuleMatches.WithLabelValues(r.Name, string(r.EventType)).Inc()
		}

		a.dispatcher.Dispatch(&event.Event{
			Type:  r.EventType,
			Rule:  r,
			Frame: f,
		})
	}
}

// SetStatsInterval reconfigures the stats thread: it stops the current one,
// if any, and starts a new one running at ivl. Passing 0 stops the thread
// without starting a replacement.
func (a *Analyzer) SetStatsInterval(ivl time.Duration) {
	<-a.reconfigure
	defer func() { a.reconfigure <- struct{}{} }()

	if a.statsDone != nil {
		close(a.statsDone)
		<-a.statsWG
		a.statsDone = nil
		a.statsWG = nil
	}

	if ivl <= 0 {
		return
	}

	done := make(chan struct{})
	wg := make(chan struct{})
	a.statsDone = done
	a.statsWG = wg

	go a.runStats(ivl, done, wg)
}

func (a *Analyzer) runStats(ivl time.Duration, done, wg chan struct{}) {
	defer close(wg)

	ticker := time.NewTicker(ivl)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			n := a.processed.Swap(0)
			rate := float64(n) / ivl.Seconds()
			a.logger.Info("packet rate", "packets", n, "per_second", rate)
		}
	}
}

// Shutdown stops the stats thread, if running. It does not touch the rule
// store or dispatcher, which the supervisor owns independently.
func (a *Analyzer) Shutdown(_ context.Context) error {
	a.SetStatsInterval(0)

	return nil
}

// parsedFrameAdapter adapts a decoder.ParsedFrame to [signature.ParsedFrame].
// Go requires the adaptation even though decoder.LayerRef and
// signature.LayerRef share an identical method set: interface satisfaction
// is checked against the declared return type of each method, and
// decoder.ParsedFrame's methods are declared to return decoder.LayerRef.
type parsedFrameAdapter struct {
	p decoder.ParsedFrame
}

func (a parsedFrameAdapter) IPv4() (signature.LayerRef, bool) { return a.p.IPv4() }
func (a parsedFrameAdapter) TCP() (signature.LayerRef, bool)  { return a.p.TCP() }
func (a parsedFrameAdapter) UDP() (signature.LayerRef, bool)  { return a.p.UDP() }
