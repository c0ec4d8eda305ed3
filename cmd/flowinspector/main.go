// Command flowinspector is the CLI front end for the FlowInspector
// signature-based intrusion detection engine.  Flag parsing and signal
// wiring live here; everything else is in internal packages.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iGTsan/flow-inspector/internal/config"
	"github.com/iGTsan/flow-inspector/internal/supervisor"
	"github.com/iGTsan/flow-inspector/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		if cfg == nil {
			fmt.Fprintln(os.Stderr, err)
		}

		return 1
	}

	if cfg.PrintVersion {
		fmt.Println(version.Full())

		return 0
	}

	lvl := slog.LevelInfo
	if cfg.LogLevel == "debug" {
		lvl = slog.LevelDebug
	}

	logger := slogutil.New(&slogutil.Config{
		Format:       slogutil.FormatDefault,
		Level:        lvl,
		AddTimestamp: true,
	})

	sup, err := supervisor.New(cfg, logger, prometheus.NewRegistry())
	if err != nil {
		logger.Error("constructing supervisor", slogutil.KeyError, err)

		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go handleSignals(ctx, logger, sigCh, sup)

	err = sup.Start(ctx)

	// Stop runs at most once; if the signal handler is already stopping the
	// supervisor, this call waits for that shutdown to finish.
	if stopErr := sup.Stop(ctx); stopErr != nil {
		logger.Error("stopping supervisor", slogutil.KeyError, stopErr)
	}

	if err != nil {
		logger.Error("supervisor exited", slogutil.KeyError, err)

		return 1
	}

	return 0
}

// handleSignals processes SIGHUP as a rule-reload request and any other
// signal in sigCh as a shutdown request, exactly like
// internal/home/signal.go's signalHandler.handle.
func handleSignals(
	ctx context.Context,
	logger *slog.Logger,
	sigCh <-chan os.Signal,
	sup *supervisor.Supervisor,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigCh:
			logger.Info("received signal", "signal", sig)

			switch sig {
			case syscall.SIGHUP:
				if err := sup.ReloadRules(); err != nil {
					logger.Info("rule reload failed", slogutil.KeyError, err)
				}
			default:
				if err := sup.Stop(ctx); err != nil {
					logger.Error("stopping supervisor", slogutil.KeyError, err)
				}

				return
			}
		}
	}
}
