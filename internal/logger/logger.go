// Package logger implements the asynchronous, level-filtered,
// batch-rotated event log.  It is distinct from the operational
// *slog.Logger threaded through every component's Config: this logger
// records what the rules found (alerts, saved frames), not what the
// program is doing.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/c2h5oh/datasize"
	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/iGTsan/flow-inspector/internal/frame"
)

// DefaultMaxEntries is the default in-memory batch size before a rotation.
const DefaultMaxEntries = 2000

// rotateInterval is the rotator's timeout-driven wakeup period.
const rotateInterval = 10 * time.Second

// Config configures a [Logger].
type Config struct {
	// Logger is the operational logger, used to report rotation failures.
	// It must not be nil.
	Logger *slog.Logger

	// OutputPath is the on-disk file the rotator appends formatted entries
	// to.
	OutputPath string

	// Level is the minimum severity an entry must have to be recorded.
	Level Level

	// MaxEntries is the in-memory batch size that triggers a rotation. 0
	// means [DefaultMaxEntries].
	MaxEntries int

	// MaxBatchBytes, if non-zero, triggers a rotation once the estimated
	// in-memory batch size crosses it, in addition to MaxEntries. This
	// supplements the count-based guard with a size-based one.
	MaxBatchBytes datasize.ByteSize

	// Compress, MaxBackups, and MaxAge configure the on-disk rotation
	// performed once a batch is flushed to OutputPath.
	Compress   bool
	MaxBackups int
	MaxAge     int // days
}

// Logger is the asynchronous event log.
type Logger struct {
	opLogger *slog.Logger
	level    Level
	path     string

	maxEntries int
	maxBytes   datasize.ByteSize

	mu           sync.Mutex
	entries      []*Entry
	batchBytes   int
	shouldRotate bool

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	openOnce sync.Once
	out      io.Writer
}

// New returns a Logger. It does not open OutputPath until the first
// rotation; call [Logger.Start] to begin the rotator goroutine.
func New(cfg Config) *Logger {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Logger{
		opLogger:   cfg.Logger,
		level:      cfg.Level,
		path:       cfg.OutputPath,
		maxEntries: maxEntries,
		maxBytes:   cfg.MaxBatchBytes,
		notify:     make(chan struct{}, 1),
		done:       make(chan struct{}),
		out:        &lumberjack.Logger{
			Filename:   cfg.OutputPath,
			Compress:   cfg.Compress,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		},
	}
}

// Start implements the service.Interface lifecycle used throughout this
// module: it launches the rotator goroutine.
func (l *Logger) Start(_ context.Context) error {
	l.wg.Add(1)
	go l.run()

	return nil
}

// Shutdown implements the service.Interface lifecycle: it stops the rotator
// and flushes any remaining entries, so no entry is lost across a
// successful shutdown.
func (l *Logger) Shutdown(_ context.Context) error {
	close(l.done)
	l.wg.Wait()

	return l.rotateOnce()
}

// LogPacket appends an Info-level entry carrying frame f with no text.
func (l *Logger) LogPacket(f *frame.Frame) {
	l.append(Info, f, "", "")
}

// LogAlert appends an Info-level entry recording that ruleName fired against
// f.
func (l *Logger) LogAlert(f *frame.Frame, ruleName string) {
	l.append(Info, f, ruleName, "")
}

// LogDebug appends a Debug-level free-form message.
func (l *Logger) LogDebug(msg string) {
	l.append(Debug, nil, "", msg)
}

// LogMessage appends an Info-level free-form message.
func (l *Logger) LogMessage(msg string) {
	l.append(Info, nil, "", msg)
}

// LogEvent appends e directly, admitting it only if e.Level is at or above
// the configured threshold. It is the primitive the other Log* helpers and
// the dispatcher's default handlers build on.
func (l *Logger) LogEvent(e *Entry) {
	if e.Level < l.level {
		return
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.batchBytes += e.approxSize()

	crossed := len(l.entries) >= l.maxEntries ||
		(l.maxBytes > 0 && datasize.ByteSize(l.batchBytes) >= l.maxBytes)
	if crossed {
		l.shouldRotate = true
	}
	l.mu.Unlock()

	if crossed {
		select {
		case l.notify <- struct{}{}:
		default:
		}
	}
}

func (l *Logger) append(lvl Level, f *frame.Frame, alertText, msg string) {
	if lvl < l.level {
		return
	}

	var fc *frame.Frame
	if f != nil {
		fc = f.Clone()
	}

	l.LogEvent(&Entry{
		Timestamp: time.Now(),
		Level:     lvl,
		Frame:     fc,
		AlertText: alertText,
		Message:   msg,
	})
}

func (l *Logger) run() {
	defer l.wg.Done()

	ticker := time.NewTicker(rotateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-l.notify:
		case <-ticker.C:
		}

		if err := l.rotateOnce(); err != nil {
			l.opLogger.Error("rotating log", "error", err)
		}
	}
}

// rotateOnce drains the in-memory batch, if it should be rotated, and
// appends the formatted entries to the output file.
func (l *Logger) rotateOnce() error {
	l.mu.Lock()
	if !l.shouldRotate && len(l.entries) == 0 {
		l.mu.Unlock()

		return nil
	}

	batch := l.entries
	l.entries = nil
	l.batchBytes = 0
	l.shouldRotate = false
	l.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	var openErr error
	l.openOnce.Do(func() {
		openErr = l.truncateExisting()
	})
	if openErr != nil {
		return errors.Annotate(openErr, "opening log output: %w")
	}

	for _, e := range batch {
		if _, err := io.WriteString(l.out, e.serialize()); err != nil {
			return errors.Annotate(err, "writing log entry: %w")
		}
	}

	return nil
}

// truncateExisting opens the file in truncate mode on its first write and
// in append mode thereafter: the file is truncated once, up front, and
// every subsequent write (via the lumberjack writer in l.out, which appends
// to an existing file) only appends.
func (l *Logger) truncateExisting() error {
	if l.path == "" {
		return nil
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	return f.Close()
}
