// Package pcapwriter implements the single-writer archival sink that the
// dispatcher's SaveToPcap handler hands matched frames to.
package pcapwriter

import (
	"log/slog"
	"os"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/iGTsan/flow-inspector/internal/frame"
)

// Writer appends frames to a pcap file. It is lazily opened on the first
// SavePacket call and safe for concurrent use; failures are reported to the
// operational logger and never panic.
type Writer struct {
	logger *slog.Logger

	// linkType is queried lazily, at open time, rather than captured once at
	// construction: an offline file reader's link type is only known after
	// it has read its own file header, which happens after the writer is
	// constructed.
	linkType func() layers.LinkType

	mu       sync.Mutex
	filename string
	f        *os.File
	w        *pcapgo.Writer
}

// New returns a Writer that will encode frames using linkType() once opened.
func New(logger *slog.Logger, linkType func() layers.LinkType) *Writer {
	return &Writer{logger: logger, linkType: linkType}
}

// SetOutputFilename sets the destination file. If a different file is
// already open, it is closed first; the new file is opened lazily on the
// next SavePacket.
func (w *Writer) SetOutputFilename(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if name == w.filename {
		return
	}

	w.closeLocked()
	w.filename = name
}

// SavePacket serializes f to the output file, opening it first if needed.
// Failures are logged and swallowed: archival is best-effort and must never
// take down the worker goroutine that calls it.
func (w *Writer) SavePacket(f *frame.Frame) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.w == nil {
		if err := w.openLocked(); err != nil {
			w.logger.Error("opening pcap output", "error", err)

			return
		}
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     f.Time(),
		CaptureLength: len(f.Bytes),
		Length:        len(f.Bytes),
	}

	if err := w.w.WritePacket(ci, f.Bytes); err != nil {
		w.logger.Error("writing pcap packet", "error", err)
	}
}

// ErrNoOutputFilename is the error SavePacket logs, dropping the frame, when
// no output file has been configured via SetOutputFilename.
const ErrNoOutputFilename errors.Error = "no output filename set"

func (w *Writer) openLocked() (err error) {
	if w.filename == "" {
		return ErrNoOutputFilename
	}

	f, err := os.Create(w.filename)
	if err != nil {
		return errors.Annotate(err, "creating %s: %w", w.filename)
	}

	pw := pcapgo.NewWriter(f)
	if err := pw.WriteFileHeader(65536, w.linkType()); err != nil {
		return errors.WithDeferred(errors.Annotate(err, "writing pcap header: %w"), f.Close())
	}

	w.f = f
	w.w = pw

	return nil
}

func (w *Writer) closeLocked() {
	if w.f != nil {
		w.f.Close()
	}

	w.f = nil
	w.w = nil
}

// Close closes the underlying file, if open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.closeLocked()

	return nil
}
