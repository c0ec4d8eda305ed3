package origin

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/iGTsan/flow-inspector/internal/frame"
)

// FileReader replays frames from an offline pcap file. It terminates when
// the file is exhausted.
type FileReader struct {
	logger *slog.Logger
	path   string

	proc Processor
	done doneFlag

	mu       sync.RWMutex
	linkType layers.LinkType
}

var _ Origin = (*FileReader)(nil)

// NewFileReader returns a FileReader over path. The file is not opened until
// [FileReader.StartReading].
func NewFileReader(logger *slog.Logger, path string) *FileReader {
	return &FileReader{logger: logger, path: path}
}

// SetProcessor implements [Origin].
func (r *FileReader) SetProcessor(p Processor) { r.proc = p }

// LinkType implements [Origin]. It is only valid after StartReading has
// opened the file and read its header.
func (r *FileReader) LinkType() layers.LinkType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.linkType
}

// StartReading implements [Origin].
func (r *FileReader) StartReading(ctx context.Context) (err error) {
	f, err := os.Open(r.path)
	if err != nil {
		return errors.Annotate(err, "opening capture file: %w")
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	pr, err := pcapgo.NewReader(f)
	if err != nil {
		return errors.Annotate(err, "reading capture header: %w")
	}

	r.mu.Lock()
	r.linkType = pr.LinkType()
	r.mu.Unlock()

	for {
		if r.done.isSet() || ctx.Err() != nil {
			return nil
		}

		data, ci, err := pr.ReadPacketData()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			r.logger.Warn("reading packet from capture file", "error", err)

			return nil
		}

		buf := append([]byte(nil), data...)
		r.proc(frame.New(buf, int64(ci.Timestamp.Unix()), int64(ci.Timestamp.Nanosecond()/1000)))
	}
}

// StopReading implements [Origin].
func (r *FileReader) StopReading() { r.done.set() }
