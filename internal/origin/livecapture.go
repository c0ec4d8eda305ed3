package origin

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/gopacket/layers"
	"github.com/mdlayher/ethernet"
	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"

	"github.com/iGTsan/flow-inspector/internal/frame"
)

// htons converts a host-order uint16 to network order, as AF_PACKET's
// protocol argument requires.
func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// LiveCapture reads frames from a network interface using an AF_PACKET raw
// socket (via mdlayher/packet), avoiding a libpcap/cgo dependency for the
// live-capture path. It never ends on its own: StartReading returns when
// [LiveCapture.StopReading] is called, when ctx is found canceled between
// reads, or when a socket read fails.
type LiveCapture struct {
	logger *slog.Logger
	ifName string

	proc Processor
	done doneFlag

	conn *packet.Conn
}

var _ Origin = (*LiveCapture)(nil)

// NewLiveCapture returns a LiveCapture bound to the named interface. The
// socket is not opened until [LiveCapture.StartReading].
func NewLiveCapture(logger *slog.Logger, ifName string) *LiveCapture {
	return &LiveCapture{logger: logger, ifName: ifName}
}

// SetProcessor implements [Origin].
func (c *LiveCapture) SetProcessor(p Processor) { c.proc = p }

// LinkType implements [Origin]. AF_PACKET raw sockets always deliver
// Ethernet frames.
func (c *LiveCapture) LinkType() layers.LinkType { return layers.LinkTypeEthernet }

// StartReading implements [Origin].
func (c *LiveCapture) StartReading(ctx context.Context) error {
	ifi, err := net.InterfaceByName(c.ifName)
	if err != nil {
		return errors.Annotate(err, "resolving interface %q: %w", c.ifName)
	}

	conn, err := packet.Listen(ifi, packet.Raw, int(htons(unix.ETH_P_ALL)), nil)
	if err != nil {
		return errors.Annotate(err, "opening raw socket on %q: %w", c.ifName)
	}
	c.conn = conn
	defer conn.Close()

	buf := make([]byte, 65536)
	for {
		if c.done.isSet() || ctx.Err() != nil {
			return nil
		}

		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if c.done.isSet() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			c.logger.Warn("reading from interface", "interface", c.ifName, "error", err)

			return nil
		}

		data := append([]byte(nil), buf[:n]...)

		var hdr ethernet.Frame
		if err := hdr.UnmarshalBinary(data); err != nil {
			c.logger.Debug("dropping malformed ethernet frame", "interface", c.ifName, "error", err)

			continue
		}

		if hdr.EtherType != ethernet.EtherTypeIPv4 {
			continue
		}

		now := time.Now()
		c.proc(frame.New(data, now.Unix(), int64(now.Nanosecond()/1000)))
	}
}

// StopReading implements [Origin]. It closes the underlying socket, which
// unblocks a concurrent ReadFrom, matching the "signal the device to stop"
// contract live capture needs beyond the done-flag alone.
func (c *LiveCapture) StopReading() {
	c.done.set()

	if c.conn != nil {
		c.conn.Close()
	}
}
