// Package decoder adapts github.com/google/gopacket to the parsed-frame
// accessor interface that the rest of FlowInspector depends on.  It is the
// only package that decodes frames with gopacket; other packages use
// gopacket/layers only for its LinkType values (and, in tests, to build
// frames), and see decoded layers only through [ParsedFrame] and [LayerRef].
package decoder

import (
	"net/netip"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// LayerRef exposes the address, port, and payload accessors that signatures
// match against.  Not every layer populates every field: an IPv4 LayerRef has
// no ports, for instance.
type LayerRef interface {
	// SrcAddr returns the layer's source address, or the zero [netip.Addr] if
	// the layer has no notion of address.
	SrcAddr() netip.Addr

	// DstAddr returns the layer's destination address, or the zero
	// [netip.Addr] if the layer has no notion of address.
	DstAddr() netip.Addr

	// SrcPort returns the layer's source port, or 0 if the layer has no
	// notion of port.
	SrcPort() uint16

	// DstPort returns the layer's destination port, or 0 if the layer has no
	// notion of port.
	DstPort() uint16

	// Payload returns the layer's payload bytes, or nil if the layer carries
	// no payload of its own.
	Payload() []byte
}

// ParsedFrame is a parsed view of a single link-layer frame.  It is produced
// fresh by [Parse] every time; it is not cached on the originating
// [frame.Frame].
type ParsedFrame struct {
	pkt      gopacket.Packet
	linkType layers.LinkType
}

// LinkType returns the link-layer type the frame was decoded with.
func (p ParsedFrame) LinkType() layers.LinkType {
	return p.linkType
}

// IPv4 returns the frame's IPv4 layer, if any.
func (p ParsedFrame) IPv4() (ref LayerRef, ok bool) {
	l, ok := p.pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	if !ok || l == nil {
		return nil, false
	}

	return ipv4Ref{l}, true
}

// TCP returns the frame's TCP layer, if any.
func (p ParsedFrame) TCP() (ref LayerRef, ok bool) {
	l, ok := p.pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	if !ok || l == nil {
		return nil, false
	}

	return tcpRef{l}, true
}

// UDP returns the frame's UDP layer, if any.
func (p ParsedFrame) UDP() (ref LayerRef, ok bool) {
	l, ok := p.pkt.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok || l == nil {
		return nil, false
	}

	return udpRef{l}, true
}

// Ethernet reports whether the frame has an Ethernet layer, and its source
// and destination hardware addresses if so.
func (p ParsedFrame) Ethernet() (src, dst [6]byte, ok bool) {
	l, ok := p.pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok || l == nil {
		return src, dst, false
	}

	copy(src[:], l.SrcMAC)
	copy(dst[:], l.DstMAC)

	return src, dst, true
}

// Parse decodes raw as a link-layer frame of the given type.  The returned
// ParsedFrame borrows raw; raw must not be mutated while the ParsedFrame is
// in use.
func Parse(raw []byte, linkType layers.LinkType) (ParsedFrame, error) {
	pkt := gopacket.NewPacket(raw, linkType, gopacket.DecodeOptions{
		Lazy:   true,
		NoCopy: true,
	})

	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		// A decode error on an inner layer is not fatal: signatures still
		// operate on whatever layers did decode.  Only report a total
		// decode failure.
		if len(pkt.Layers()) == 0 {
			return ParsedFrame{}, errors.Annotate(errLayer, "decoding frame: %w")
		}
	}

	return ParsedFrame{pkt: pkt, linkType: linkType}, nil
}

type ipv4Ref struct{ l *layers.IPv4 }

func (r ipv4Ref) SrcAddr() netip.Addr { return mustAddr(r.l.SrcIP) }
func (r ipv4Ref) DstAddr() netip.Addr { return mustAddr(r.l.DstIP) }
func (r ipv4Ref) SrcPort() uint16     { return 0 }
func (r ipv4Ref) DstPort() uint16     { return 0 }
func (r ipv4Ref) Payload() []byte     { return r.l.Payload }

type tcpRef struct{ l *layers.TCP }

func (r tcpRef) SrcAddr() netip.Addr { return netip.Addr{} }
func (r tcpRef) DstAddr() netip.Addr { return netip.Addr{} }
func (r tcpRef) SrcPort() uint16     { return uint16(r.l.SrcPort) }
func (r tcpRef) DstPort() uint16     { return uint16(r.l.DstPort) }
func (r tcpRef) Payload() []byte     { return r.l.Payload }

type udpRef struct{ l *layers.UDP }

func (r udpRef) SrcAddr() netip.Addr { return netip.Addr{} }
func (r udpRef) DstAddr() netip.Addr { return netip.Addr{} }
func (r udpRef) SrcPort() uint16     { return uint16(r.l.SrcPort) }
func (r udpRef) DstPort() uint16     { return uint16(r.l.DstPort) }
func (r udpRef) Payload() []byte     { return r.l.Payload }

// mustAddr converts a net.IP into a [netip.Addr], returning the zero value if
// ip cannot be converted.
func mustAddr(ip []byte) netip.Addr {
	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}
	}

	return a.Unmap()
}
