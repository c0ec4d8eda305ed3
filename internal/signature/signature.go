// Package signature implements the polymorphic frame predicates that rules
// are built from: raw-byte, IPv4, TCP, and content-substring signatures.
//
// Signatures are modeled as a single tagged-union value type rather than an
// interface with one implementation per variant.  That removes the run-time
// down-casting an interface-based design would need for equality and
// hashing, and keeps every signature a plain comparable-by-value struct that
// the rule store can dedup by content hash.
package signature

import (
	"bytes"
	"hash/fnv"
	"net/netip"
)

// Kind identifies which variant of the tagged union a [Signature] holds.
type Kind uint8

// The closed set of signature kinds.
const (
	_ Kind = iota
	KindRawBytes
	KindIPv4
	KindTCP
	KindContent
)

// String returns the rule-file type name for k.
func (k Kind) String() string {
	switch k {
	case KindRawBytes:
		return "raw_bytes"
	case KindIPv4:
		return "ip"
	case KindTCP:
		return "tcp"
	case KindContent:
		return "content"
	default:
		return "unknown"
	}
}

// Proto is the L4 protocol a content signature searches.
type Proto uint8

// The protocols a content signature may name.  ProtoHTTP searches the same
// payload as ProtoTCP, since HTTP rides over TCP and this engine does no
// stream reassembly: it is accepted as a distinct token for readability of
// rule files only.
const (
	_ Proto = iota
	ProtoTCP
	ProtoUDP
	ProtoHTTP
)

// HomeNet is the network the "$HOME_NET" rule-file sentinel expands to.
var HomeNet = netip.MustParsePrefix("192.168.0.0/24")

// Input bundles the raw frame bytes and parsed-layer view a signature
// matches against.
type Input struct {
	// Raw is the full link-layer frame buffer.
	Raw []byte

	// Parsed gives layer accessors for Raw.  It is produced fresh by the
	// caller per frame; signatures never retain it.
	Parsed ParsedFrame
}

// ParsedFrame is the subset of decoder.ParsedFrame that signatures need.
// Defined here, rather than importing decoder directly, so this package has
// no dependency on gopacket.
type ParsedFrame interface {
	IPv4() (LayerRef, bool)
	TCP() (LayerRef, bool)
	UDP() (LayerRef, bool)
}

// LayerRef is the subset of decoder.LayerRef that signatures need.
type LayerRef interface {
	SrcAddr() netip.Addr
	DstAddr() netip.Addr
	SrcPort() uint16
	DstPort() uint16
	Payload() []byte
}

// Signature is a predicate over a parsed frame.  The zero value is not a
// valid Signature; use one of the New* constructors.
type Signature struct {
	Kind Kind

	// RawBytes fields, valid when Kind == KindRawBytes.
	rbPayload []byte
	rbOffset  int
	rbHasOffs bool

	// IPv4 fields, valid when Kind == KindIPv4.
	ipSrc []netip.Prefix
	ipDst []netip.Prefix

	// TCP fields, valid when Kind == KindTCP.  0 means "any".
	tcpSrcPort uint16
	tcpDstPort uint16

	// Content fields, valid when Kind == KindContent.
	ctProto  Proto
	ctBytes  []byte
	ctNocase bool
}

// NewRawBytes returns a raw-bytes signature.  If hasOffset is false, payload
// is matched as a substring of the whole frame; otherwise it must appear at
// exactly offset.
func NewRawBytes(payload []byte, offset int, hasOffset bool) *Signature {
	return &Signature{
		Kind:      KindRawBytes,
		rbPayload: append([]byte(nil), payload...),
		rbOffset:  offset,
		rbHasOffs: hasOffset,
	}
}

// NewIPv4 returns an IPv4 signature.  An empty src or dst list means "no
// constraint on that side" (the rule-file "any" token).
func NewIPv4(src, dst []netip.Prefix) *Signature {
	return &Signature{
		Kind:  KindIPv4,
		ipSrc: append([]netip.Prefix(nil), src...),
		ipDst: append([]netip.Prefix(nil), dst...),
	}
}

// NewTCP returns a TCP port signature.  srcPort or dstPort of 0 means "any".
func NewTCP(srcPort, dstPort uint16) *Signature {
	return &Signature{Kind: KindTCP, tcpSrcPort: srcPort, tcpDstPort: dstPort}
}

// NewContent returns a content signature that searches proto's L4 payload
// for pattern.
func NewContent(proto Proto, pattern []byte, nocase bool) *Signature {
	ct := append([]byte(nil), pattern...)
	if nocase {
		ct = bytes.ToLower(ct)
	}

	return &Signature{Kind: KindContent, ctProto: proto, ctBytes: ct, ctNocase: nocase}
}

// Check reports whether in satisfies s.
func (s *Signature) Check(in Input) bool {
	switch s.Kind {
	case KindRawBytes:
		return s.checkRawBytes(in.Raw)
	case KindIPv4:
		ref, ok := in.Parsed.IPv4()
		if !ok {
			return false
		}

		return s.checkIPv4(ref)
	case KindTCP:
		ref, ok := in.Parsed.TCP()
		if !ok {
			return false
		}

		return s.checkTCP(ref)
	case KindContent:
		return s.checkContent(in.Parsed)
	default:
		return false
	}
}

func (s *Signature) checkRawBytes(raw []byte) bool {
	if !s.rbHasOffs {
		return bytes.Contains(raw, s.rbPayload)
	}

	if s.rbOffset < 0 {
		return false
	}

	end := s.rbOffset + len(s.rbPayload)
	if end > len(raw) {
		return false
	}

	return bytes.Equal(raw[s.rbOffset:end], s.rbPayload)
}

func (s *Signature) checkIPv4(ref LayerRef) bool {
	if len(s.ipSrc) > 0 && !prefixesContain(s.ipSrc, ref.SrcAddr()) {
		return false
	}

	if len(s.ipDst) > 0 && !prefixesContain(s.ipDst, ref.DstAddr()) {
		return false
	}

	return true
}

func prefixesContain(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}

	return false
}

func (s *Signature) checkTCP(ref LayerRef) bool {
	if s.tcpSrcPort != 0 && ref.SrcPort() != s.tcpSrcPort {
		return false
	}

	if s.tcpDstPort != 0 && ref.DstPort() != s.tcpDstPort {
		return false
	}

	return true
}

func (s *Signature) checkContent(p ParsedFrame) bool {
	var payload []byte
	switch s.ctProto {
	case ProtoTCP, ProtoHTTP:
		ref, ok := p.TCP()
		if !ok {
			return false
		}

		payload = ref.Payload()
	case ProtoUDP:
		ref, ok := p.UDP()
		if !ok {
			return false
		}

		payload = ref.Payload()
	default:
		return false
	}

	if s.ctNocase {
		payload = bytes.ToLower(payload)
	}

	return bytes.Contains(payload, s.ctBytes)
}

// Hash returns a content hash of s, suitable for deduplicating equivalent
// signatures in a rule store.
func (s *Signature) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte{byte(s.Kind)})

	switch s.Kind {
	case KindRawBytes:
		_, _ = h.Write(s.rbPayload)
		writeBool(h, s.rbHasOffs)
		writeInt(h, s.rbOffset)
	case KindIPv4:
		writePrefixes(h, s.ipSrc)
		_, _ = h.Write([]byte{0})
		writePrefixes(h, s.ipDst)
	case KindTCP:
		writeInt(h, int(s.tcpSrcPort))
		writeInt(h, int(s.tcpDstPort))
	case KindContent:
		_, _ = h.Write([]byte{byte(s.ctProto)})
		_, _ = h.Write(s.ctBytes)
		writeBool(h, s.ctNocase)
	}

	return h.Sum64()
}

func writeBool(h interface{ Write([]byte) (int, error) }, b bool) {
	if b {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}

func writeInt(h interface{ Write([]byte) (int, error) }, n int) {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(n >> (8 * i))
	}
	_, _ = h.Write(buf[:])
}

func writePrefixes(h interface{ Write([]byte) (int, error) }, prefixes []netip.Prefix) {
	for _, p := range prefixes {
		_, _ = h.Write([]byte(p.String()))
		_, _ = h.Write([]byte{','})
	}
}

// Equal reports whether s and other are the same signature by value.
func (s *Signature) Equal(other *Signature) bool {
	if s == nil || other == nil {
		return s == other
	}

	if s.Kind != other.Kind {
		return false
	}

	switch s.Kind {
	case KindRawBytes:
		return s.rbHasOffs == other.rbHasOffs &&
			s.rbOffset == other.rbOffset &&
			bytes.Equal(s.rbPayload, other.rbPayload)
	case KindIPv4:
		return equalPrefixes(s.ipSrc, other.ipSrc) && equalPrefixes(s.ipDst, other.ipDst)
	case KindTCP:
		return s.tcpSrcPort == other.tcpSrcPort && s.tcpDstPort == other.tcpDstPort
	case KindContent:
		return s.ctProto == other.ctProto &&
			s.ctNocase == other.ctNocase &&
			bytes.Equal(s.ctBytes, other.ctBytes)
	default:
		return false
	}
}

func equalPrefixes(a, b []netip.Prefix) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
