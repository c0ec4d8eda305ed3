package signature_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iGTsan/flow-inspector/internal/signature"
)

// fakeLayerRef is a minimal signature.LayerRef for tests that don't need a
// real decoded packet.
type fakeLayerRef struct {
	src, dst         netip.Addr
	srcPort, dstPort uint16
	payload          []byte
}

func (r fakeLayerRef) SrcAddr() netip.Addr { return r.src }
func (r fakeLayerRef) DstAddr() netip.Addr { return r.dst }
func (r fakeLayerRef) SrcPort() uint16     { return r.srcPort }
func (r fakeLayerRef) DstPort() uint16     { return r.dstPort }
func (r fakeLayerRef) Payload() []byte     { return r.payload }

// fakeParsedFrame is a minimal signature.ParsedFrame for tests.
type fakeParsedFrame struct {
	ipv4, tcp, udp fakeLayerRef
	hasIPv4        bool
	hasTCP         bool
	hasUDP         bool
}

func (p fakeParsedFrame) IPv4() (signature.LayerRef, bool) { return p.ipv4, p.hasIPv4 }
func (p fakeParsedFrame) TCP() (signature.LayerRef, bool)  { return p.tcp, p.hasTCP }
func (p fakeParsedFrame) UDP() (signature.LayerRef, bool)  { return p.udp, p.hasUDP }

func TestSignature_RawBytes_NoOffset(t *testing.T) {
	t.Parallel()

	sig := signature.NewRawBytes([]byte{1, 2, 3, 4}, 0, false)

	assert.True(t, sig.Check(signature.Input{Raw: []byte{0, 1, 2, 3, 4, 5, 6}}))
	assert.False(t, sig.Check(signature.Input{Raw: []byte{0, 1, 2, 4, 5, 6}}))
}

func TestSignature_RawBytes_Offset(t *testing.T) {
	t.Parallel()

	sig := signature.NewRawBytes([]byte{1, 2, 3, 4}, 1, true)

	assert.True(t, sig.Check(signature.Input{Raw: []byte{0, 1, 2, 3, 4, 1, 2, 3, 7}}))
	// payload at offset 1 is {2,3,4,5}, not {1,2,3,4}.
	assert.False(t, sig.Check(signature.Input{Raw: []byte{1, 2, 3, 4, 5, 6}}))
}

func TestSignature_RawBytes_OffsetPastEnd(t *testing.T) {
	t.Parallel()

	sig := signature.NewRawBytes([]byte{1, 2}, 10, true)

	assert.False(t, sig.Check(signature.Input{Raw: []byte{1, 2, 3}}))
}

func TestSignature_IPv4_CIDR(t *testing.T) {
	t.Parallel()

	src := netip.MustParsePrefix("192.168.1.0/24")
	dst := netip.MustParsePrefix("10.0.0.0/24")
	sig := signature.NewIPv4([]netip.Prefix{src}, []netip.Prefix{dst})

	in := signature.Input{Parsed: fakeParsedFrame{
		hasIPv4: true,
		ipv4: fakeLayerRef{
			src: netip.MustParseAddr("192.168.1.5"),
			dst: netip.MustParseAddr("10.0.0.10"),
		},
	}}
	assert.True(t, sig.Check(in))

	in2 := signature.Input{Parsed: fakeParsedFrame{
		hasIPv4: true,
		ipv4: fakeLayerRef{
			src: netip.MustParseAddr("192.168.2.5"),
			dst: netip.MustParseAddr("10.0.1.10"),
		},
	}}
	assert.False(t, sig.Check(in2))
}

func TestSignature_IPv4_NoLayer(t *testing.T) {
	t.Parallel()

	sig := signature.NewIPv4(nil, nil)
	assert.False(t, sig.Check(signature.Input{Parsed: fakeParsedFrame{hasIPv4: false}}))
}

func TestSignature_IPv4_HomeNet(t *testing.T) {
	t.Parallel()

	sig := signature.NewIPv4(nil, []netip.Prefix{signature.HomeNet})

	in := signature.Input{Parsed: fakeParsedFrame{
		hasIPv4: true,
		ipv4:    fakeLayerRef{dst: netip.MustParseAddr("192.168.0.42")},
	}}
	assert.True(t, sig.Check(in))
}

func TestSignature_TCP_AnySource(t *testing.T) {
	t.Parallel()

	sig := signature.NewTCP(0, 80)

	match := signature.Input{Parsed: fakeParsedFrame{
		hasTCP: true,
		tcp:    fakeLayerRef{srcPort: 1234, dstPort: 80},
	}}
	assert.True(t, sig.Check(match))

	noMatch := signature.Input{Parsed: fakeParsedFrame{
		hasTCP: true,
		tcp:    fakeLayerRef{srcPort: 1234, dstPort: 81},
	}}
	assert.False(t, sig.Check(noMatch))
}

func TestSignature_Content_TCP(t *testing.T) {
	t.Parallel()

	sig := signature.NewContent(signature.ProtoTCP, []byte("HelloWorld"), false)

	match := signature.Input{Parsed: fakeParsedFrame{
		hasTCP: true,
		tcp:    fakeLayerRef{payload: []byte("say HelloWorld now")},
	}}
	assert.True(t, sig.Check(match))

	noMatch := signature.Input{Parsed: fakeParsedFrame{
		hasTCP: true,
		tcp:    fakeLayerRef{payload: []byte("FooBar")},
	}}
	assert.False(t, sig.Check(noMatch))
}

func TestSignature_Content_Nocase(t *testing.T) {
	t.Parallel()

	sig := signature.NewContent(signature.ProtoTCP, []byte("GET"), true)

	in := signature.Input{Parsed: fakeParsedFrame{
		hasTCP: true,
		tcp:    fakeLayerRef{payload: []byte("get / HTTP/1.1")},
	}}
	assert.True(t, sig.Check(in))
}

func TestSignature_Content_WrongProto(t *testing.T) {
	t.Parallel()

	sig := signature.NewContent(signature.ProtoUDP, []byte("x"), false)
	in := signature.Input{Parsed: fakeParsedFrame{hasUDP: false}}
	assert.False(t, sig.Check(in))
}

func TestSignature_Equal_And_Hash(t *testing.T) {
	t.Parallel()

	a := signature.NewRawBytes([]byte{1, 2}, 0, false)
	b := signature.NewRawBytes([]byte{1, 2}, 0, false)
	c := signature.NewRawBytes([]byte{1, 3}, 0, false)

	require.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	assert.False(t, a.Equal(c))
}

func TestSignature_Kind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "raw_bytes", signature.KindRawBytes.String())
	assert.Equal(t, "ip", signature.KindIPv4.String())
	assert.Equal(t, "tcp", signature.KindTCP.String())
	assert.Equal(t, "content", signature.KindContent.String())
}
