package decoder_test

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iGTsan/flow-inspector/internal/decoder"
)

func buildTCPFrame(t *testing.T, payload []byte) []byte {
	t.Helper()

	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		TTL:      64,
		SrcIP:    net.ParseIP("192.168.1.5").To4(),
		DstIP:    net.ParseIP("10.0.0.10").To4(),
		Protocol: layers.IPProtocolTCP,
	}
	tcp := layers.TCP{
		SrcPort: 1234,
		DstPort: 80,
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(&ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp, gopacket.Payload(payload)))

	return buf.Bytes()
}

func TestParse_TCPLayers(t *testing.T) {
	t.Parallel()

	raw := buildTCPFrame(t, []byte("HelloWorld"))

	parsed, err := decoder.Parse(raw, layers.LinkTypeEthernet)
	require.NoError(t, err)

	ipRef, ok := parsed.IPv4()
	require.True(t, ok)
	assert.Equal(t, "192.168.1.5", ipRef.SrcAddr().String())
	assert.Equal(t, "10.0.0.10", ipRef.DstAddr().String())

	tcpRef, ok := parsed.TCP()
	require.True(t, ok)
	assert.EqualValues(t, 1234, tcpRef.SrcPort())
	assert.EqualValues(t, 80, tcpRef.DstPort())
	assert.Equal(t, []byte("HelloWorld"), tcpRef.Payload())

	_, ok = parsed.UDP()
	assert.False(t, ok)
}

func TestParse_NoIPv4Layer(t *testing.T) {
	t.Parallel()

	eth := layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte{0, 1, 2, 3, 4, 5},
		SourceProtAddress: []byte{192, 168, 1, 1},
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    []byte{192, 168, 1, 2},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &arp))

	parsed, err := decoder.Parse(buf.Bytes(), layers.LinkTypeEthernet)
	require.NoError(t, err)

	_, ok := parsed.IPv4()
	assert.False(t, ok)
}
