package supervisor_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iGTsan/flow-inspector/internal/config"
	"github.com/iGTsan/flow-inspector/internal/supervisor"
)

// writeTestCapture builds an offline pcap file containing one HTTP-looking
// TCP frame, grounding the test on spec.md §8 scenario 6 (content substring
// match on a TCP payload).
func writeTestCapture(t *testing.T) string {
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
	tcp := layers.TCP{SrcPort: 51000, DstPort: 80}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(&ip))

	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf,
		gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true},
		&eth, &ip, &tcp, gopacket.Payload("GET / HTTP/1.1\r\n")))

	path := filepath.Join(t.TempDir(), "in.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: time.Unix(1, 0), CaptureLength: len(data), Length: len(data)}
	require.NoError(t, w.WritePacket(ci, data))

	return path
}

func TestSupervisor_EndToEnd_AlertOnMatchingFrame(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	rulesPath := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(rulesPath,
		[]byte("Alert; http_get; tcp([any],[80]); content(tcp, GET, nocase)\n"), 0o644))

	capturePath := writeTestCapture(t)

	cfg := &config.Config{
		Mode:      config.ModePcap,
		File:      capturePath,
		Cores:     1,
		LogOutput: filepath.Join(dir, "events.log"),
		Write:     filepath.Join(dir, "out.pcap"),
		Rules:     rulesPath,
		LogLevel:  "info",
	}

	sup, err := supervisor.New(cfg, slogutil.NewDiscardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, sup.Start(ctx))
	require.NoError(t, sup.Stop(ctx))

	data, err := os.ReadFile(cfg.LogOutput)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "[Alert: http_get ]"), "log output: %s", data)
}

func TestSupervisor_ReloadRules_BadFileLeavesPreviousActive(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	rulesPath := filepath.Join(dir, "rules.txt")
	require.NoError(t, os.WriteFile(rulesPath,
		[]byte("Alert; r1; raw_bytes([1 2 3 4])\n"), 0o644))

	cfg := &config.Config{
		Mode:      config.ModePcap,
		File:      writeTestCapture(t),
		Cores:     1,
		LogOutput: filepath.Join(dir, "events.log"),
		Write:     filepath.Join(dir, "out.pcap"),
		Rules:     rulesPath,
		LogLevel:  "info",
	}

	sup, err := supervisor.New(cfg, slogutil.NewDiscardLogger(), prometheus.NewRegistry())
	require.NoError(t, err)

	badPath := filepath.Join(dir, "bad.txt")
	require.NoError(t, os.WriteFile(badPath, []byte("Alert; bad; nope([1])\n"), 0o644))

	err = sup.LoadRules(badPath)
	assert.Error(t, err)

	// The rules path remembered for ReloadRules must still be the last
	// successfully loaded one.
	require.NoError(t, sup.ReloadRules())
}
