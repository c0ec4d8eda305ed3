package ruleparser

import (
	"net/netip"
	"strconv"
	"strings"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/iGTsan/flow-inspector/internal/signature"
)

// splitTopLevel splits s on sep, ignoring any sep found inside a matching
// pair of '[' ']'.  It is how every bracketed init-string grammar here is
// parsed: the outer fields are comma-separated, but a field may itself be a
// bracketed, comma-separated list.
func splitTopLevel(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0

	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}

	parts = append(parts, s[start:])

	return parts
}

// unwrapBracket requires s (after trimming whitespace) to be of the form
// "[inner]" and returns inner.
func unwrapBracket(s string) (inner string, err error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", errors.Error("expected brackets around " + quote(s))
	}

	return s[1 : len(s)-1], nil
}

// splitTokenList splits a bracket's inner content into its comma-separated
// tokens, trimming whitespace and dropping empty tokens.
func splitTokenList(inner string) []string {
	var out []string
	for _, tok := range strings.Split(inner, ",") {
		tok = strings.TrimSpace(tok)
		if tok != "" {
			out = append(out, tok)
		}
	}

	return out
}

// buildRawBytes compiles "[b1 b2 …] [, offset]".
func buildRawBytes(initString string) (*signature.Signature, error) {
	parts := splitTopLevel(initString, ',')

	bracket, err := unwrapBracket(parts[0])
	if err != nil {
		return nil, err
	}

	var payload []byte
	for _, tok := range strings.Fields(bracket) {
		n, convErr := strconv.Atoi(tok)
		if convErr != nil || n < 0 || n > 255 {
			return nil, errors.Error("invalid byte " + quote(tok) + " in raw_bytes")
		}

		payload = append(payload, byte(n))
	}

	if len(parts) == 1 {
		return signature.NewRawBytes(payload, 0, false), nil
	}

	offsetTok := strings.TrimSpace(parts[1])
	offset, convErr := strconv.Atoi(offsetTok)
	if convErr != nil || offset < 0 {
		return nil, errors.Error("invalid offset " + quote(offsetTok) + " in raw_bytes")
	}

	return signature.NewRawBytes(payload, offset, true), nil
}

// parseIPTokens compiles a single src_list/dst_list bracket's tokens into
// prefixes.  "any" contributes no constraint and is reported as such.
func parseIPTokens(bracket string) (prefixes []netip.Prefix, err error) {
	for _, tok := range splitTokenList(bracket) {
		switch tok {
		case "any":
			continue
		case "$HOME_NET":
			prefixes = append(prefixes, signature.HomeNet)
		default:
			p, perr := parseAddrOrCIDR(tok)
			if perr != nil {
				return nil, errors.Annotate(perr, "invalid address "+quote(tok)+" in ip: %w")
			}

			prefixes = append(prefixes, p)
		}
	}

	return prefixes, nil
}

// parseAddrOrCIDR parses "addr" (implicit /32) or "addr/mask".
func parseAddrOrCIDR(tok string) (netip.Prefix, error) {
	if strings.Contains(tok, "/") {
		return netip.ParsePrefix(tok)
	}

	addr, err := netip.ParseAddr(tok)
	if err != nil {
		return netip.Prefix{}, err
	}

	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// buildIPv4 compiles "[src_list], [dst_list]".
func buildIPv4(initString string) (*signature.Signature, error) {
	parts := splitTopLevel(initString, ',')
	if len(parts) != 2 {
		return nil, errors.Error("ip requires exactly src and dst brackets")
	}

	srcBracket, err := unwrapBracket(parts[0])
	if err != nil {
		return nil, err
	}

	dstBracket, err := unwrapBracket(parts[1])
	if err != nil {
		return nil, err
	}

	src, err := parseIPTokens(srcBracket)
	if err != nil {
		return nil, err
	}

	dst, err := parseIPTokens(dstBracket)
	if err != nil {
		return nil, err
	}

	return signature.NewIPv4(src, dst), nil
}

// parsePortToken parses a single bracket's content as a TCP port: "any" or
// empty means match-any (0); otherwise an integer 0-65535, where 0 also
// means match-any.
func parsePortToken(bracket string) (uint16, error) {
	tok := strings.TrimSpace(bracket)
	if tok == "" || tok == "any" {
		return 0, nil
	}

	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 || n > 65535 {
		return 0, errors.Error("invalid port " + quote(tok))
	}

	return uint16(n), nil
}

// buildTCP compiles "[src_port], [dst_port]".
func buildTCP(initString string) (*signature.Signature, error) {
	parts := splitTopLevel(initString, ',')
	if len(parts) != 2 {
		return nil, errors.Error("tcp requires exactly src and dst brackets")
	}

	srcBracket, err := unwrapBracket(parts[0])
	if err != nil {
		return nil, err
	}

	dstBracket, err := unwrapBracket(parts[1])
	if err != nil {
		return nil, err
	}

	srcPort, err := parsePortToken(srcBracket)
	if err != nil {
		return nil, err
	}

	dstPort, err := parsePortToken(dstBracket)
	if err != nil {
		return nil, err
	}

	return signature.NewTCP(srcPort, dstPort), nil
}

// buildContent compiles "protocol, string, flag*".
func buildContent(initString string) (*signature.Signature, error) {
	parts := splitTopLevel(initString, ',')
	if len(parts) < 2 {
		return nil, errors.Error("content requires protocol and string")
	}

	protoTok := strings.TrimSpace(parts[0])
	var proto signature.Proto
	switch protoTok {
	case "tcp":
		proto = signature.ProtoTCP
	case "udp":
		proto = signature.ProtoUDP
	case "http":
		proto = signature.ProtoHTTP
	default:
		return nil, errors.Error("unknown content protocol " + quote(protoTok))
	}

	pattern := strings.TrimSpace(parts[1])
	if pattern == "" {
		return nil, errors.Error("content string must not be empty")
	}

	nocase := false
	for _, flag := range parts[2:] {
		switch strings.TrimSpace(flag) {
		case "nocase":
			nocase = true
		case "":
			// Trailing comma with nothing after it; ignore.
		default:
			return nil, errors.Error("unknown content flag " + quote(strings.TrimSpace(flag)))
		}
	}

	return signature.NewContent(proto, []byte(pattern), nocase), nil
}
