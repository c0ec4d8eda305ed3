// Package ruleparser compiles the rules-file grammar into rules and the
// signatures they reference.
//
//	rule      := event ';' name (';' signature)*
//	signature := type '(' init-string ')'
//
// Blank lines and lines whose first non-space byte is '#' are skipped.
package ruleparser

import (
	"bufio"
	"io"
	"strings"

	"github.com/AdguardTeam/golibs/errors"

	"github.com/iGTsan/flow-inspector/internal/rule"
	"github.com/iGTsan/flow-inspector/internal/signature"
)

// ParsedRule is one compiled rule-file line: a rule plus the signatures it
// newly introduces (not yet deduplicated against a store).
type ParsedRule struct {
	Name       string
	EventType  rule.EventType
	Signatures []*signature.Signature
}

// Parser compiles rule-file lines using a [Registry] of signature builders.
type Parser struct {
	registry *Registry
}

// New returns a Parser using reg to build signatures.  reg is typically
// [NewRegistry]'s result, constructed once by the supervisor.
func New(reg *Registry) *Parser {
	return &Parser{registry: reg}
}

// Parse reads rule-file lines from r and compiles them.
//
// Parse aborts on the first malformed line: any line failure aborts the
// whole load, so the caller (typically a rule store's reload path) must not
// apply a partial result; on error, the previously active ruleset is left
// untouched.
func (p *Parser) Parse(r io.Reader) ([]*ParsedRule, error) {
	var rules []*ParsedRule

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()

		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		pr, err := p.parseLine(trimmed)
		if err != nil {
			return nil, errors.Annotate(err, "line %d: %w", lineNo)
		}

		rules = append(rules, pr)
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Annotate(err, "reading rules: %w")
	}

	return rules, nil
}

func (p *Parser) parseLine(line string) (*ParsedRule, error) {
	fields := strings.Split(line, ";")
	if len(fields) < 2 {
		return nil, ErrMissingName
	}

	eventTok := strings.TrimSpace(fields[0])
	if eventTok == "" {
		return nil, ErrMissingEvent
	}

	eventType, ok := rule.ParseEventType(eventTok)
	if !ok {
		return nil, errors.Error("unknown event " + quote(eventTok))
	}

	name := strings.TrimSpace(fields[1])
	if name == "" {
		return nil, ErrMissingName
	}

	sigs := make([]*signature.Signature, 0, len(fields)-2)
	for _, spec := range fields[2:] {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}

		sig, err := p.parseSignature(spec)
		if err != nil {
			return nil, err
		}

		sigs = append(sigs, sig)
	}

	return &ParsedRule{Name: name, EventType: eventType, Signatures: sigs}, nil
}

func (p *Parser) parseSignature(spec string) (*signature.Signature, error) {
	open := strings.IndexByte(spec, '(')
	if open < 0 || !strings.HasSuffix(spec, ")") {
		return nil, errors.Error("missing brackets in signature " + quote(spec))
	}

	typeName := strings.TrimSpace(spec[:open])
	initString := spec[open+1 : len(spec)-1]

	sig, err := p.registry.Build(typeName, initString)
	if err != nil {
		return nil, err
	}

	return sig, nil
}
