package ruleparser

import (
	"github.com/AdguardTeam/golibs/errors"

	"github.com/iGTsan/flow-inspector/internal/signature"
)

// Builder compiles a signature's init-string (the text between the
// type's parentheses) into a [signature.Signature].
type Builder func(initString string) (*signature.Signature, error)

// Registry maps a signature type name (e.g. "raw_bytes") to the [Builder]
// that compiles it.  It is a value constructed once by [NewRegistry] and
// passed down to parsers, never a package-level global.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry returns a Registry pre-populated with the four built-in
// signature types.  Callers may [Registry.Register] additional types before
// first use; it is built once during supervisor construction and treated as
// read-only afterward.
func NewRegistry() *Registry {
	reg := &Registry{builders: make(map[string]Builder, 4)}
	reg.Register("raw_bytes", buildRawBytes)
	reg.Register("ip", buildIPv4)
	reg.Register("tcp", buildTCP)
	reg.Register("content", buildContent)

	return reg
}

// Register adds or replaces the builder for typeName.
func (reg *Registry) Register(typeName string, b Builder) {
	reg.builders[typeName] = b
}

// Build compiles initString using the builder registered for typeName.  It
// returns an error if typeName is not registered.
func (reg *Registry) Build(typeName, initString string) (*signature.Signature, error) {
	b, ok := reg.builders[typeName]
	if !ok {
		return nil, errors.Error("unknown signature type " + quote(typeName))
	}

	return b(initString)
}

func quote(s string) string {
	return "\"" + s + "\""
}
