// Package rulestore implements the shared, lock-protected collection of
// active rules and their deduplicated signatures.
package rulestore

import (
	"log/slog"
	"os"
	"sync"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"

	"github.com/iGTsan/flow-inspector/internal/rule"
	"github.com/iGTsan/flow-inspector/internal/ruleparser"
	"github.com/iGTsan/flow-inspector/internal/signature"
)

// Store is the active ruleset.  Readers ([Store.Evaluate]) take a shared
// lock; a reload ([Store.ReplaceFromFile]) parses outside any lock and only
// takes the exclusive lock to swap in the fresh result.
//
// This mirrors github.com/AdguardTeam/AdGuardHome's
// internal/filtering/rulelist.Engine.Refresh/resetStorage: parse into a
// fresh value, then swap it in under a lock held only for the pointer
// assignment.
type Store struct {
	logger *slog.Logger

	mu       *sync.RWMutex
	rules    []*rule.Rule
	sigs     *signatureSet
	registry *ruleparser.Registry
}

// New returns an empty Store.  reg is the signature-builder registry built
// once at supervisor construction; it is not owned or mutated by Store.
func New(logger *slog.Logger, reg *ruleparser.Registry) *Store {
	return &Store{
		logger:   logger,
		mu:       &sync.RWMutex{},
		sigs:     newSignatureSet(),
		registry: reg,
	}
}

// Evaluate returns every rule whose signatures all match in.  It takes the
// store's lock for reading only, so it never blocks a concurrent Evaluate,
// only a concurrent ReplaceFromFile swap.
func (s *Store) Evaluate(in signature.Input) []*rule.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*rule.Rule
	for _, r := range s.rules {
		if r.Check(in) {
			matched = append(matched, r)
		}
	}

	return matched
}

// SignaturesCount returns the number of distinct signatures currently owned
// by the store.
func (s *Store) SignaturesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sigs.Count()
}

// RulesCount returns the number of rules currently active.
func (s *Store) RulesCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.rules)
}

// ReplaceFromFile parses path and, only if the whole file parses
// successfully, atomically replaces the store's rules and signatures.  On
// any parse error, the store is left completely untouched and the error is
// returned, so a concurrent Evaluate during a failed reload sees exactly
// the pre-reload ruleset.
func (s *Store) ReplaceFromFile(path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return errors.Annotate(err, "opening rules file: %w")
	}
	defer func() { err = errors.WithDeferred(err, f.Close()) }()

	parsed, err := ruleparser.New(s.registry).Parse(f)
	if err != nil {
		s.logger.Info("rule parse failed, keeping previous ruleset", slogutil.KeyError, err)

		return errors.Annotate(err, "parsing rules file: %w")
	}

	newSigs := newSignatureSet()
	newRules := make([]*rule.Rule, 0, len(parsed))
	for _, pr := range parsed {
		handles := make([]*signature.Signature, len(pr.Signatures))
		for i, sig := range pr.Signatures {
			handles[i] = newSigs.intern(sig)
		}

		newRules = append(newRules, rule.New(pr.Name, pr.EventType, handles))
	}

	s.mu.Lock()
	s.rules = newRules
	s.sigs = newSigs
	s.mu.Unlock()

	s.logger.Info("rules loaded", "rules", len(newRules), "signatures", newSigs.Count())

	return nil
}
