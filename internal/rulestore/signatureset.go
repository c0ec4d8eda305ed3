package rulestore

import "github.com/iGTsan/flow-inspector/internal/signature"

// signatureSet is the store's owned, deduplicating collection of
// signatures.  The store owns signatures; rules hold non-owning handles
// into it, referencing this set's interned pointers rather than pointers of
// their own.
type signatureSet struct {
	byHash map[uint64][]*signature.Signature
	count  int
}

func newSignatureSet() *signatureSet {
	return &signatureSet{byHash: make(map[uint64][]*signature.Signature)}
}

// intern returns sig's place in the set: an existing, equivalent signature
// if one was already interned, or sig itself, newly recorded.
func (s *signatureSet) intern(sig *signature.Signature) *signature.Signature {
	h := sig.Hash()
	for _, existing := range s.byHash[h] {
		if existing.Equal(sig) {
			return existing
		}
	}

	s.byHash[h] = append(s.byHash[h], sig)
	s.count++

	return sig
}

// Count returns the number of distinct signatures interned.
func (s *signatureSet) Count() int {
	return s.count
}
