package rulestore_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iGTsan/flow-inspector/internal/ruleparser"
	"github.com/iGTsan/flow-inspector/internal/rulestore"
	"github.com/iGTsan/flow-inspector/internal/signature"
)

func writeRules(t *testing.T, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rules.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	return path
}

func TestStore_ReplaceFromFile_DedupsSignatures(t *testing.T) {
	t.Parallel()

	path := writeRules(t, ""+
		"Alert; r1; raw_bytes([1 2 3 4])\n"+
		"Alert; r2; raw_bytes([1 2 3 4]); raw_bytes([5 6])\n")

	st := rulestore.New(slogutil.NewDiscardLogger(), ruleparser.NewRegistry())
	require.NoError(t, st.ReplaceFromFile(path))

	assert.Equal(t, 2, st.RulesCount())
	// raw_bytes([1 2 3 4]) is shared by both rules, so only 2 distinct
	// signatures should be interned, not 3.
	assert.Equal(t, 2, st.SignaturesCount())
}

func TestStore_Evaluate(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "Alert; r1; raw_bytes([1 2 3 4])\n")

	st := rulestore.New(slogutil.NewDiscardLogger(), ruleparser.NewRegistry())
	require.NoError(t, st.ReplaceFromFile(path))

	matched := st.Evaluate(signature.Input{Raw: []byte{0, 1, 2, 3, 4, 5}})
	require.Len(t, matched, 1)
	assert.Equal(t, "r1", matched[0].Name)

	none := st.Evaluate(signature.Input{Raw: []byte{9, 9, 9}})
	assert.Empty(t, none)
}

func TestStore_ReplaceFromFile_FailedReloadLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	goodPath := writeRules(t, "Alert; r1; raw_bytes([1 2 3 4])\n")
	badPath := writeRules(t, "Alert; bad; nope([1])\n")

	st := rulestore.New(slogutil.NewDiscardLogger(), ruleparser.NewRegistry())
	require.NoError(t, st.ReplaceFromFile(goodPath))

	before := st.Evaluate(signature.Input{Raw: []byte{1, 2, 3, 4}})
	require.Len(t, before, 1)

	require.Error(t, st.ReplaceFromFile(badPath))

	after := st.Evaluate(signature.Input{Raw: []byte{1, 2, 3, 4}})
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Name, after[0].Name)
	assert.Equal(t, 1, st.SignaturesCount())
}

// TestStore_ReloadAtomicity exercises §8's reload-atomicity property: a
// concurrent Evaluate running during a failed reload must never observe a
// mixture of old and new state.
func TestStore_ReloadAtomicity(t *testing.T) {
	t.Parallel()

	goodPath := writeRules(t, "Alert; r1; raw_bytes([1 2 3 4])\n")
	badPath := writeRules(t, "Alert; bad; nope([1])\n")

	st := rulestore.New(slogutil.NewDiscardLogger(), ruleparser.NewRegistry())
	require.NoError(t, st.ReplaceFromFile(goodPath))

	frameBytes := signature.Input{Raw: []byte{1, 2, 3, 4}}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			matched := st.Evaluate(frameBytes)
			if len(matched) != 1 {
				panic("reload broke evaluation atomicity")
			}
		}()
	}

	_ = st.ReplaceFromFile(badPath)
	wg.Wait()

	assert.Equal(t, 1, st.SignaturesCount())
}
