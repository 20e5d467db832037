package ledger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/absredact/internal/model"
)

func paths(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "found_abstract.log"), filepath.Join(dir, "no_abstract.log")
}

func TestFileLedger_MarkAndReload(t *testing.T) {
	found, failed := paths(t)
	l, err := Open(found, failed)
	require.NoError(t, err)

	assert.False(t, l.IsProcessed("hal-1"))
	require.NoError(t, l.MarkProcessed("hal-1", model.OutcomeFound))
	require.NoError(t, l.MarkProcessed("hal-2", model.OutcomeFailed))
	require.NoError(t, l.MarkProcessed("hal-3", model.OutcomeSkipped))

	assert.True(t, l.IsProcessed("hal-1"))
	assert.True(t, l.IsProcessed("hal-2"))
	assert.False(t, l.IsProcessed("hal-3"), "skipped documents are not recorded")

	data, err := os.ReadFile(found)
	require.NoError(t, err)
	assert.Equal(t, "hal-1\n", string(data))
	data, err = os.ReadFile(failed)
	require.NoError(t, err)
	assert.Equal(t, "hal-2\n", string(data))

	reopened, err := Open(found, failed)
	require.NoError(t, err)
	assert.True(t, reopened.IsProcessed("hal-1"))
	assert.True(t, reopened.IsProcessed("hal-2"))
	assert.False(t, reopened.IsProcessed("hal-3"))
	f, n := reopened.Counts()
	assert.Equal(t, 1, f)
	assert.Equal(t, 1, n)
}

func TestFileLedger_Reset(t *testing.T) {
	found, failed := paths(t)
	l, err := Open(found, failed)
	require.NoError(t, err)
	require.NoError(t, l.MarkProcessed("hal-1", model.OutcomeFound))

	require.NoError(t, l.Reset())
	assert.False(t, l.IsProcessed("hal-1"))
	assert.NoFileExists(t, found)
	assert.NoFileExists(t, failed)
	require.NoError(t, l.Reset(), "reset is idempotent")
}

func TestFileLedger_Concurrent(t *testing.T) {
	found, failed := paths(t)
	l, err := Open(found, failed)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome := model.OutcomeFound
			if i%2 == 1 {
				outcome = model.OutcomeFailed
			}
			assert.NoError(t, l.MarkProcessed(fmt.Sprintf("doc-%d", i), outcome))
		}(i)
	}
	wg.Wait()

	f, n := l.Counts()
	assert.Equal(t, 25, f)
	assert.Equal(t, 25, n)

	reopened, err := Open(found, failed)
	require.NoError(t, err)
	f, n = reopened.Counts()
	assert.Equal(t, 25, f)
	assert.Equal(t, 25, n)
}
