package ranking

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	r, err := NewRecorder(path, nil)
	require.NoError(t, err)
	return r, path
}

func TestRecorderWritesEntries(t *testing.T) {
	r, path := newTestRecorder(t)
	r.Record("blue mugs", "https://example.com/1", ModeRelevance, 85)
	r.Record("blue mugs", "https://example.com/2", ModeRelevance, 40)
	require.NoError(t, r.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []auditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e auditEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 2)
	assert.Equal(t, "https://example.com/1", entries[0].URL)
	assert.Equal(t, float64(85), entries[0].Score)
}

func TestRecorderRecordAfterCloseIsDropped(t *testing.T) {
	r, _ := newTestRecorder(t)
	require.NoError(t, r.Close())

	// Must not panic on the closed channel.
	r.Record("late", "https://example.com/late", ModeRelevance, 1)
}

func TestRecorderConcurrentRecordAndClose(t *testing.T) {
	r, _ := newTestRecorder(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Record("q", "https://example.com/x", ModeRelevance, 0)
			}
		}()
	}
	require.NoError(t, r.Close())
	wg.Wait()
}
