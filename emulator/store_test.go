package emulator

import (
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCollection_ConcurrentCreate races many creates of one id and checks
// that exactly one wins while the rest conflict.
func TestCollection_ConcurrentCreate(t *testing.T) {
	col := newCollection("registrationId", true)

	const writers = 16
	results := make([]*requestError, writers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			_, results[i] = col.create("dev-01", map[string]any{"registrationId": "dev-01"})
		}(i)
	}
	start.Done()
	done.Wait()

	created := 0
	for _, reqErr := range results {
		if reqErr == nil {
			created++
		} else {
			assert.Equal(t, http.StatusConflict, reqErr.Status)
		}
	}
	assert.Equal(t, 1, created, "exactly one create must win")

	stored, reqErr := col.get("dev-01")
	require.Nil(t, reqErr)
	assert.NotEmpty(t, stored["etag"])
}
