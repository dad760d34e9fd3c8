package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_Seed(t *testing.T) {
	store := NewConfigStore(map[string]any{"retrieval.top_k": 7})
	assert.Equal(t, 7, store.GetInt("retrieval.top_k"))
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("s", "paragraph"))
	require.NoError(t, store.Set("i64", int64(1500)))
	require.NoError(t, store.Set("f", 0.25))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("d", "30s"))
	require.NoError(t, store.Set("dd", 2*time.Minute))
	require.NoError(t, store.Set("n", "12"))

	assert.Equal(t, "paragraph", store.GetString("s"))
	assert.Equal(t, 1500, store.GetInt("i64"))
	assert.Equal(t, 12, store.GetInt("n"))
	assert.Equal(t, 0.25, store.GetFloat("f"))
	assert.Equal(t, 1500.0, store.GetFloat("i64"))
	assert.True(t, store.GetBool("b"))
	assert.Equal(t, 30*time.Second, store.GetDuration("d"))
	assert.Equal(t, 2*time.Minute, store.GetDuration("dd"))
}

func TestConfigStore_MissingAndMistyped(t *testing.T) {
	store := NewConfigStore(map[string]any{"s": 1, "d": "soon"})

	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, store.GetString("s"))
	assert.Zero(t, store.GetInt("missing"))
	assert.Zero(t, store.GetFloat("missing"))
	assert.False(t, store.GetBool("s"))
	assert.Zero(t, store.GetDuration("d"))
}

func TestConfigStore_Concurrent(t *testing.T) {
	store := NewConfigStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("k", i)
			_ = store.GetInt("k")
		}()
	}
	wg.Wait()
}
