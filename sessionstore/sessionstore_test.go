package sessionstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStore(t *testing.T) {
	t.Run("isolates sessions from each other", func(t *testing.T) {
		store := NewInMemoryStore()
		mgrAlpha, err := NewManager("alpha", store)
		require.NoError(t, err)
		mgrBeta, err := NewManager("beta", store)
		require.NoError(t, err)

		mgrAlpha.AddMessage("user", "hello from alpha")
		mgrAlpha.Set("lang", "en-US")

		mgrBeta.AddMessage("user", "hola from beta")

		assert.Len(t, mgrAlpha.History(0), 1)
		assert.Len(t, mgrBeta.History(0), 1)
		assert.Equal(t, "en-US", mgrAlpha.Get("lang", nil))
		assert.Nil(t, mgrBeta.Get("lang", nil))
	})

	t.Run("history limit returns most recent entries", func(t *testing.T) {
		store := NewInMemoryStore()
		mgr, err := NewManager("s1", store)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			mgr.AddMessage("user", "msg")
		}
		assert.Len(t, mgr.History(2), 2)
		assert.Len(t, mgr.History(0), 5)
	})

	t.Run("rejects empty session id", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := NewManager("", store)
		assert.Error(t, err)
	})

	t.Run("clear wipes session state", func(t *testing.T) {
		store := NewInMemoryStore()
		mgr, err := NewManager("s1", store)
		require.NoError(t, err)
		mgr.AddMessage("user", "hi")
		mgr.Set("k", "v")
		mgr.Clear()
		assert.Empty(t, mgr.History(0))
		assert.Nil(t, mgr.Get("k", nil))
	})
}
