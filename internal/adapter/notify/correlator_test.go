package notify_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/promo-harvester/internal/adapter/notify"
)

func TestForwardCorrelator_PutAndGet(t *testing.T) {
	t.Parallel()
	c := notify.NewForwardCorrelator(10)
	c.Put("msg-1", "user-1")

	userID, ok := c.Get("msg-1")
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)
}

func TestForwardCorrelator_MissingKey(t *testing.T) {
	t.Parallel()
	c := notify.NewForwardCorrelator(10)
	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestForwardCorrelator_EvictsOldestAtCapacity(t *testing.T) {
	t.Parallel()
	c := notify.NewForwardCorrelator(2)
	c.Put("msg-1", "user-1")
	c.Put("msg-2", "user-2")
	c.Put("msg-3", "user-3")

	_, ok := c.Get("msg-1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("msg-2")
	assert.True(t, ok)
	_, ok = c.Get("msg-3")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestForwardCorrelator_GetRefreshesRecency(t *testing.T) {
	t.Parallel()
	c := notify.NewForwardCorrelator(2)
	c.Put("msg-1", "user-1")
	c.Put("msg-2", "user-2")

	// Touch msg-1 so it becomes the most recently used.
	_, _ = c.Get("msg-1")
	c.Put("msg-3", "user-3")

	_, ok := c.Get("msg-2")
	assert.False(t, ok, "msg-2 should have been evicted as least recently used")
	_, ok = c.Get("msg-1")
	assert.True(t, ok)
}

func TestForwardCorrelator_PutOverwritesExisting(t *testing.T) {
	t.Parallel()
	c := notify.NewForwardCorrelator(10)
	c.Put("msg-1", "user-1")
	c.Put("msg-1", "user-2")

	userID, ok := c.Get("msg-1")
	assert.True(t, ok)
	assert.Equal(t, "user-2", userID)
	assert.Equal(t, 1, c.Len())
}

func TestForwardCorrelator_DefaultsCapacityWhenNonPositive(t *testing.T) {
	t.Parallel()
	c := notify.NewForwardCorrelator(0)
	for i := 0; i < 10; i++ {
		c.Put(fmt.Sprintf("msg-%d", i), fmt.Sprintf("user-%d", i))
	}
	assert.Equal(t, 10, c.Len())
}
