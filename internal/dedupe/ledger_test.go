// ABOUTME: Tests for the per-conversation message id ledger
// ABOUTME: Covers atomic check-and-mark, batch marking, resets, and conversation scoping

package dedupe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckAndMark(t *testing.T) {
	l := NewLedger()

	assert.False(t, l.CheckAndMark(1, 42), "first sighting is not a duplicate")
	assert.True(t, l.CheckAndMark(1, 42), "second sighting is a duplicate")
}

func TestCheckAndMark_ScopedByConversation(t *testing.T) {
	l := NewLedger()

	// Message ids are only unique within a conversation.
	assert.False(t, l.CheckAndMark(1, 42))
	assert.False(t, l.CheckAndMark(2, 42), "same id in another conversation is new")
	assert.True(t, l.CheckAndMark(2, 42))
}

func TestMarkAll(t *testing.T) {
	l := NewLedger()
	l.MarkAll(1, []int64{1, 2, 3})

	assert.True(t, l.CheckAndMark(1, 2))
	assert.False(t, l.CheckAndMark(1, 4))
}

func TestReset(t *testing.T) {
	l := NewLedger()
	l.MarkAll(1, []int64{1, 2})
	l.MarkAll(2, []int64{5})

	l.Reset(1)

	assert.False(t, l.CheckAndMark(1, 1), "reset forgets the conversation")
	assert.True(t, l.CheckAndMark(2, 5), "other conversations are untouched")
}

func TestCheckAndMark_Concurrent(t *testing.T) {
	l := NewLedger()

	// Many goroutines racing on the same id: exactly one wins.
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !l.CheckAndMark(1, 42) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
