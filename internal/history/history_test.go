package history

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func turns(n int) []Turn {
	out := make([]Turn, n)
	for i := range out {
		out[i] = Turn{User: fmt.Sprintf("q%d", i), Assistant: fmt.Sprintf("a%d", i)}
	}
	return out
}

func TestWindow(t *testing.T) {
	all := turns(15)

	w := Window(all, PromptWindow)
	require.Len(t, w, 10)
	assert.Equal(t, "q5", w[0].User)
	assert.Equal(t, "q14", w[9].User)

	w[0].User = "changed"
	assert.Equal(t, "q5", all[5].User, "window is a copy")

	assert.Len(t, Window(turns(3), 10), 3)
	assert.Empty(t, Window(nil, 10))
	assert.Empty(t, Window(all, 0))
}

func TestMemoryStore_LimitAndOrder(t *testing.T) {
	s := NewMemoryStore(5)
	for _, turn := range turns(8) {
		s.Append("s1", turn)
	}

	recent := s.Recent("s1", 50)
	require.Len(t, recent, 5)
	assert.Equal(t, "q3", recent[0].User)
	assert.Equal(t, "q7", recent[4].User)
	assert.False(t, recent[0].Timestamp.IsZero())

	assert.Len(t, s.Recent("s1", 2), 2)
}

func TestMemoryStore_SessionIsolation(t *testing.T) {
	s := NewMemoryStore(DisplayLimit)

	var wg sync.WaitGroup
	for _, session := range []string{"a", "b"} {
		wg.Add(1)
		go func(session string) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				s.Append(session, Turn{User: session})
			}
		}(session)
	}
	wg.Wait()

	for _, session := range []string{"a", "b"} {
		recent := s.Recent(session, DisplayLimit)
		require.Len(t, recent, 20)
		for _, turn := range recent {
			assert.Equal(t, session, turn.User)
		}
	}

	s.Clear("a")
	assert.Empty(t, s.Recent("a", 10))
	assert.Len(t, s.Recent("b", 10), 10)
}
