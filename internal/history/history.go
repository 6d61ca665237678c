package history

import (
	"sync"
	"time"
)

const (
	// PromptWindow is how many recent turns are replayed to the model
	PromptWindow = 10
	// DisplayLimit is how many turns a session keeps for display
	DisplayLimit = 50
)

// Turn is one question and answer exchange
type Turn struct {
	User      string    `json:"user"`
	Assistant string    `json:"assistant"`
	Timestamp time.Time `json:"timestamp"`
}

// Window returns a copy of the last n turns
func Window(turns []Turn, n int) []Turn {
	if n <= 0 || len(turns) == 0 {
		return []Turn{}
	}
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// Store keeps the conversation of every session
type Store interface {
	Append(session string, turn Turn)
	Recent(session string, n int) []Turn
	Clear(session string)
}

// MemoryStore is an in-process Store bounded to limit turns per session
type MemoryStore struct {
	mu       sync.Mutex
	limit    int
	sessions map[string][]Turn
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DisplayLimit
	}
	return &MemoryStore{limit: limit, sessions: make(map[string][]Turn)}
}

func (m *MemoryStore) Append(session string, turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	turns := append(m.sessions[session], turn)
	if len(turns) > m.limit {
		turns = append([]Turn(nil), turns[len(turns)-m.limit:]...)
	}
	m.sessions[session] = turns
}

func (m *MemoryStore) Recent(session string, n int) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Window(m.sessions[session], n)
}

func (m *MemoryStore) Clear(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, session)
}
