package core

import (
	"sync"

	"github.com/google/uuid"
)

// DefaultSessionID serves callers that do not send a session header,
// preserving the single-conversation behavior of the original service.
const DefaultSessionID = "default"

// Session holds the per-conversation list of image embedding blocks, one per
// uploaded image in upload order. It is process-local and never persisted.
type Session struct {
	id string

	mu     sync.Mutex
	blocks [][][]float32
}

func (s *Session) ID() string {
	return s.id
}

// Append records the embedding block for a newly uploaded image.
func (s *Session) Append(block [][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = append(s.blocks, block)
}

// Snapshot returns a copy of the block list. A generation request iterates
// its snapshot, so a concurrent Reset cannot mutate a list that an in-flight
// iteration is traversing.
func (s *Session) Snapshot() [][][]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][][]float32, len(s.blocks))
	copy(out, s.blocks)
	return out
}

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocks)
}

// Reset installs a fresh empty list. Snapshots taken earlier are unaffected.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks = nil
}

// SessionRegistry keys sessions by identifier so concurrent conversations do
// not share one embedding list.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Get returns the session for id, creating it on first use. An empty id maps
// to the default session.
func (r *SessionRegistry) Get(id string) *Session {
	if id == "" {
		id = DefaultSessionID
	}

	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return sess
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok = r.sessions[id]; ok {
		return sess
	}
	sess = &Session{id: id}
	r.sessions[id] = sess
	return sess
}

// NewSession mints a session with a fresh identifier.
func (r *SessionRegistry) NewSession() *Session {
	return r.Get(uuid.NewString())
}
