package bot

import (
	"sync"

	"crewflow/internal/telegram"

	"github.com/google/uuid"
)

// Step enumerates the states of the per-user conversation machine.
type Step int

const (
	StepIdle Step = iota
	StepProjectTitle
	StepProjectDescription
	StepSubmitFiles
	StepRejectReason
)

// Session is the transient per-user dialogue state. It is not a system
// of record: everything here is discarded on completion, cancellation,
// or error, and nothing is persisted until the flow commits through the
// engine.
type Session struct {
	Step Step

	ProjectTitle string
	TaskId       uuid.UUID
	Files        []telegram.FileItem
}

// SessionStore holds one session per user. A user's interactions are
// serial in practice; last write wins on the rare overlap.
type SessionStore struct {
	lock     sync.Mutex
	sessions map[int64]Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]Session)}
}

func (store *SessionStore) Get(userId int64) Session {
	store.lock.Lock()
	defer store.lock.Unlock()
	return store.sessions[userId]
}

func (store *SessionStore) Put(userId int64, session Session) {
	store.lock.Lock()
	defer store.lock.Unlock()
	store.sessions[userId] = session
}

func (store *SessionStore) Clear(userId int64) {
	store.lock.Lock()
	defer store.lock.Unlock()
	delete(store.sessions, userId)
}
