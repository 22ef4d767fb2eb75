package rtc

import (
	"sync"

	"github.com/edgevision/go-livedetect/pkg/pipeline"
)

// Manager owns the single active demo session. Starting a new session
// closes the previous one.
type Manager struct {
	cfg  Config
	proc *pipeline.Processor

	// startMu serializes Start end to end. Session construction is slow
	// (ffmpeg spawn, full ICE gathering); two racing offers must not both
	// pass the close-old step and leave an orphaned session running.
	startMu sync.Mutex

	mu      sync.Mutex
	current *Session

	// newSession is swapped for a fake in tests.
	newSession func(offerSDP string, proc *pipeline.Processor, cfg Config, onClose func(*Session)) (*Session, string, error)

	// OnChange is called when a session starts or ends. Optional.
	OnChange func()
}

// NewManager creates a session manager around the shared processor.
func NewManager(proc *pipeline.Processor, cfg Config) *Manager {
	return &Manager{
		cfg:        cfg,
		proc:       proc,
		newSession: NewSession,
	}
}

// Start answers the offer with a fresh session, replacing any existing one.
func (m *Manager) Start(offerSDP string) (answerSDP string, err error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	m.mu.Lock()
	old := m.current
	m.current = nil
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	s, answer, err := m.newSession(offerSDP, m.proc, m.cfg, m.sessionClosed)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.notify()
	return answer, nil
}

// Active reports whether a session is live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Close ends the active session, if any.
func (m *Manager) Close() {
	m.mu.Lock()
	current := m.current
	m.current = nil
	m.mu.Unlock()

	if current != nil {
		current.Close()
	}
}

func (m *Manager) sessionClosed(s *Session) {
	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) notify() {
	if m.OnChange != nil {
		m.OnChange()
	}
}
