package rtc

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/edgevision/go-livedetect/pkg/pipeline"
)

// sessionRecorder fakes session construction and remembers every session
// it handed out.
type sessionRecorder struct {
	mu       sync.Mutex
	sessions []*Session
	delay    time.Duration
}

func (r *sessionRecorder) new(offerSDP string, proc *pipeline.Processor, cfg Config, onClose func(*Session)) (*Session, string, error) {
	if r.delay > 0 {
		time.Sleep(r.delay)
	}
	s := &Session{
		ID:      uuid.NewString(),
		onClose: onClose,
		done:    make(chan struct{}),
	}
	r.mu.Lock()
	r.sessions = append(r.sessions, s)
	r.mu.Unlock()
	return s, "answer-" + s.ID, nil
}

func (r *sessionRecorder) all() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Session(nil), r.sessions...)
}

func newTestManager(rec *sessionRecorder) *Manager {
	m := NewManager(nil, DefaultConfig())
	m.newSession = rec.new
	return m
}

func sessionEnded(s *Session) bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func TestManager_StartReplacesPrevious(t *testing.T) {
	rec := &sessionRecorder{}
	m := newTestManager(rec)

	first, err := m.Start("offer-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if first == "" {
		t.Fatal("Start returned an empty answer")
	}
	if !m.Active() {
		t.Fatal("Active: expected true after Start")
	}

	if _, err := m.Start("offer-2"); err != nil {
		t.Fatalf("second Start: %v", err)
	}

	created := rec.all()
	if len(created) != 2 {
		t.Fatalf("created %d sessions, want 2", len(created))
	}
	if !sessionEnded(created[0]) {
		t.Error("second Start did not close the first session")
	}
	if sessionEnded(created[1]) {
		t.Error("second Start closed its own session")
	}
	if !m.Active() {
		t.Error("Active: expected true after replacement")
	}
}

func TestManager_SessionCloseClearsActive(t *testing.T) {
	rec := &sessionRecorder{}
	m := newTestManager(rec)

	if _, err := m.Start("offer"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rec.all()[0].Close()

	if m.Active() {
		t.Error("Active: expected false after the session closed itself")
	}
}

func TestManager_CloseEndsSession(t *testing.T) {
	rec := &sessionRecorder{}
	m := newTestManager(rec)

	if _, err := m.Start("offer"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Close()

	if m.Active() {
		t.Error("Active: expected false after Close")
	}
	if !sessionEnded(rec.all()[0]) {
		t.Error("Close did not end the session")
	}
}

func TestManager_ConcurrentStartsLeaveOneSession(t *testing.T) {
	rec := &sessionRecorder{delay: 10 * time.Millisecond}
	m := newTestManager(rec)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := m.Start(fmt.Sprintf("offer-%d", n)); err != nil {
				t.Errorf("Start: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var live []*Session
	for _, s := range rec.all() {
		if !sessionEnded(s) {
			live = append(live, s)
		}
	}
	if len(live) != 1 {
		t.Fatalf("got %d live sessions after concurrent starts, want 1", len(live))
	}
	if !m.Active() {
		t.Error("Active: expected true after concurrent starts")
	}

	// The survivor must be the one the manager tracks; closing through the
	// manager must end it.
	m.Close()
	if !sessionEnded(live[0]) {
		t.Error("surviving session is not tracked by the manager")
	}
}

func TestManager_StartErrorLeavesInactive(t *testing.T) {
	m := NewManager(nil, DefaultConfig())
	m.newSession = func(string, *pipeline.Processor, Config, func(*Session)) (*Session, string, error) {
		return nil, "", fmt.Errorf("negotiation failed")
	}

	if _, err := m.Start("offer"); err == nil {
		t.Fatal("Start: expected error")
	}
	if m.Active() {
		t.Error("Active: expected false after failed Start")
	}
}
