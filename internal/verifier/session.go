// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package verifier runs asynchronous verification sessions: extraction,
// citation linking, storage, and oracle verification, with progress
// events streamed to subscribers.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/itisaevalex/citation-verifier-sub001/internal/docstore"
	"github.com/itisaevalex/citation-verifier-sub001/internal/grobid"
	"github.com/itisaevalex/citation-verifier-sub001/internal/oracle"
	"github.com/itisaevalex/citation-verifier-sub001/pkg/types"
)

const (
	defaultRetention       = 24 * time.Hour
	defaultMaxExcerptBytes = 24576

	// subscriberBuffer sizes each subscriber's live channel. A subscriber
	// that falls this far behind loses intermediate events but still sees
	// the terminal one.
	subscriberBuffer = 256
)

// ErrSessionNotFound is returned for unknown or swept session ids.
var ErrSessionNotFound = errors.New("session not found")

// nowFunc returns the current time. Tests override it to age sessions
// without sleeping.
var nowFunc = time.Now

// Manager owns every in-flight verification session. Sessions run in
// their own goroutines; all shared state sits behind the manager's lock
// or each session's own lock.
type Manager struct {
	extractor *grobid.Client
	store     *docstore.Store
	oracle    oracle.Oracle
	audit     *AuditStore
	cfg       types.VerifierConfig

	mu       sync.Mutex
	sessions map[string]*session
}

// session is the manager-internal state of one upload.
type session struct {
	mu      sync.Mutex
	state   types.VerificationSession
	history []types.ProgressEvent
	subs    map[int]chan types.ProgressEvent
	nextSub int
	cancel  context.CancelFunc
}

// NewManager builds a session manager. The audit store may be nil, in
// which case terminal sessions are not recorded.
func NewManager(extractor *grobid.Client, store *docstore.Store, orc oracle.Oracle, audit *AuditStore, cfg types.VerifierConfig) *Manager {
	if cfg.Retention <= 0 {
		cfg.Retention = defaultRetention
	}
	if cfg.MaxExcerptBytes <= 0 {
		cfg.MaxExcerptBytes = defaultMaxExcerptBytes
	}
	return &Manager{
		extractor: extractor,
		store:     store,
		oracle:    orc,
		audit:     audit,
		cfg:       cfg,
		sessions:  make(map[string]*session),
	}
}

// StartSession registers a new session and launches its pipeline
// goroutine. The response carries the session id and the progress path a
// client subscribes on.
func (m *Manager) StartSession(ctx context.Context, req types.UploadRequest) (types.UploadResponse, error) {
	if req.PDFPath == "" && len(req.TEI) == 0 {
		return types.UploadResponse{}, fmt.Errorf("upload carries neither a PDF path nor structured markup")
	}

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &session{
		state: types.VerificationSession{
			SessionID: id,
			Status:    types.SessionCreated,
			StartedAt: nowFunc(),
		},
		subs:   make(map[int]chan types.ProgressEvent),
		cancel: cancel,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	s.emit(types.ProgressEvent{Status: types.SessionCreated})

	go m.run(runCtx, s, req)

	return types.UploadResponse{
		SessionID: id,
		Progress:  "/sessions/" + id + "/progress",
	}, nil
}

// Subscribe returns a channel that first replays the session's full event
// history and then delivers live events until the session reaches a
// terminal status, at which point the channel is closed. Dropping the
// channel never cancels the session; only Cancel does.
func (m *Manager) Subscribe(sessionID string) (<-chan types.ProgressEvent, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan types.ProgressEvent, len(s.history)+subscriberBuffer)
	for _, ev := range s.history {
		ch <- ev
	}
	if s.state.Status.Terminal() {
		close(ch)
		return ch, nil
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, nil
}

// Cancel stops a running session. The session transitions to the error
// status with a cancellation message; terminal sessions are unaffected.
func (m *Manager) Cancel(sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}
	s.cancel()
	return nil
}

// Session returns a snapshot of one session's state.
func (m *Manager) Session(sessionID string) (types.VerificationSession, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return types.VerificationSession{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), nil
}

// Sweep removes terminal sessions that finished before the retention
// window. Their audit rows remain. Returns the number swept.
func (m *Manager) Sweep() int {
	cutoff := nowFunc().Add(-m.cfg.Retention)

	m.mu.Lock()
	defer m.mu.Unlock()

	var swept int
	for id, s := range m.sessions {
		s.mu.Lock()
		expired := s.state.Status.Terminal() && !s.state.FinishedAt.IsZero() && s.state.FinishedAt.Before(cutoff)
		s.mu.Unlock()
		if expired {
			delete(m.sessions, id)
			swept++
		}
	}
	return swept
}

func (m *Manager) lookup(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrSessionNotFound)
	}
	return s, nil
}

// snapshotLocked copies the session state. Caller holds s.mu.
func (s *session) snapshotLocked() types.VerificationSession {
	state := s.state
	state.ProcessedReferences = append([]types.ProcessedReference(nil), s.state.ProcessedReferences...)
	return state
}

// emit fills the event's shared fields from session state, appends it to
// the history, and fans it out. A full subscriber channel drops the event
// unless it is terminal; terminal events also close every channel.
func (s *session) emit(ev types.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.CurrentIndex = s.state.CurrentIndex
	ev.TotalReferences = s.state.TotalReferences
	ev.ProcessedReferences = append([]types.ProcessedReference(nil), s.state.ProcessedReferences...)

	s.history = append(s.history, ev)

	terminal := ev.Status.Terminal()
	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			if terminal {
				// Evict one event to make room for the terminal one. The
				// eviction must not block: the subscriber may have drained
				// the channel since the failed send.
				select {
				case <-ch:
				default:
				}
				select {
				case ch <- ev:
				default:
				}
			} else {
				slog.Warn("subscriber lagging, dropping event", "session", s.state.SessionID)
			}
		}
		if terminal {
			close(ch)
			delete(s.subs, id)
		}
	}
}
