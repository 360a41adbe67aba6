package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/logger"
	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/scanner"
	"github.com/image-inspector/backend/internal/table"
)

// MaxSessions limits retained sessions to bound memory
const MaxSessions = 32

// DefaultMaxConcurrentScans is used when Options leaves the limit unset.
const DefaultMaxConcurrentScans = 4

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// Archiver persists a completed scan.
type Archiver interface {
	SaveScan(ctx context.Context, s models.ScanSession, records []models.ImageMetadata) error
}

// Options configures a Manager.
type Options struct {
	Extensions         []string
	BatchSize          int
	MaxConcurrentScans int
	Archive            Archiver
	Logger             *zap.Logger
}

// Manager owns the folder scan sessions. Each session has one consumer
// goroutine, the only writer of that session's record store.
type Manager struct {
	sessions      map[string]*SessionState
	mu            sync.RWMutex
	scanner       *scanner.Scanner
	extensions    []string
	maxConcurrent int
	archive       Archiver
	log           *zap.Logger
	nextSub       int
}

// SessionState holds the session metadata and its records.
type SessionState struct {
	Session      *models.ScanSession
	Store        *table.Store
	StatusText   string
	LastAccessed time.Time // Last time the session was accessed (for keep-alive)

	listeners map[int]chan Event
	done      chan struct{}
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	maxConcurrent := opts.MaxConcurrentScans
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentScans
	}
	return &Manager{
		sessions: make(map[string]*SessionState),
		scanner: scanner.New(
			scanner.WithBatchSize(opts.BatchSize),
			scanner.WithLogger(log.Named("scanner")),
		),
		extensions:    opts.Extensions,
		maxConcurrent: maxConcurrent,
		archive:       opts.Archive,
		log:           log,
	}
}

// StartScan lists folder and begins scanning it in the background.
func (m *Manager) StartScan(folder string) (*models.ScanSession, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("resolving folder: %w", err)
	}
	paths, err := scanner.ListFolder(abs, m.extensions)
	if err != nil {
		return nil, err
	}

	m.cleanupOldSessionsIfNeeded()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeScansLocked() >= m.maxConcurrent {
		return nil, ErrTooManyScans
	}

	sess := models.NewScanSession(uuid.New().String(), abs)
	state := &SessionState{
		Session:      sess,
		Store:        table.NewStore(),
		LastAccessed: time.Now(),
		listeners:    make(map[int]chan Event),
	}
	m.sessions[sess.ID] = state
	m.beginLocked(state, paths)

	m.log.Info("scan started",
		zap.String("session", logger.ShortID(sess.ID)),
		zap.String("folder", abs),
		zap.Int("files", len(paths)))

	snapshot := *sess
	return &snapshot, nil
}

// ReloadScan clears a finished session's records and scans its folder
// again. A session that is still scanning is rejected.
func (m *Manager) ReloadScan(id string) (*models.ScanSession, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	var folder string
	if ok {
		folder = state.Session.Folder
	}
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	paths, err := scanner.ListFolder(folder, m.extensions)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok = m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !state.Session.Done() {
		return nil, ErrScanInProgress
	}
	if m.activeScansLocked() >= m.maxConcurrent {
		return nil, ErrTooManyScans
	}

	state.Store.Clear()
	state.Session.Reloads++
	state.Session.Loaded = 0
	state.Session.ProcessingTimeMs = 0
	state.Session.CompletedAt = nil
	state.Session.Error = ""
	state.Session.StartedAt = time.Now()
	state.LastAccessed = time.Now()
	m.beginLocked(state, paths)

	m.log.Info("scan reloaded",
		zap.String("session", logger.ShortID(id)),
		zap.Int("files", len(paths)),
		zap.Int("reloads", state.Session.Reloads))

	snapshot := *state.Session
	return &snapshot, nil
}

// beginLocked must be called with m.mu held.
func (m *Manager) beginLocked(state *SessionState, paths []string) {
	state.Session.Status = models.SessionStatusScanning
	state.Session.FileCount = len(paths)
	state.StatusText = scanner.StatusLoading
	state.done = make(chan struct{})

	msgs := m.scanner.Start(paths)
	go m.consume(state.Session.ID, state, msgs, state.done)
}

func (m *Manager) consume(id string, state *SessionState, msgs <-chan scanner.Message, done chan struct{}) {
	defer close(done)

	defer func() {
		if r := recover(); r != nil {
			m.log.Error("consumer panicked", zap.String("session", logger.ShortID(id)), zap.Any("panic", r))
			m.mu.Lock()
			state.Session.Status = models.SessionStatusError
			state.Session.Error = fmt.Sprintf("scan panicked: %v", r)
			m.mu.Unlock()
		}
	}()

	for msg := range msgs {
		switch msg := msg.(type) {
		case scanner.BatchLoaded:
			state.Store.Append(msg.Records)

			m.mu.Lock()
			state.Session.Loaded = msg.Loaded
			state.StatusText = msg.Status()
			m.publish(state, Event{
				Type:    EventBatch,
				Session: id,
				Status:  state.StatusText,
				Loaded:  msg.Loaded,
				Records: msg.Records,
			})
			m.mu.Unlock()

		case scanner.Finished:
			now := time.Now()
			m.mu.Lock()
			state.Session.Status = models.SessionStatusComplete
			state.Session.Loaded = msg.Total
			state.Session.ProcessingTimeMs = msg.Elapsed.Milliseconds()
			state.Session.CompletedAt = &now
			state.StatusText = msg.Status()
			snapshot := *state.Session
			records := state.Store.Records()
			m.publish(state, Event{
				Type:    EventFinished,
				Session: id,
				Status:  state.StatusText,
				Loaded:  msg.Total,
				Total:   msg.Total,
			})
			m.mu.Unlock()

			m.log.Info("scan complete",
				zap.String("session", logger.ShortID(id)),
				zap.Int("files", msg.Total),
				zap.Duration("elapsed", msg.Elapsed))

			m.archiveScan(snapshot, records)
		}
	}
}

func (m *Manager) archiveScan(s models.ScanSession, records []models.ImageMetadata) {
	if m.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := m.archive.SaveScan(ctx, s, records); err != nil {
		m.log.Warn("archiving scan failed",
			zap.String("session", logger.ShortID(s.ID)),
			zap.Error(err))
	}
}

// activeScansLocked must be called with m.mu held.
func (m *Manager) activeScansLocked() int {
	n := 0
	for _, state := range m.sessions {
		if !state.Session.Done() {
			n++
		}
	}
	return n
}

// Wait blocks until the session's current scan has finished.
func (m *Manager) Wait(ctx context.Context, id string) error {
	m.mu.RLock()
	state, ok := m.sessions[id]
	var done chan struct{}
	if ok {
		done = state.done
	}
	m.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetSession returns a snapshot of a session by ID.
func (m *Manager) GetSession(id string) (*models.ScanSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	return &snapshot, true
}

// StatusText returns the one-line progress text for a session.
func (m *Manager) StatusText(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return "", false
	}
	return state.StatusText, true
}

// ListSessions returns snapshots of every session, newest first.
func (m *Manager) ListSessions() []models.ScanSession {
	m.mu.RLock()
	out := make([]models.ScanSession, 0, len(m.sessions))
	for _, state := range m.sessions {
		out = append(out, *state.Session)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// TouchSession updates the LastAccessed timestamp for a session.
// This should be called whenever a session is actively being used
// to prevent it from being cleaned up.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// GetRecords returns a page of records and the total count.
func (m *Manager) GetRecords(id string, offset, limit int) ([]models.ImageMetadata, int, bool) {
	store, ok := m.store(id)
	if !ok {
		return nil, 0, false
	}
	records, total := store.Page(offset, limit)
	return records, total, true
}

// ExportRecords returns every record of a finished session.
func (m *Manager) ExportRecords(id string) ([]models.ImageMetadata, error) {
	m.mu.RLock()
	state, ok := m.sessions[id]
	var done bool
	if ok {
		done = state.Session.Done()
	}
	m.mu.RUnlock()

	if !ok {
		return nil, ErrSessionNotFound
	}
	if !done {
		return nil, ErrScanInProgress
	}
	return state.Store.Records(), nil
}

// SetStatusText replaces a session's status line, e.g. after an export.
func (m *Manager) SetStatusText(id, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.StatusText = text
	return true
}

func (m *Manager) store(id string) (*table.Store, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return state.Store, true
}

// removeLocked must be called with m.mu held.
func (m *Manager) removeLocked(id string) {
	state, ok := m.sessions[id]
	if !ok {
		return
	}
	for key, ch := range state.listeners {
		delete(state.listeners, key)
		close(ch)
	}
	delete(m.sessions, id)
}

// cleanupOldSessionsIfNeeded removes the oldest finished sessions when at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < MaxSessions {
		return
	}

	var finished []*SessionState
	for _, state := range m.sessions {
		if state.Session.Done() {
			finished = append(finished, state)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].LastAccessed.Before(finished[j].LastAccessed)
	})

	toFree := len(m.sessions) - MaxSessions + 1
	for i := 0; i < toFree && i < len(finished); i++ {
		id := finished[i].Session.ID
		m.removeLocked(id)
		m.log.Info("evicted session", zap.String("session", logger.ShortID(id)))
	}
}

// CleanupOldSessions removes finished sessions not accessed within maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	keepAliveCutoff := time.Now().Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if !state.Session.Done() {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			m.removeLocked(id)
			removed++
			m.log.Info("cleaned up aged session",
				zap.String("session", logger.ShortID(id)),
				zap.Duration("idle", time.Since(state.LastAccessed).Round(time.Second)))
		}
	}
	return removed
}

// RunCleanup calls CleanupOldSessions every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldSessions(maxAge)
		}
	}
}

// DeleteSession removes a finished session.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if !state.Session.Done() {
		return ErrScanInProgress
	}
	m.removeLocked(id)
	return nil
}
