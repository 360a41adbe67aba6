package api

import (
	"context"
	"sync"
	"time"

	"github.com/image-inspector/backend/internal/archive"
	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/session"
)

// MockSessionManager is a mock implementation for testing
type MockSessionManager struct {
	mu        sync.Mutex
	sessions  map[string]*models.ScanSession
	records   map[string][]models.ImageMetadata
	status    map[string]string
	events    map[string]chan session.Event
	cancelled int

	startErr  error
	lastStart string
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*models.ScanSession),
		records:  make(map[string][]models.ImageMetadata),
		status:   make(map[string]string),
		events:   make(map[string]chan session.Event),
	}
}

// add registers a session with the given status and records.
func (m *MockSessionManager) add(id string, status models.SessionStatus, records []models.ImageMetadata) *models.ScanSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess := &models.ScanSession{
		ID:        id,
		Folder:    "/images/" + id,
		Status:    status,
		FileCount: len(records),
		Loaded:    len(records),
		StartedAt: time.Now(),
	}
	m.sessions[id] = sess
	m.records[id] = records
	return sess
}

func (m *MockSessionManager) StartScan(folder string) (*models.ScanSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastStart = folder
	if m.startErr != nil {
		return nil, m.startErr
	}
	sess := &models.ScanSession{
		ID:        "test-session-123",
		Folder:    folder,
		Status:    models.SessionStatusScanning,
		FileCount: 3,
		StartedAt: time.Now(),
	}
	m.sessions[sess.ID] = sess
	m.status[sess.ID] = "Loading..."
	snapshot := *sess
	return &snapshot, nil
}

func (m *MockSessionManager) ReloadScan(id string) (*models.ScanSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if !sess.Done() {
		return nil, session.ErrScanInProgress
	}
	sess.Status = models.SessionStatusScanning
	sess.Loaded = 0
	sess.Reloads++
	m.records[id] = nil
	m.status[id] = "Loading..."
	snapshot := *sess
	return &snapshot, nil
}

func (m *MockSessionManager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return session.ErrSessionNotFound
	}
	if !sess.Done() {
		return session.ErrScanInProgress
	}
	delete(m.sessions, id)
	delete(m.records, id)
	return nil
}

func (m *MockSessionManager) GetSession(id string) (*models.ScanSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *sess
	return &snapshot, true
}

func (m *MockSessionManager) ListSessions() []models.ScanSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ScanSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

func (m *MockSessionManager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[id]
	return ok
}

func (m *MockSessionManager) StatusText(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return "", false
	}
	return m.status[id], true
}

func (m *MockSessionManager) SetStatusText(id, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return false
	}
	m.status[id] = text
	return true
}

func (m *MockSessionManager) GetRecords(id string, offset, limit int) ([]models.ImageMetadata, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return nil, 0, false
	}
	all := m.records[id]
	if offset >= len(all) {
		return []models.ImageMetadata{}, len(all), true
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), true
}

func (m *MockSessionManager) ExportRecords(id string) ([]models.ImageMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	if !sess.Done() {
		return nil, session.ErrScanInProgress
	}
	return m.records[id], nil
}

func (m *MockSessionManager) Subscribe(id string) (<-chan session.Event, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return nil, nil, session.ErrSessionNotFound
	}
	ch, ok := m.events[id]
	if !ok {
		ch = make(chan session.Event, 8)
		m.events[id] = ch
	}
	return ch, func() {
		m.mu.Lock()
		m.cancelled++
		m.mu.Unlock()
	}, nil
}

// eventsFor returns the channel Subscribe hands out for id.
func (m *MockSessionManager) eventsFor(id string) chan session.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.events[id]
	if !ok {
		ch = make(chan session.Event, 8)
		m.events[id] = ch
	}
	return ch
}

var _ SessionManager = (*MockSessionManager)(nil)

// mockArchive serves canned history and summaries.
type mockArchive struct {
	scans     []archive.ScanRecord
	summaries map[string][]archive.FormatSummary
	err       error
	lastLimit int
}

func (a *mockArchive) ListScans(_ context.Context, limit int) ([]archive.ScanRecord, error) {
	a.lastLimit = limit
	if a.err != nil {
		return nil, a.err
	}
	return a.scans, nil
}

func (a *mockArchive) Summary(_ context.Context, sessionID string) ([]archive.FormatSummary, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.summaries[sessionID], nil
}

func sampleRecords(n int) []models.ImageMetadata {
	out := make([]models.ImageMetadata, n)
	for i := range out {
		out[i] = models.ImageMetadata{
			FileName:      "img" + string(rune('a'+i%26)) + ".png",
			FileSizeBytes: uint64(1024 * (i + 1)),
			Dimensions:    models.NewDimensions(10, 10),
			DPI:           models.NewResolution(72, 72),
			Depth:         24,
			Format:        models.FormatPNG,
			Compression:   "Deflate (Lossless)",
		}
	}
	return out
}
