package models

import "time"

// SessionStatus represents the status of a scan session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusScanning SessionStatus = "scanning"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// ScanSession represents one folder scan.
type ScanSession struct {
	ID               string        `json:"id"`
	Folder           string        `json:"folder"`
	Status           SessionStatus `json:"status"`
	FileCount        int           `json:"fileCount"`
	Loaded           int           `json:"loaded"`
	ProcessingTimeMs int64         `json:"processingTimeMs,omitempty"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
	Reloads          int           `json:"reloads,omitempty"`
	Error            string        `json:"error,omitempty"`
}

// NewScanSession creates a new ScanSession in pending status.
func NewScanSession(id, folder string) *ScanSession {
	return &ScanSession{
		ID:        id,
		Folder:    folder,
		Status:    SessionStatusPending,
		StartedAt: time.Now(),
	}
}

// Done reports whether the scan has stopped producing records.
func (s *ScanSession) Done() bool {
	return s.Status == SessionStatusComplete || s.Status == SessionStatusError
}

// Progress returns the loaded share in percent.
func (s *ScanSession) Progress() float64 {
	if s.FileCount == 0 {
		if s.Done() {
			return 100
		}
		return 0
	}
	return float64(s.Loaded) * 100 / float64(s.FileCount)
}
