package models

import "time"

// FileInfo represents metadata about an exported CSV file.
type FileInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	SessionID string    `json:"sessionId,omitempty"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"createdAt"`
	Mirrored  bool      `json:"mirrored,omitempty"`
}
