package scanner

import (
	"fmt"
	"time"

	"github.com/image-inspector/backend/internal/models"
)

// Message is posted from the scan worker to its consumer. It is either a
// BatchLoaded or a Finished.
type Message interface {
	// Status is the one-line progress text for the message.
	Status() string
	isMessage()
}

// BatchLoaded carries a group of completed records and the running count
// of files processed so far.
type BatchLoaded struct {
	Records []models.ImageMetadata
	Loaded  int
}

// Finished is the last message of a scan.
type Finished struct {
	Total   int
	Elapsed time.Duration
}

func (BatchLoaded) isMessage() {}
func (Finished) isMessage()    {}

func (b BatchLoaded) Status() string { return fmt.Sprintf("Files processed: %d", b.Loaded) }
func (f Finished) Status() string    { return fmt.Sprintf("Files loaded: %d", f.Total) }

// StatusLoading is shown between the start of a scan and its first batch.
const StatusLoading = "Loading..."
