// Package scanner turns a list of image paths into metadata records on a
// worker goroutine and hands them to a single consumer in fixed-size
// batches.
package scanner

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/models"
	"github.com/image-inspector/backend/internal/parser"
)

// DefaultBatchSize is the number of records delivered per batch message.
const DefaultBatchSize = 20

// Scanner inspects files sequentially, in the order given.
type Scanner struct {
	registry  *parser.Registry
	batchSize int
	log       *zap.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithBatchSize overrides the batch size. Values below 1 are ignored.
func WithBatchSize(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithRegistry sets the parser registry used for dispatch.
func WithRegistry(r *parser.Registry) Option {
	return func(s *Scanner) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithLogger sets the logger for per-file diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Scanner) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates a Scanner backed by the global parser registry.
func New(opts ...Option) *Scanner {
	s := &Scanner{
		registry:  parser.GetGlobalRegistry(),
		batchSize: DefaultBatchSize,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BatchSize returns the configured batch size.
func (s *Scanner) BatchSize() int { return s.batchSize }

// Inspect builds the record for one file. Failures are absorbed into
// unknown fields; Inspect never panics.
func (s *Scanner) Inspect(path string) (rec models.ImageMetadata) {
	rec = models.NewImageMetadata(filepath.Base(path), 0)
	format := models.FormatUnknown
	sniffed := false

	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("parser panicked", zap.String("file", path), zap.Any("panic", r))
			rec = models.NewImageMetadata(rec.FileName, rec.FileSizeBytes)
			if sniffed {
				rec.Format = format
			} else {
				rec.Format = parser.SniffExtension(path)
			}
			rec.Compression = parser.CompressionNotApplicable
		}
	}()

	if info, err := os.Stat(path); err != nil {
		s.log.Debug("stat failed", zap.String("file", path), zap.Error(err))
	} else {
		rec.FileSizeBytes = uint64(info.Size())
	}

	format = s.registry.Sniff(path)
	sniffed = true
	rec.Format = format
	s.registry.ParserFor(format).Parse(path, format).Apply(&rec)

	if rec.Dimensions == nil {
		s.log.Debug("no dimensions recovered",
			zap.String("file", path),
			zap.String("format", string(format)))
	}
	return rec.Normalize()
}

// Start launches a worker goroutine over paths and returns the channel it
// posts to. The channel is buffered for every message the scan will send,
// so the worker never waits on the consumer. It is closed after Finished.
func (s *Scanner) Start(paths []string) <-chan Message {
	own := append([]string(nil), paths...)
	out := make(chan Message, s.messageCount(len(own)))
	go s.Run(own, out)
	return out
}

// Run scans paths on the calling goroutine, posting a BatchLoaded message
// for every full batch and for the final partial one, then Finished. It
// closes out when done. There is no cancellation: a started scan always
// runs to completion.
func (s *Scanner) Run(paths []string, out chan<- Message) {
	defer close(out)

	start := time.Now()
	batch := make([]models.ImageMetadata, 0, s.batchSize)
	processed := 0

	for _, path := range paths {
		batch = append(batch, s.Inspect(path))
		processed++

		if len(batch) >= s.batchSize {
			out <- BatchLoaded{Records: batch, Loaded: processed}
			batch = make([]models.ImageMetadata, 0, s.batchSize)
		}
	}

	if len(batch) > 0 {
		out <- BatchLoaded{Records: batch, Loaded: processed}
	}

	elapsed := time.Since(start)
	s.log.Info("scan finished",
		zap.Int("files", processed),
		zap.Duration("elapsed", elapsed))
	out <- Finished{Total: processed, Elapsed: elapsed}
}

func (s *Scanner) messageCount(files int) int {
	return (files+s.batchSize-1)/s.batchSize + 1
}
