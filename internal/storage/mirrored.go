package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/image-inspector/backend/internal/models"
)

// MirroredStore saves exports locally and copies each one to a Mirror.
// Mirror failures are logged; the local export still succeeds.
type MirroredStore struct {
	*LocalStore
	mirror  Mirror
	prefix  string
	timeout time.Duration
	log     *zap.Logger
}

// NewMirroredStore wraps local with mirror. Object keys are prefix/<id>.csv.
func NewMirroredStore(local *LocalStore, mirror Mirror, prefix string, log *zap.Logger) *MirroredStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &MirroredStore{
		LocalStore: local,
		mirror:     mirror,
		prefix:     prefix,
		timeout:    time.Minute,
		log:        log,
	}
}

func (s *MirroredStore) objectKey(id string) string {
	return path.Join(s.prefix, id+".csv")
}

// Save stores the export locally, then uploads it.
func (s *MirroredStore) Save(name, sessionID string, rows int, r io.Reader) (*models.FileInfo, error) {
	info, err := s.LocalStore.Save(name, sessionID, rows, r)
	if err != nil {
		return nil, err
	}

	if err := s.upload(info); err != nil {
		s.log.Warn("export mirror failed", zap.String("id", info.ID), zap.Error(err))
		return info, nil
	}

	mirrored, err := s.LocalStore.MarkMirrored(info.ID)
	if err != nil {
		return info, nil
	}
	return mirrored, nil
}

func (s *MirroredStore) upload(info *models.FileInfo) error {
	f, err := os.Open(s.LocalStore.filePath(info.ID))
	if err != nil {
		return fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.mirror.Upload(ctx, s.objectKey(info.ID), f, info.Size)
}

// Delete removes the local export and its remote copy.
func (s *MirroredStore) Delete(id string) error {
	info, err := s.LocalStore.Get(id)
	if err != nil {
		return err
	}
	if err := s.LocalStore.Delete(id); err != nil {
		return err
	}
	if info.Mirrored {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.mirror.Delete(ctx, s.objectKey(id)); err != nil {
			s.log.Warn("removing mirrored export failed", zap.String("id", id), zap.Error(err))
		}
	}
	return nil
}

var (
	_ Store = (*LocalStore)(nil)
	_ Store = (*MirroredStore)(nil)
)
