package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/image-inspector/backend/internal/models"
)

// ErrNotFound is returned for an unknown export id.
var ErrNotFound = errors.New("export not found")

// Store defines the interface for CSV export storage.
type Store interface {
	Save(name, sessionID string, rows int, r io.Reader) (*models.FileInfo, error)
	Get(id string) (*models.FileInfo, error)
	List(limit int) ([]*models.FileInfo, error)
	Delete(id string) error
	GetFilePath(id string) (string, error)
}

const exportKeyPrefix = "export:"

// LocalStore implements Store on the local filesystem, with export
// metadata indexed in badger so it survives restarts.
type LocalStore struct {
	mu        sync.RWMutex
	exportDir string
	db        *badger.DB
}

// NewLocalStore creates a LocalStore rooted at exportDir.
func NewLocalStore(exportDir string) (*LocalStore, error) {
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(exportDir, "index"))
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening export index: %w", err)
	}

	return &LocalStore{
		exportDir: exportDir,
		db:        db,
	}, nil
}

func exportKey(id string) []byte {
	return []byte(exportKeyPrefix + id)
}

func (s *LocalStore) filePath(id string) string {
	return filepath.Join(s.exportDir, id+".csv")
}

// Save writes r to a new export file and indexes it.
func (s *LocalStore) Save(name, sessionID string, rows int, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	path := s.filePath(id)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:        id,
		Name:      name,
		Size:      size,
		SessionID: sessionID,
		Rows:      rows,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.put(info); err != nil {
		os.Remove(path)
		return nil, err
	}
	return info, nil
}

func (s *LocalStore) put(info *models.FileInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding export metadata: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(exportKey(info.ID), data)
	})
}

func (s *LocalStore) get(id string) (*models.FileInfo, error) {
	var info models.FileInfo
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(exportKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// Get retrieves export metadata by ID.
func (s *LocalStore) Get(id string) (*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(id)
}

// List returns the most recent exports. A limit of 0 or less returns all.
func (s *LocalStore) List(limit int) ([]*models.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*models.FileInfo
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(exportKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var info models.FileInfo
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				return err
			}
			list = append(list, &info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing exports: %w", err)
	}

	// Newest first
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// Delete removes an export and its index entry.
func (s *LocalStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.get(id); err != nil {
		return err
	}
	if err := os.Remove(s.filePath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting file: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(exportKey(id))
	})
}

// GetFilePath returns the path of an export file.
func (s *LocalStore) GetFilePath(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, err := s.get(id); err != nil {
		return "", err
	}
	return s.filePath(id), nil
}

// MarkMirrored records that an export has been copied to remote storage.
func (s *LocalStore) MarkMirrored(id string) (*models.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := s.get(id)
	if err != nil {
		return nil, err
	}
	info.Mirrored = true
	if err := s.put(info); err != nil {
		return nil, err
	}
	return info, nil
}

// Close closes the index.
func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
