package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/models"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
	"github.com/google/uuid"
)

// ErrNoSnapshot means no state document has been written yet
var ErrNoSnapshot = errors.New("no state snapshot")

// SnapshotBackend persists the serialized GlobalState document
type SnapshotBackend interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, doc []byte) error
	// Backup stores a timestamped copy and returns where it went
	Backup(ctx context.Context, doc []byte) (string, error)
}

// FileBackend keeps the document in a JSON file with backups in a directory
type FileBackend struct {
	path      string
	backupDir string
	now       func() time.Time
}

func NewFileBackend(path, backupDir string) *FileBackend {
	return &FileBackend{path: path, backupDir: backupDir, now: time.Now}
}

func (f *FileBackend) Read(ctx context.Context) ([]byte, error) {
	doc, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	return doc, nil
}

// Write replaces the state file atomically through a temp file and rename
func (f *FileBackend) Write(ctx context.Context, doc []byte) error {
	return writeAtomic(f.path, doc)
}

func (f *FileBackend) Backup(ctx context.Context, doc []byte) (string, error) {
	name := fmt.Sprintf("state-%s.json", f.now().UTC().Format("20060102-150405.000"))
	path := filepath.Join(f.backupDir, name)
	if err := writeAtomic(path, doc); err != nil {
		return "", err
	}
	return path, nil
}

func writeAtomic(path string, doc []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// StoreBackend keeps the document as rows in the database store
type StoreBackend struct {
	store storage.Store
}

func NewStoreBackend(store storage.Store) *StoreBackend {
	return &StoreBackend{store: store}
}

func (s *StoreBackend) Read(ctx context.Context) ([]byte, error) {
	snap, err := s.store.LatestSnapshot(models.SnapshotKindCurrent)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return snap.Document, nil
}

func (s *StoreBackend) Write(ctx context.Context, doc []byte) error {
	return s.store.SaveSnapshot(&models.StateSnapshot{
		Kind:     models.SnapshotKindCurrent,
		Document: doc,
		TakenAt:  time.Now(),
	})
}

func (s *StoreBackend) Backup(ctx context.Context, doc []byte) (string, error) {
	snap := &models.StateSnapshot{
		SnapshotID: uuid.NewString(),
		Kind:       models.SnapshotKindBackup,
		Document:   doc,
		TakenAt:    time.Now(),
	}
	if err := s.store.SaveSnapshot(snap); err != nil {
		return "", err
	}
	return "snapshot:" + snap.SnapshotID, nil
}
