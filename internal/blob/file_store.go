package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"go.uber.org/zap"
)

// FileStore keeps blobs on local disk, sharded by the first two characters
// of the locator.
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore creates root if needed.
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FileStore{root: root, logger: logger}, nil
}

func (s *FileStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	locator := uuid.NewString()
	path := s.path(locator)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	s.logger.Debug("blob written", zap.String("path", path), zap.Int("bytes", len(data)))
	return locator, nil
}

func (s *FileStore) Get(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validLocator(locator) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(s.path(locator))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStore) Delete(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validLocator(locator) {
		return ErrNotFound
	}
	path := s.path(locator)
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	s.logger.Debug("blob removed", zap.String("path", path))
	return nil
}

func (s *FileStore) path(locator string) string {
	return filepath.Join(s.root, locator[:2], locator)
}

// validLocator rejects anything that is not a locator this store issued,
// which also keeps caller input from escaping root.
func validLocator(locator string) bool {
	_, err := uuid.Parse(locator)
	return err == nil && len(locator) == 36
}
