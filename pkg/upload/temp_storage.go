package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TempStorage holds partially received uploads.
type TempStorage interface {
	// Create makes an empty file for key.
	Create(ctx context.Context, key string) error
	// Append writes r at offset. It fails with ErrChunkTooLarge when r holds
	// more than limit bytes; on any error the file is left at offset bytes.
	Append(ctx context.Context, key string, offset int64, r io.Reader, limit int64) (int64, error)
	// Truncate shrinks the file for key to size bytes.
	Truncate(ctx context.Context, key string, size int64) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// LocalTempStorage keeps partial uploads on the local filesystem.
// All paths are confined to the base directory.
type LocalTempStorage struct {
	baseDir string
}

func NewLocalTempStorage(baseDir string) (*LocalTempStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: base directory is required", ErrTempStorage)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	return &LocalTempStorage{baseDir: abs}, nil
}

func (s *LocalTempStorage) Create(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	return f.Close()
}

func (s *LocalTempStorage) Append(ctx context.Context, key string, offset int64, r io.Reader, limit int64) (int64, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return 0, err
	}
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	if info.Size() != offset {
		return 0, fmt.Errorf("%w: file holds %d bytes, chunk starts at %d", ErrTempStorage, info.Size(), offset)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTempStorage, err)
	}

	rollback := func(cause error) (int64, error) {
		if terr := f.Truncate(offset); terr != nil {
			return 0, errors.Join(cause, fmt.Errorf("%w: %v", ErrTempStorage, terr))
		}
		return 0, cause
	}

	src := io.LimitReader(r, limit+1)
	written := int64(0)
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return rollback(err)
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			if written+int64(n) > limit {
				return rollback(ErrChunkTooLarge)
			}
			if _, err := f.Write(buf[:n]); err != nil {
				return rollback(fmt.Errorf("%w: %v", ErrTempStorage, err))
			}
			written += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return rollback(readErr)
		}
	}
	if err := f.Sync(); err != nil {
		return rollback(fmt.Errorf("%w: %v", ErrTempStorage, err))
	}
	return written, nil
}

func (s *LocalTempStorage) Truncate(_ context.Context, key string, size int64) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Truncate(path, size); err != nil {
		return fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	return nil
}

func (s *LocalTempStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	return f, nil
}

// Remove deletes the file for key. Missing files are not an error.
func (s *LocalTempStorage) Remove(_ context.Context, key string) error {
	path, err := s.resolvePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrTempStorage, err)
	}
	return nil
}

func (s *LocalTempStorage) resolvePath(key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	abs, err := filepath.Abs(filepath.Join(s.baseDir, filepath.Clean(key)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !strings.HasPrefix(abs, s.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
	}
	return abs, nil
}
